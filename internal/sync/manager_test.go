// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundtally/soundtally/internal/config"
	"github.com/soundtally/soundtally/internal/dedup"
	"github.com/soundtally/soundtally/internal/ledger"
	"github.com/soundtally/soundtally/internal/models"
)

// fakeProvider returns a fixed item list or an error.
type fakeProvider struct {
	items []models.RemoteHistoryItem
	err   error
	calls int
}

func (f *fakeProvider) FetchRecentlyPlayed(ctx context.Context, limit int) ([]models.RemoteHistoryItem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

// fakeRecorder captures candidates and can fail specific songs.
type fakeRecorder struct {
	mu         stdsync.Mutex
	candidates []models.PlayCandidate
	failSongs  map[string]bool
}

func (f *fakeRecorder) RecordPlay(ctx context.Context, candidate models.PlayCandidate) (ledger.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSongs[candidate.SongID] {
		return ledger.Outcome{}, errors.New("ledger write failed")
	}
	f.candidates = append(f.candidates, candidate)
	return ledger.Outcome{Decision: dedup.Accept, Reason: dedup.ReasonFirstPlay}, nil
}

func (f *fakeRecorder) recorded() []models.PlayCandidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PlayCandidate(nil), f.candidates...)
}

func testSyncConfig() *config.SyncConfig {
	return &config.SyncConfig{
		Enabled:   true,
		URL:       "http://remote.example",
		Interval:  5 * time.Minute,
		Timeout:   10 * time.Second,
		PageLimit: 50,
	}
}

func item(songID string, playedAt time.Time) models.RemoteHistoryItem {
	return models.RemoteHistoryItem{
		SongID:       songID,
		Title:        "Title " + songID,
		Artist:       "Artist",
		LastPlayedAt: playedAt,
	}
}

func TestSyncRemoteFeedsLedger(t *testing.T) {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	boundary := now.Add(-30 * 24 * time.Hour)

	provider := &fakeProvider{items: []models.RemoteHistoryItem{
		item("a", now.Add(-time.Hour)),
		item("b", now.Add(-2*time.Hour)),
	}}
	recorder := &fakeRecorder{}
	m := NewManager(recorder, provider, testSyncConfig(), boundary)

	require.NoError(t, m.syncRemote(context.Background()))

	got := recorder.recorded()
	require.Len(t, got, 2)
	assert.Equal(t, models.SourceRemote, got[0].Source)
	assert.Equal(t, "a", got[0].SongID)
	assert.True(t, got[0].Timestamp.Equal(now.Add(-time.Hour)))
	assert.False(t, m.LastSyncTime().IsZero())
}

func TestSyncRemoteSkipsItemsBeforeBoundary(t *testing.T) {
	boundary := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	provider := &fakeProvider{items: []models.RemoteHistoryItem{
		item("pre-install", boundary.Add(-time.Hour)),
		item("post-install", boundary.Add(time.Hour)),
	}}
	recorder := &fakeRecorder{}
	m := NewManager(recorder, provider, testSyncConfig(), boundary)

	require.NoError(t, m.syncRemote(context.Background()))

	got := recorder.recorded()
	require.Len(t, got, 1)
	assert.Equal(t, "post-install", got[0].SongID)
}

func TestSyncRemoteSkipsMalformedItems(t *testing.T) {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	provider := &fakeProvider{items: []models.RemoteHistoryItem{
		{SongID: "", Title: "No ID", Artist: "X", LastPlayedAt: now},
		{SongID: "no-timestamp", Title: "T", Artist: "X"},
		item("good", now),
	}}
	recorder := &fakeRecorder{}
	m := NewManager(recorder, provider, testSyncConfig(), now.Add(-24*time.Hour))

	require.NoError(t, m.syncRemote(context.Background()))

	got := recorder.recorded()
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].SongID)
}

func TestSyncRemoteIsolatesItemFailures(t *testing.T) {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	provider := &fakeProvider{items: []models.RemoteHistoryItem{
		item("bad", now.Add(-time.Minute)),
		item("good", now),
	}}
	recorder := &fakeRecorder{failSongs: map[string]bool{"bad": true}}
	m := NewManager(recorder, provider, testSyncConfig(), now.Add(-24*time.Hour))

	// One failing item must not abort the pass.
	require.NoError(t, m.syncRemote(context.Background()))

	got := recorder.recorded()
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].SongID)
}

func TestSyncRemoteProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("provider down")}
	recorder := &fakeRecorder{}
	m := NewManager(recorder, provider, testSyncConfig(), time.Time{})

	err := m.syncRemote(context.Background())
	require.Error(t, err)
	assert.Empty(t, recorder.recorded())
	assert.True(t, m.LastSyncTime().IsZero(), "failed pass must not advance last sync time")
}

func TestTriggerSyncCooldown(t *testing.T) {
	provider := &fakeProvider{}
	recorder := &fakeRecorder{}
	m := NewManager(recorder, provider, testSyncConfig(), time.Time{})

	require.NoError(t, m.TriggerSync(context.Background()))
	assert.Equal(t, 1, provider.calls)

	err := m.TriggerSync(context.Background())
	require.ErrorIs(t, err, ErrCooldown)
	assert.Equal(t, 1, provider.calls, "cooldown must prevent a second fetch")
}

func TestTriggerSyncDisabled(t *testing.T) {
	cfg := testSyncConfig()
	cfg.Enabled = false
	m := NewManager(&fakeRecorder{}, &fakeProvider{}, cfg, time.Time{})

	err := m.TriggerSync(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCooldown)
}

func TestStartStopLifecycle(t *testing.T) {
	provider := &fakeProvider{}
	recorder := &fakeRecorder{}
	m := NewManager(recorder, provider, testSyncConfig(), time.Time{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, m.Start(ctx))
	require.Error(t, m.Start(ctx), "double start must fail")

	require.NoError(t, m.Stop())
	require.Error(t, m.Stop(), "double stop must fail")
}

func TestOnSyncCompletedCallback(t *testing.T) {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	provider := &fakeProvider{items: []models.RemoteHistoryItem{item("a", now)}}
	recorder := &fakeRecorder{}
	m := NewManager(recorder, provider, testSyncConfig(), now.Add(-24*time.Hour))

	var gotAccepted, gotProcessed int
	m.SetOnSyncCompleted(func(accepted, processed int) {
		gotAccepted, gotProcessed = accepted, processed
	})

	require.NoError(t, m.syncRemote(context.Background()))
	assert.Equal(t, 1, gotAccepted)
	assert.Equal(t, 1, gotProcessed)
}
