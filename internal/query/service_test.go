// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundtally/soundtally/internal/models"
)

// captureStore records the arguments of the last call.
type captureStore struct {
	from, to *time.Time
	limit    int

	records []*models.PlayRecord
	totals  models.LedgerTotals
}

func (c *captureStore) TopByCount(ctx context.Context, from, to *time.Time, limit int) ([]*models.PlayRecord, error) {
	c.from, c.to, c.limit = from, to, limit
	return c.records, nil
}

func (c *captureStore) RecentlyPlayed(ctx context.Context, limit int) ([]*models.PlayRecord, error) {
	c.limit = limit
	return c.records, nil
}

func (c *captureStore) Totals(ctx context.Context) (models.LedgerTotals, error) {
	return c.totals, nil
}

func TestTodayUsesLocalDayWindow(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	// 01:30 local on Aug 20.
	now := time.Date(2026, 8, 20, 1, 30, 0, 0, loc)
	boundary := now.Add(-30 * 24 * time.Hour)

	store := &captureStore{}
	svc := NewService(store, boundary, 10, 50, WithNow(func() time.Time { return now }), WithLocation(loc))

	_, err := svc.Today(context.Background())
	require.NoError(t, err)

	require.NotNil(t, store.from)
	require.NotNil(t, store.to)
	wantFrom := time.Date(2026, 8, 20, 0, 0, 0, 0, loc)
	assert.True(t, store.from.Equal(wantFrom), "from = %v, want local midnight %v", store.from, wantFrom)
	assert.True(t, store.to.Equal(wantFrom.Add(24*time.Hour)))
	assert.Equal(t, 10, store.limit)
}

func TestTodayClampsToInstallBoundary(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, loc)
	// Installed mid-morning today; the day window must not reach before it.
	boundary := time.Date(2026, 8, 20, 9, 0, 0, 0, loc)

	store := &captureStore{}
	svc := NewService(store, boundary, 10, 50, WithNow(func() time.Time { return now }), WithLocation(loc))

	_, err := svc.Today(context.Background())
	require.NoError(t, err)
	require.NotNil(t, store.from)
	assert.True(t, store.from.Equal(boundary))
}

func TestThisWeekWindow(t *testing.T) {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	boundary := now.Add(-365 * 24 * time.Hour)

	store := &captureStore{}
	svc := NewService(store, boundary, 10, 50, WithNow(func() time.Time { return now }))

	_, err := svc.ThisWeek(context.Background())
	require.NoError(t, err)
	require.NotNil(t, store.from)
	require.NotNil(t, store.to)
	assert.True(t, store.from.Equal(now.Add(-7*24*time.Hour)))
	assert.True(t, store.to.After(now), "window must include now itself")
}

func TestAllTimeHasNoWindow(t *testing.T) {
	store := &captureStore{
		records: []*models.PlayRecord{{SongID: "a", PlayCount: 3}},
		totals:  models.LedgerTotals{TotalSongs: 1, TotalPlays: 3},
	}
	svc := NewService(store, time.Time{}, 10, 50)

	view, err := svc.AllTime(context.Background())
	require.NoError(t, err)
	assert.Nil(t, store.from)
	assert.Nil(t, store.to)
	require.Len(t, view.Top, 1)
	assert.Equal(t, int64(3), view.Totals.TotalPlays)
}

func TestRecentlyPlayedUsesConfiguredLimit(t *testing.T) {
	store := &captureStore{}
	svc := NewService(store, time.Time{}, 10, 50)

	_, err := svc.RecentlyPlayed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, store.limit)
}
