// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundtally/soundtally/internal/config"
	"github.com/soundtally/soundtally/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Path:      filepath.Join(t.TempDir(), "test.duckdb"),
		MaxMemory: "256MB",
		Threads:   2,
	}
	db, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func record(songID string, count int64, lastPlayed time.Time) *models.PlayRecord {
	return &models.PlayRecord{
		SongID:         songID,
		Title:          "Title " + songID,
		Artist:         "Artist",
		PlayCount:      count,
		FirstTracked:   lastPlayed.Add(-time.Hour),
		LastPlayed:     lastPlayed,
		TrackingSource: models.SourceRealtime,
	}
}

func TestGetPlayRecordMissing(t *testing.T) {
	db := newTestDB(t)

	got, err := db.GetPlayRecord(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	session := "session-1"
	in := record("song-1", 1, now)
	in.PlaySessionID = &session
	require.NoError(t, db.UpsertPlayRecord(ctx, in))

	got, err := db.GetPlayRecord(ctx, "song-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, in.SongID, got.SongID)
	assert.Equal(t, int64(1), got.PlayCount)
	assert.Equal(t, models.SourceRealtime, got.TrackingSource)
	require.NotNil(t, got.PlaySessionID)
	assert.Equal(t, session, *got.PlaySessionID)
	assert.True(t, got.LastPlayed.Equal(now))

	// Second upsert replaces the mutable fields in place.
	in.PlayCount = 2
	in.Title = "Renamed"
	in.LastPlayed = now.Add(time.Minute)
	in.TrackingSource = models.SourceRemote
	require.NoError(t, db.UpsertPlayRecord(ctx, in))

	got, err = db.GetPlayRecord(ctx, "song-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.PlayCount)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, models.SourceRemote, got.TrackingSource)
	assert.True(t, got.FirstTracked.Equal(in.FirstTracked), "first_tracked must survive updates")
}

func TestApplyPlayIncrements(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	session := "session-1"
	first := record("song-1", 0, now)
	first.PlaySessionID = &session
	require.NoError(t, db.ApplyPlay(ctx, first))

	got, err := db.GetPlayRecord(ctx, "song-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.PlayCount)
	require.NotNil(t, got.PlaySessionID)
	assert.Equal(t, session, *got.PlaySessionID)

	// A second play without a session keeps the stored session id.
	second := record("song-1", 0, now.Add(2*time.Minute))
	require.NoError(t, db.ApplyPlay(ctx, second))

	got, err = db.GetPlayRecord(ctx, "song-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.PlayCount)
	require.NotNil(t, got.PlaySessionID)
	assert.Equal(t, session, *got.PlaySessionID)
	assert.True(t, got.FirstTracked.Equal(first.FirstTracked))
}

func TestTopByCountOrderingAndWindow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	require.NoError(t, db.UpsertPlayRecord(ctx, record("b", 5, now)))
	require.NoError(t, db.UpsertPlayRecord(ctx, record("a", 5, now)))
	require.NoError(t, db.UpsertPlayRecord(ctx, record("c", 9, now)))
	require.NoError(t, db.UpsertPlayRecord(ctx, record("old", 100, now.Add(-48*time.Hour))))

	from := now.Add(-time.Hour)
	to := now.Add(time.Hour)
	got, err := db.TopByCount(ctx, &from, &to, 10)
	require.NoError(t, err)
	require.Len(t, got, 3, "record outside the window must be excluded")

	assert.Equal(t, "c", got[0].SongID)
	// Equal counts tie-break on song_id ascending.
	assert.Equal(t, "a", got[1].SongID)
	assert.Equal(t, "b", got[2].SongID)
}

func TestRecentlyPlayedOrdering(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	require.NoError(t, db.UpsertPlayRecord(ctx, record("x", 1, now.Add(-time.Minute))))
	require.NoError(t, db.UpsertPlayRecord(ctx, record("y", 1, now)))
	require.NoError(t, db.UpsertPlayRecord(ctx, record("z", 1, now.Add(-time.Hour))))

	got, err := db.RecentlyPlayed(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "y", got[0].SongID)
	assert.Equal(t, "x", got[1].SongID)
}

func TestTotals(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	totals, err := db.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.LedgerTotals{}, totals)

	require.NoError(t, db.UpsertPlayRecord(ctx, record("a", 3, now)))
	require.NoError(t, db.UpsertPlayRecord(ctx, record("b", 7, now)))

	totals, err = db.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), totals.TotalSongs)
	assert.Equal(t, int64(10), totals.TotalPlays)
}

func TestDeleteAllAndOlderThan(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, db.UpsertPlayRecord(ctx, record("fresh", 1, now)))
	require.NoError(t, db.UpsertPlayRecord(ctx, record("stale", 1, now.Add(-72*time.Hour))))

	purged, err := db.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	got, err := db.GetPlayRecord(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, db.DeleteAll(ctx))
	totals, err := db.Totals(ctx)
	require.NoError(t, err)
	assert.Zero(t, totals.TotalSongs)
}
