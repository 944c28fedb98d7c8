// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/soundtally/soundtally/internal/logging"
	"github.com/soundtally/soundtally/internal/models"
)

// GetPlayRecord fetches the record for a song. Returns (nil, nil) when the
// song has never been observed; callers distinguish "no record" from a
// storage failure because the dedup fail-open policy hinges on it.
func (db *DB) GetPlayRecord(ctx context.Context, songID string) (*models.PlayRecord, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT song_id, title, artist, play_count, first_tracked, last_played,
		tracking_source, play_session_id
	FROM play_records WHERE song_id = ?`

	record := &models.PlayRecord{}
	var source string
	err := db.conn.QueryRowContext(ctx, query, songID).Scan(
		&record.SongID, &record.Title, &record.Artist, &record.PlayCount,
		&record.FirstTracked, &record.LastPlayed, &source, &record.PlaySessionID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get play record %s: %w", songID, err)
	}
	record.TrackingSource = models.Source(source)
	return record, nil
}

// UpsertPlayRecord persists the whole record as one unit. The single
// statement makes the commit all-or-nothing per record; there are no
// partial-field writes.
func (db *DB) UpsertPlayRecord(ctx context.Context, record *models.PlayRecord) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `INSERT INTO play_records (
		song_id, title, artist, play_count, first_tracked, last_played,
		tracking_source, play_session_id, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (song_id) DO UPDATE SET
		title = excluded.title,
		artist = excluded.artist,
		play_count = excluded.play_count,
		last_played = excluded.last_played,
		tracking_source = excluded.tracking_source,
		play_session_id = excluded.play_session_id,
		updated_at = excluded.updated_at`

	_, err := db.conn.ExecContext(ctx, query,
		record.SongID, record.Title, record.Artist, record.PlayCount,
		record.FirstTracked, record.LastPlayed, string(record.TrackingSource),
		record.PlaySessionID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert play record %s: %w", record.SongID, err)
	}
	return nil
}

// ApplyPlay records one accepted play without depending on a prior read:
// the count is incremented in-database, so a stale or failed read can never
// clobber an existing count. The session id is only replaced when the new
// record carries one.
func (db *DB) ApplyPlay(ctx context.Context, record *models.PlayRecord) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `INSERT INTO play_records (
		song_id, title, artist, play_count, first_tracked, last_played,
		tracking_source, play_session_id, updated_at
	) VALUES (?, ?, ?, 1, ?, ?, ?, ?, ?)
	ON CONFLICT (song_id) DO UPDATE SET
		title = excluded.title,
		artist = excluded.artist,
		play_count = play_records.play_count + 1,
		last_played = excluded.last_played,
		tracking_source = excluded.tracking_source,
		play_session_id = COALESCE(excluded.play_session_id, play_records.play_session_id),
		updated_at = excluded.updated_at`

	_, err := db.conn.ExecContext(ctx, query,
		record.SongID, record.Title, record.Artist,
		record.FirstTracked, record.LastPlayed, string(record.TrackingSource),
		record.PlaySessionID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to apply play for %s: %w", record.SongID, err)
	}
	return nil
}

// DeleteAll wipes the ledger. Used by the full reset operation only.
func (db *DB) DeleteAll(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, `DELETE FROM play_records`); err != nil {
		return fmt.Errorf("failed to reset ledger: %w", err)
	}
	logging.Info().Msg("ledger reset: all play records deleted")
	return nil
}

// DeleteOlderThan purges records whose last play predates the cutoff.
// Returns the number of records removed.
func (db *DB) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	result, err := db.conn.ExecContext(ctx, `DELETE FROM play_records WHERE last_played < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old play records: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected > 0 {
		logging.Info().
			Int64("purged", affected).
			Time("cutoff", cutoff).
			Msg("retention sweep removed old play records")
	}
	return affected, nil
}
