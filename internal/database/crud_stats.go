// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/soundtally/soundtally/internal/models"
)

// TopByCount returns records ranked by play count descending, optionally
// restricted to records whose last play falls within [from, to). Ties break
// on song_id ascending so results are deterministic.
func (db *DB) TopByCount(ctx context.Context, from, to *time.Time, limit int) ([]*models.PlayRecord, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT song_id, title, artist, play_count, first_tracked, last_played,
		tracking_source, play_session_id
	FROM play_records`
	var args []interface{}

	switch {
	case from != nil && to != nil:
		query += ` WHERE last_played >= ? AND last_played < ?`
		args = append(args, *from, *to)
	case from != nil:
		query += ` WHERE last_played >= ?`
		args = append(args, *from)
	case to != nil:
		query += ` WHERE last_played < ?`
		args = append(args, *to)
	}

	query += ` ORDER BY play_count DESC, song_id ASC LIMIT ?`
	args = append(args, limit)

	return db.queryRecords(ctx, query, args...)
}

// RecentlyPlayed returns records ranked by last play descending, ties broken
// on song_id ascending.
func (db *DB) RecentlyPlayed(ctx context.Context, limit int) ([]*models.PlayRecord, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT song_id, title, artist, play_count, first_tracked, last_played,
		tracking_source, play_session_id
	FROM play_records
	ORDER BY last_played DESC, song_id ASC LIMIT ?`

	return db.queryRecords(ctx, query, limit)
}

// Totals computes whole-ledger aggregates.
func (db *DB) Totals(ctx context.Context) (models.LedgerTotals, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var totals models.LedgerTotals
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(play_count), 0) FROM play_records`,
	).Scan(&totals.TotalSongs, &totals.TotalPlays)
	if err != nil {
		return models.LedgerTotals{}, fmt.Errorf("failed to compute ledger totals: %w", err)
	}
	return totals, nil
}

func (db *DB) queryRecords(ctx context.Context, query string, args ...interface{}) ([]*models.PlayRecord, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query play records: %w", err)
	}
	defer rows.Close()

	var records []*models.PlayRecord
	for rows.Next() {
		record := &models.PlayRecord{}
		var source string
		if err := rows.Scan(
			&record.SongID, &record.Title, &record.Artist, &record.PlayCount,
			&record.FirstTracked, &record.LastPlayed, &source, &record.PlaySessionID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan play record: %w", err)
		}
		record.TrackingSource = models.Source(source)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating play records: %w", err)
	}
	return records, nil
}
