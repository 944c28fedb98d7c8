// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"fmt"
	"time"
)

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createSchema creates the ledger table and indexes. All columns live in the
// initial CREATE TABLE so the statement is the single source of truth.
func (db *DB) createSchema() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		// One row per distinct song. play_count only increases; first_tracked
		// is set once at creation.
		`CREATE TABLE IF NOT EXISTS play_records (
			song_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			play_count BIGINT NOT NULL DEFAULT 0,
			first_tracked TIMESTAMP NOT NULL,
			last_played TIMESTAMP NOT NULL,
			tracking_source TEXT NOT NULL,
			play_session_id TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// last_played drives the time-window views and retention sweeps;
		// play_count drives the ranked views.
		`CREATE INDEX IF NOT EXISTS idx_play_records_last_played ON play_records(last_played)`,
		`CREATE INDEX IF NOT EXISTS idx_play_records_play_count ON play_records(play_count)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}
