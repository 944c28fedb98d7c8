// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ledger implements the aggregate ledger update path: the single
// serialization point through which every play candidate, regardless of
// source, is reconciled into the per-song play records.
package ledger

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/soundtally/soundtally/internal/dedup"
	"github.com/soundtally/soundtally/internal/logging"
	"github.com/soundtally/soundtally/internal/metrics"
	"github.com/soundtally/soundtally/internal/models"
)

// shardCount sizes the per-song lock table. Locks are striped by song id
// hash; two songs sharing a stripe merely serialize, they do not conflict.
const shardCount = 64

// Store is the durable record storage the ledger writes through.
type Store interface {
	// GetPlayRecord returns (nil, nil) when no record exists for the song.
	GetPlayRecord(ctx context.Context, songID string) (*models.PlayRecord, error)

	// UpsertPlayRecord writes the full record as one unit.
	UpsertPlayRecord(ctx context.Context, record *models.PlayRecord) error

	// ApplyPlay records one play with an in-database count increment.
	ApplyPlay(ctx context.Context, record *models.PlayRecord) error
}

// Outcome reports what the ledger did with a candidate.
type Outcome struct {
	Decision dedup.Decision
	Reason   dedup.Reason

	// Record is the state written for an accepted candidate; nil on reject.
	Record *models.PlayRecord
}

// Service owns the read-decide-write cycle for play candidates. All three
// producers (observer, remote sync, manual API) call RecordPlay; per-song
// lock striping makes the cycle atomic per song without a global lock.
type Service struct {
	store    Store
	engine   *dedup.Engine
	notifier *Notifier

	locks [shardCount]sync.Mutex
}

// NewService creates the ledger update service. notifier may be nil, in
// which case accepted plays are not announced.
func NewService(store Store, engine *dedup.Engine, notifier *Notifier) *Service {
	return &Service{store: store, engine: engine, notifier: notifier}
}

// RecordPlay reconciles one candidate into the ledger.
//
// The cycle is: read the current record for the song, ask the dedup engine
// for a decision, and on accept commit the updated record. The change
// notification goes out only after the commit succeeds; a rejected or failed
// candidate is never announced.
func (s *Service) RecordPlay(ctx context.Context, candidate models.PlayCandidate) (Outcome, error) {
	if !candidate.Source.Valid() {
		return Outcome{}, fmt.Errorf("unknown play source %q", candidate.Source)
	}

	lock := &s.locks[s.shard(candidate.SongID)]
	lock.Lock()
	defer lock.Unlock()

	last, readErr := s.store.GetPlayRecord(ctx, candidate.SongID)

	var decision dedup.Decision
	var reason dedup.Reason
	if readErr != nil {
		metrics.LedgerReadErrors.Inc()
		decision, reason = s.engine.DecideOnReadError()
		logging.Warn().
			Err(readErr).
			Str("song_id", candidate.SongID).
			Str("decision", decision.String()).
			Msg("ledger read failed, applying read-error policy")
	} else {
		decision, reason = s.engine.Decide(candidate, last)
	}

	metrics.RecordDecision(decision == dedup.Accept, string(candidate.Source), string(reason))

	if decision == dedup.Reject {
		logging.Debug().
			Str("song_id", candidate.SongID).
			Str("source", string(candidate.Source)).
			Str("reason", string(reason)).
			Time("timestamp", candidate.Timestamp).
			Msg("play candidate rejected")
		return Outcome{Decision: dedup.Reject, Reason: reason}, nil
	}

	record := buildRecord(candidate, last)

	var writeErr error
	if readErr != nil {
		// The prior count is unknown here. ApplyPlay increments in-database
		// so an existing count survives the failed read.
		writeErr = s.store.ApplyPlay(ctx, record)
	} else {
		writeErr = s.store.UpsertPlayRecord(ctx, record)
	}
	if writeErr != nil {
		metrics.LedgerWriteErrors.Inc()
		return Outcome{}, fmt.Errorf("commit play for %s: %w", candidate.SongID, writeErr)
	}

	logging.Debug().
		Str("song_id", candidate.SongID).
		Str("source", string(candidate.Source)).
		Str("reason", string(reason)).
		Int64("play_count", record.PlayCount).
		Msg("play accepted")

	if s.notifier != nil {
		s.notifier.PublishChange(ChangeEvent{
			SongID:    candidate.SongID,
			Source:    candidate.Source,
			Reason:    string(reason),
			PlayCount: record.PlayCount,
			Timestamp: candidate.Timestamp,
		})
	}

	return Outcome{Decision: dedup.Accept, Reason: reason, Record: record}, nil
}

// buildRecord derives the post-accept record state. Title and artist always
// take the candidate's values so metadata corrections propagate; the session
// id is only replaced when the candidate carries one.
func buildRecord(candidate models.PlayCandidate, last *models.PlayRecord) *models.PlayRecord {
	record := &models.PlayRecord{
		SongID:         candidate.SongID,
		Title:          candidate.Title,
		Artist:         candidate.Artist,
		PlayCount:      1,
		FirstTracked:   candidate.Timestamp,
		LastPlayed:     candidate.Timestamp,
		TrackingSource: candidate.Source,
		PlaySessionID:  candidate.SessionID,
	}
	if last != nil {
		record.PlayCount = last.PlayCount + 1
		record.FirstTracked = last.FirstTracked
		if candidate.SessionID == nil {
			record.PlaySessionID = last.PlaySessionID
		}
	}
	return record
}

func (s *Service) shard(songID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(songID))
	return h.Sum32() % shardCount
}
