// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"time"

	"github.com/soundtally/soundtally/internal/logging"
	"github.com/soundtally/soundtally/internal/metrics"
)

// RetentionStore matches the ledger store's age-based purge method.
type RetentionStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionService periodically purges records whose last play is older
// than the configured maximum age.
type RetentionService struct {
	store         RetentionStore
	maxAge        time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	name          string
}

// NewRetentionService creates the sweeper. maxAge and sweepInterval must be
// positive; the caller only constructs the service when retention is enabled.
func NewRetentionService(store RetentionStore, maxAge, sweepInterval time.Duration) *RetentionService {
	return &RetentionService{
		store:         store,
		maxAge:        maxAge,
		sweepInterval: sweepInterval,
		now:           time.Now,
		name:          "retention-sweeper",
	}
}

// Serve implements suture.Service. A failed sweep is logged and retried on
// the next tick rather than crashing the service.
func (s *RetentionService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	logging.Info().
		Dur("max_age", s.maxAge).
		Dur("sweep_interval", s.sweepInterval).
		Msg("retention sweeper started")

	// One sweep at startup so a long interval does not delay the first purge.
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("retention sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *RetentionService) sweep(ctx context.Context) {
	cutoff := s.now().Add(-s.maxAge)
	purged, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		logging.Error().Err(err).Time("cutoff", cutoff).Msg("retention sweep failed")
		return
	}
	if purged > 0 {
		metrics.RetentionRecordsPurged.Add(float64(purged))
		logging.Info().Int64("purged", purged).Time("cutoff", cutoff).Msg("retention sweep purged records")
	}
}

// String identifies the service in supervisor logs.
func (s *RetentionService) String() string {
	return s.name
}
