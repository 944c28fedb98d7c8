// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sync reconciles the remote recently-played history into the play
// ledger. A periodic pass fetches the remote list and feeds each item through
// the same ledger update path the realtime observer uses; the dedup engine
// arbitrates overlap between the two sources.
package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/soundtally/soundtally/internal/config"
	"github.com/soundtally/soundtally/internal/dedup"
	"github.com/soundtally/soundtally/internal/ledger"
	"github.com/soundtally/soundtally/internal/logging"
	"github.com/soundtally/soundtally/internal/metrics"
	"github.com/soundtally/soundtally/internal/models"
)

// ErrCooldown is returned by TriggerSync when a sync ran too recently.
var ErrCooldown = errors.New("sync is in cooldown")

// PlayRecorder is the ledger update path the sync feeds candidates into.
type PlayRecorder interface {
	RecordPlay(ctx context.Context, candidate models.PlayCandidate) (ledger.Outcome, error)
}

// Manager orchestrates the periodic remote history sync.
//
// Thread safety: syncMu prevents concurrent sync passes, mu protects shared
// state (running, lastSync), and the limiter enforces the manual-trigger
// cooldown.
type Manager struct {
	recorder PlayRecorder
	provider Provider
	cfg      *config.SyncConfig
	boundary time.Time

	lastSync time.Time
	running  bool
	mu       stdsync.RWMutex
	syncMu   stdsync.Mutex
	stopChan chan struct{}
	wg       stdsync.WaitGroup
	limiter  *rate.Limiter

	onSyncCompleted func(accepted, processed int)
}

// NewManager creates a sync manager. boundary is the install boundary; items
// last played before it are never imported.
func NewManager(recorder PlayRecorder, provider Provider, cfg *config.SyncConfig, boundary time.Time) *Manager {
	logging.Info().
		Bool("enabled", cfg.Enabled).
		Dur("interval", cfg.Interval).
		Int("page_limit", cfg.PageLimit).
		Msg("sync manager config loaded")

	return &Manager{
		recorder: recorder,
		provider: provider,
		cfg:      cfg,
		boundary: boundary,
		stopChan: make(chan struct{}),
		limiter:  rate.NewLimiter(rate.Every(cfg.Interval), 1),
	}
}

// SetOnSyncCompleted sets the callback invoked after each successful pass.
func (m *Manager) SetOnSyncCompleted(callback func(accepted, processed int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSyncCompleted = callback
}

// Start begins the periodic synchronization loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is already running")
	}
	m.running = true
	m.mu.Unlock()

	if !m.cfg.Enabled {
		logging.Info().Msg("remote sync disabled (SYNC_ENABLED=false)")
		return nil
	}

	logging.Info().Msg("starting sync manager")

	m.wg.Add(2)

	// Initial pass in the background so startup is not blocked by a slow or
	// unreachable provider.
	go func() {
		defer m.wg.Done()
		m.syncMu.Lock()
		defer m.syncMu.Unlock()
		m.limiter.Allow() // the initial pass consumes the cooldown token
		if err := m.syncRemote(ctx); err != nil {
			logging.Warn().Err(err).Msg("initial sync failed (will retry on next tick)")
		}
	}()

	go m.syncLoop(ctx)
	return nil
}

// Stop gracefully stops the synchronization loop.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is not running")
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopChan)
	m.wg.Wait()
	logging.Info().Msg("sync manager stopped")
	return nil
}

// LastSyncTime returns the completion time of the last successful pass.
func (m *Manager) LastSyncTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSync
}

// TriggerSync runs a sync pass now, subject to the cooldown. Returns
// ErrCooldown when a pass ran more recently than the configured interval.
func (m *Manager) TriggerSync(ctx context.Context) error {
	if !m.cfg.Enabled {
		return fmt.Errorf("remote sync is disabled")
	}
	if !m.limiter.Allow() {
		return ErrCooldown
	}

	m.syncMu.Lock()
	defer m.syncMu.Unlock()
	return m.syncRemote(ctx)
}

func (m *Manager) syncLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			if !m.limiter.Allow() {
				// A manual trigger just ran; skip this tick.
				continue
			}
			m.syncMu.Lock()
			err := m.syncRemote(ctx)
			m.syncMu.Unlock()
			if err != nil {
				logging.Error().Err(err).Msg("sync pass failed")
			}
		}
	}
}

// syncRemote performs one full pass: fetch the remote list and feed each
// item through the ledger. Item-level failures are isolated; one bad item
// never aborts the pass.
func (m *Manager) syncRemote(ctx context.Context) error {
	started := time.Now()

	items, err := m.provider.FetchRecentlyPlayed(ctx, m.cfg.PageLimit)
	if err != nil {
		metrics.RecordSyncPass(time.Since(started), 0, err)
		return fmt.Errorf("fetch remote history: %w", err)
	}

	var processed, accepted int
	for _, item := range items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stopChan:
			return nil
		default:
		}

		if !validItem(item) {
			metrics.SyncItemsSkipped.WithLabelValues("malformed").Inc()
			logging.Debug().
				Str("song_id", item.SongID).
				Time("last_played_at", item.LastPlayedAt).
				Msg("skipping malformed history item")
			continue
		}
		if item.LastPlayedAt.Before(m.boundary) {
			metrics.SyncItemsSkipped.WithLabelValues("before_boundary").Inc()
			continue
		}

		processed++
		outcome, err := m.recorder.RecordPlay(ctx, models.PlayCandidate{
			SongID:    item.SongID,
			Title:     item.Title,
			Artist:    item.Artist,
			Source:    models.SourceRemote,
			Timestamp: item.LastPlayedAt,
		})
		if err != nil {
			metrics.SyncErrors.WithLabelValues("ledger").Inc()
			logging.Warn().Err(err).Str("song_id", item.SongID).Msg("failed to reconcile history item")
			continue
		}
		if outcome.Decision == dedup.Accept {
			accepted++
		}
	}

	m.mu.Lock()
	m.lastSync = time.Now()
	callback := m.onSyncCompleted
	m.mu.Unlock()

	metrics.RecordSyncPass(time.Since(started), processed, nil)
	logging.Info().
		Int("items", len(items)).
		Int("processed", processed).
		Int("accepted", accepted).
		Dur("duration", time.Since(started)).
		Msg("sync pass completed")

	if callback != nil {
		callback(accepted, processed)
	}
	return nil
}

func validItem(item models.RemoteHistoryItem) bool {
	return item.SongID != "" && item.Title != "" && item.Artist != "" && !item.LastPlayedAt.IsZero()
}
