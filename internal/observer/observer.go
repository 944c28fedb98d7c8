// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package observer turns raw playback state changes into play candidates.
//
// A track only counts once it has played continuously for the configured
// threshold. Each now-playing report arms a cancellable timer; a stop or a
// track change before the timer fires discards the pending play. A track
// that already produced a candidate produces no more until playback moves
// to a different track.
package observer

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/soundtally/soundtally/internal/ledger"
	"github.com/soundtally/soundtally/internal/logging"
	"github.com/soundtally/soundtally/internal/models"
)

// emitTimeout bounds the ledger call made when the play threshold elapses.
const emitTimeout = 10 * time.Second

// Recorder is the ledger update path candidates are emitted into.
type Recorder interface {
	RecordPlay(ctx context.Context, candidate models.PlayCandidate) (ledger.Outcome, error)
}

// Track is the currently playing song as reported by the player.
type Track struct {
	SongID string `json:"song_id" validate:"required"`
	Title  string `json:"title" validate:"required"`
	Artist string `json:"artist" validate:"required"`
}

// Observer tracks local playback state and emits a realtime play candidate
// once a track has played continuously past the threshold.
type Observer struct {
	recorder  Recorder
	threshold time.Duration
	now       func() time.Time

	mu        stdsync.Mutex
	current   *Track
	timer     *time.Timer
	emitted   bool
	sessionID *string
	closed    bool
}

// Option customizes an Observer.
type Option func(*Observer)

// WithNow overrides the clock. Used by tests.
func WithNow(now func() time.Time) Option {
	return func(o *Observer) { o.now = now }
}

// New creates an observer emitting into recorder after threshold of
// continuous playback.
func New(recorder Recorder, threshold time.Duration, opts ...Option) *Observer {
	o := &Observer{
		recorder:  recorder,
		threshold: threshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NowPlaying reports that track is currently playing. Repeated reports of
// the same track are heartbeats: they neither restart the threshold timer
// nor re-emit an already counted play.
func (o *Observer) NowPlaying(track Track) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	if o.current != nil && o.current.SongID == track.SongID {
		return
	}

	o.cancelPendingLocked()

	// First report after a stop opens a new listening session; a track
	// change inside one continues it.
	if o.sessionID == nil {
		id := uuid.NewString()
		o.sessionID = &id
	}

	current := track
	o.current = &current
	o.emitted = false

	songID := track.SongID
	o.timer = time.AfterFunc(o.threshold, func() {
		o.emit(songID)
	})

	logging.Debug().
		Str("song_id", track.SongID).
		Dur("threshold", o.threshold).
		Msg("playback started, threshold timer armed")
}

// Stopped reports that playback has stopped. A pending candidate that has
// not reached the threshold is discarded and the listening session ends.
func (o *Observer) Stopped() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.cancelPendingLocked()
	o.current = nil
	o.sessionID = nil
}

// Close stops the observer. Subsequent reports are ignored.
func (o *Observer) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.cancelPendingLocked()
	o.current = nil
	o.sessionID = nil
	o.closed = true
}

// emit runs on timer expiry. The track may have changed or stopped between
// the timer firing and the lock being acquired, in which case the emission
// is stale and dropped.
func (o *Observer) emit(songID string) {
	o.mu.Lock()
	if o.closed || o.current == nil || o.current.SongID != songID || o.emitted {
		o.mu.Unlock()
		return
	}
	o.emitted = true
	track := *o.current
	sessionID := o.sessionID
	timestamp := o.now()
	o.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()

	_, err := o.recorder.RecordPlay(ctx, models.PlayCandidate{
		SongID:    track.SongID,
		Title:     track.Title,
		Artist:    track.Artist,
		Source:    models.SourceRealtime,
		Timestamp: timestamp,
		SessionID: sessionID,
	})
	if err != nil {
		logging.Warn().Err(err).Str("song_id", track.SongID).Msg("failed to record observed play")
	}
}

func (o *Observer) cancelPendingLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}
