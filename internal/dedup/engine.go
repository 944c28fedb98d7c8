// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dedup implements the play-event deduplication engine.
//
// The engine is a pure decision function: given a candidate play event and
// the most recently accepted record for the same song, it decides whether the
// candidate is a new listen or a duplicate signal of one already counted. It
// never touches storage; the ledger update path owns the read and the write.
//
// The decision is driven by source-pair windows: two reports of the same song
// closer together than the window for their source pair are presumed to be
// the same listen reported twice. The one exception is the quick-replay
// override for realtime/realtime pairs, which permits a legitimate
// skip-away-and-back replay of the same song between the 10s floor and the
// 30s window.
package dedup

import (
	"time"

	"github.com/soundtally/soundtally/internal/models"
)

// Decision is the outcome of evaluating a candidate against the ledger.
type Decision int

const (
	// Reject means the candidate duplicates an already-counted listen.
	Reject Decision = iota

	// Accept means the candidate is a new listen and should be counted.
	Accept
)

// String returns the decision name for logs and metrics labels.
func (d Decision) String() string {
	if d == Accept {
		return "accept"
	}
	return "reject"
}

// Reason explains a decision. Used as a metrics label and in debug logs.
type Reason string

const (
	// ReasonFirstPlay: no record exists for the song yet.
	ReasonFirstPlay Reason = "first_play"

	// ReasonWindowElapsed: the gap since the last accepted play meets the window.
	ReasonWindowElapsed Reason = "window_elapsed"

	// ReasonQuickReplay: realtime/realtime gap inside the window but at or
	// past the quick-replay floor.
	ReasonQuickReplay Reason = "quick_replay"

	// ReasonWithinWindow: the gap is inside the dedup window. This also covers
	// backdated candidates (negative gap), which never meet any window.
	ReasonWithinWindow Reason = "within_window"

	// ReasonReadFailOpen: the record lookup failed and the engine is
	// configured to fail open.
	ReasonReadFailOpen Reason = "read_fail_open"

	// ReasonReadFailClosed: the record lookup failed and the engine is
	// configured to fail closed.
	ReasonReadFailClosed Reason = "read_fail_closed"
)

// Windows holds the source-pair dedup windows.
type Windows struct {
	// CrossSource applies when the candidate and the last accepted play came
	// from different realtime/remote mechanisms, in either direction.
	CrossSource time.Duration

	// SameRealtime applies to realtime-after-realtime pairs.
	SameRealtime time.Duration

	// SameRemote applies to remote-after-remote pairs.
	SameRemote time.Duration

	// Fallback applies to every other pairing, including manual plays.
	Fallback time.Duration

	// QuickReplayFloor is the minimum gap at which a realtime-after-realtime
	// candidate inside the SameRealtime window is still accepted.
	QuickReplayFloor time.Duration
}

// DefaultWindows returns the production window set.
func DefaultWindows() Windows {
	return Windows{
		CrossSource:      120 * time.Second,
		SameRealtime:     30 * time.Second,
		SameRemote:       60 * time.Second,
		Fallback:         60 * time.Second,
		QuickReplayFloor: 10 * time.Second,
	}
}

// Engine decides whether play candidates are new listens or duplicates.
type Engine struct {
	windows  Windows
	failOpen bool
}

// NewEngine creates an engine with the given windows. failOpen controls the
// policy when the ledger read fails: true favors counting a possibly
// duplicate play over losing a legitimate one.
func NewEngine(windows Windows, failOpen bool) *Engine {
	return &Engine{windows: windows, failOpen: failOpen}
}

// Decide evaluates a candidate against the most recently accepted record for
// the same song. last is nil when the song has never been observed.
//
// The gap is candidate.Timestamp minus last.LastPlayed. A negative gap (a
// backdated candidate) is not special-cased: it can never meet a window, and
// it is below the quick-replay floor, so it is always rejected.
func (e *Engine) Decide(candidate models.PlayCandidate, last *models.PlayRecord) (Decision, Reason) {
	if last == nil {
		return Accept, ReasonFirstPlay
	}

	gap := candidate.Timestamp.Sub(last.LastPlayed)
	window := e.window(candidate.Source, last.TrackingSource)

	if gap >= window {
		return Accept, ReasonWindowElapsed
	}

	if candidate.Source == models.SourceRealtime && last.TrackingSource == models.SourceRealtime &&
		gap >= e.windows.QuickReplayFloor {
		return Accept, ReasonQuickReplay
	}

	return Reject, ReasonWithinWindow
}

// DecideOnReadError applies the configured policy when the lookup of the
// last accepted record failed. Failing open loses a dedup opportunity;
// failing closed loses a legitimate play.
func (e *Engine) DecideOnReadError() (Decision, Reason) {
	if e.failOpen {
		return Accept, ReasonReadFailOpen
	}
	return Reject, ReasonReadFailClosed
}

// FailOpen reports the configured read-error policy.
func (e *Engine) FailOpen() bool {
	return e.failOpen
}

func (e *Engine) window(candidate, last models.Source) time.Duration {
	switch {
	case candidate == models.SourceRealtime && last == models.SourceRealtime:
		return e.windows.SameRealtime
	case candidate == models.SourceRemote && last == models.SourceRemote:
		return e.windows.SameRemote
	case (candidate == models.SourceRealtime && last == models.SourceRemote) ||
		(candidate == models.SourceRemote && last == models.SourceRealtime):
		return e.windows.CrossSource
	default:
		return e.windows.Fallback
	}
}
