// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/soundtally/soundtally/internal/models"
)

var base = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func candidate(source models.Source, offset time.Duration) models.PlayCandidate {
	return models.PlayCandidate{
		SongID:    "song-1",
		Title:     "Title",
		Artist:    "Artist",
		Source:    source,
		Timestamp: base.Add(offset),
	}
}

func lastRecord(source models.Source) *models.PlayRecord {
	return &models.PlayRecord{
		SongID:         "song-1",
		Title:          "Title",
		Artist:         "Artist",
		PlayCount:      3,
		FirstTracked:   base.Add(-time.Hour),
		LastPlayed:     base,
		TrackingSource: source,
	}
}

func TestDecideFirstPlay(t *testing.T) {
	engine := NewEngine(DefaultWindows(), true)

	decision, reason := engine.Decide(candidate(models.SourceRealtime, 0), nil)

	assert.Equal(t, Accept, decision)
	assert.Equal(t, ReasonFirstPlay, reason)
}

func TestDecideSourcePairWindows(t *testing.T) {
	tests := []struct {
		name       string
		candidate  models.Source
		last       models.Source
		gap        time.Duration
		want       Decision
		wantReason Reason
	}{
		// Cross-source window is 120s in both directions.
		{"realtime after remote, 90s", models.SourceRealtime, models.SourceRemote, 90 * time.Second, Reject, ReasonWithinWindow},
		{"realtime after remote, 130s", models.SourceRealtime, models.SourceRemote, 130 * time.Second, Accept, ReasonWindowElapsed},
		{"remote after realtime, 90s", models.SourceRemote, models.SourceRealtime, 90 * time.Second, Reject, ReasonWithinWindow},
		{"remote after realtime, 120s exactly", models.SourceRemote, models.SourceRealtime, 120 * time.Second, Accept, ReasonWindowElapsed},

		// Same-realtime window is 30s with the 10s quick-replay floor.
		{"realtime replay at 5s", models.SourceRealtime, models.SourceRealtime, 5 * time.Second, Reject, ReasonWithinWindow},
		{"realtime replay at 10s exactly", models.SourceRealtime, models.SourceRealtime, 10 * time.Second, Accept, ReasonQuickReplay},
		{"realtime replay at 20s", models.SourceRealtime, models.SourceRealtime, 20 * time.Second, Accept, ReasonQuickReplay},
		{"realtime replay at 30s", models.SourceRealtime, models.SourceRealtime, 30 * time.Second, Accept, ReasonWindowElapsed},

		// Remote-remote window is 60s.
		{"remote after remote, 50s", models.SourceRemote, models.SourceRemote, 50 * time.Second, Reject, ReasonWithinWindow},
		{"remote after remote, 70s", models.SourceRemote, models.SourceRemote, 70 * time.Second, Accept, ReasonWindowElapsed},

		// Any other pairing falls back to 60s.
		{"manual after realtime, 30s", models.SourceManual, models.SourceRealtime, 30 * time.Second, Reject, ReasonWithinWindow},
		{"manual after realtime, 61s", models.SourceManual, models.SourceRealtime, 61 * time.Second, Accept, ReasonWindowElapsed},
		{"realtime after manual, 59s", models.SourceRealtime, models.SourceManual, 59 * time.Second, Reject, ReasonWithinWindow},
	}

	engine := NewEngine(DefaultWindows(), true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, reason := engine.Decide(candidate(tt.candidate, tt.gap), lastRecord(tt.last))
			assert.Equal(t, tt.want, decision)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestDecideBackdatedCandidateAlwaysRejected(t *testing.T) {
	engine := NewEngine(DefaultWindows(), true)

	// A negative gap never meets a window and is below the quick-replay
	// floor, so backdated events are rejected for every source pair.
	for _, source := range []models.Source{models.SourceRealtime, models.SourceRemote, models.SourceManual} {
		for _, last := range []models.Source{models.SourceRealtime, models.SourceRemote, models.SourceManual} {
			decision, reason := engine.Decide(candidate(source, -time.Hour), lastRecord(last))
			assert.Equal(t, Reject, decision, "candidate=%s last=%s", source, last)
			assert.Equal(t, ReasonWithinWindow, reason)
		}
	}
}

func TestDecideOnReadError(t *testing.T) {
	open := NewEngine(DefaultWindows(), true)
	decision, reason := open.DecideOnReadError()
	assert.Equal(t, Accept, decision)
	assert.Equal(t, ReasonReadFailOpen, reason)

	closed := NewEngine(DefaultWindows(), false)
	decision, reason = closed.DecideOnReadError()
	assert.Equal(t, Reject, decision)
	assert.Equal(t, ReasonReadFailClosed, reason)
}

func TestCustomWindows(t *testing.T) {
	windows := Windows{
		CrossSource:      10 * time.Second,
		SameRealtime:     4 * time.Second,
		SameRemote:       6 * time.Second,
		Fallback:         8 * time.Second,
		QuickReplayFloor: 2 * time.Second,
	}
	engine := NewEngine(windows, true)

	decision, _ := engine.Decide(candidate(models.SourceRemote, 7*time.Second), lastRecord(models.SourceRemote))
	assert.Equal(t, Accept, decision)

	decision, reason := engine.Decide(candidate(models.SourceRealtime, 3*time.Second), lastRecord(models.SourceRealtime))
	assert.Equal(t, Accept, decision)
	assert.Equal(t, ReasonQuickReplay, reason)
}
