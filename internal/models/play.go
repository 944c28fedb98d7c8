// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package models defines the shared domain types for Soundtally: play
// candidates arriving from the event sources, the per-song ledger record,
// and the API response envelope.
package models

import "time"

// Source identifies which mechanism reported a play.
type Source string

const (
	// SourceRealtime is the local playback observer (30s continuous-play heuristic).
	SourceRealtime Source = "realtime"

	// SourceRemote is the periodic recently-played history sync.
	SourceRemote Source = "remote"

	// SourceManual is a play submitted directly through the API.
	SourceManual Source = "manual"
)

// Valid reports whether s is a known source tag.
func (s Source) Valid() bool {
	switch s {
	case SourceRealtime, SourceRemote, SourceManual:
		return true
	}
	return false
}

// PlayCandidate is a reported instance of a song being played, awaiting the
// accept/reject decision. Candidates are produced by the observer, the remote
// sync, and the manual-play endpoint; all three flow through the same ledger
// update path.
type PlayCandidate struct {
	SongID    string    `json:"song_id" validate:"required"`
	Title     string    `json:"title" validate:"required"`
	Artist    string    `json:"artist" validate:"required"`
	Source    Source    `json:"source" validate:"required"`
	Timestamp time.Time `json:"timestamp" validate:"required"`

	// SessionID correlates candidates emitted during one continuous listening
	// session. Only the realtime observer sets it.
	SessionID *string `json:"session_id,omitempty"`
}

// PlayRecord is the durable per-song aggregate. Exactly one record exists per
// SongID; PlayCount only ever increases and FirstTracked is never mutated
// after creation.
type PlayRecord struct {
	SongID         string    `json:"song_id"`
	Title          string    `json:"title"`
	Artist         string    `json:"artist"`
	PlayCount      int64     `json:"play_count"`
	FirstTracked   time.Time `json:"first_tracked"`
	LastPlayed     time.Time `json:"last_played"`
	TrackingSource Source    `json:"tracking_source"`
	PlaySessionID  *string   `json:"play_session_id,omitempty"`
}

// RemoteHistoryItem is one entry from the remote provider's recently-played
// list. LastPlayedAt is the server-reported most-recent-play timestamp.
type RemoteHistoryItem struct {
	SongID       string    `json:"song_id"`
	Title        string    `json:"title"`
	Artist       string    `json:"artist"`
	LastPlayedAt time.Time `json:"last_played_at"`
}

// LedgerTotals are whole-ledger aggregates reported alongside the all-time view.
type LedgerTotals struct {
	TotalSongs int64 `json:"total_songs"`
	TotalPlays int64 `json:"total_plays"`
}
