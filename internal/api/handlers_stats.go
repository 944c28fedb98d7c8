// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"
	"time"
)

// StatsToday returns the ranked plays for the current local day.
func (h *Handler) StatsToday(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	records, err := h.queries.Today(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to compute today view", err)
		return
	}
	respondData(w, http.StatusOK, records, start)
}

// StatsWeek returns the ranked plays for the trailing seven days.
func (h *Handler) StatsWeek(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	records, err := h.queries.ThisWeek(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to compute week view", err)
		return
	}
	respondData(w, http.StatusOK, records, start)
}

// StatsRecent returns the most recently played songs, newest first.
func (h *Handler) StatsRecent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	records, err := h.queries.RecentlyPlayed(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to compute recent view", err)
		return
	}
	respondData(w, http.StatusOK, records, start)
}

// StatsAllTime returns the whole-ledger top list plus totals.
func (h *Handler) StatsAllTime(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	view, err := h.queries.AllTime(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to compute all-time view", err)
		return
	}
	respondData(w, http.StatusOK, view, start)
}
