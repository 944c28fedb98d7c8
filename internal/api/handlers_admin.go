// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/soundtally/soundtally/internal/logging"
	"github.com/soundtally/soundtally/internal/sync"
)

// TriggerSync starts a manual remote sync pass. Returns 202 once the pass is
// accepted, or 429 while the cooldown from the previous pass is still active.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.syncCtl == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "Remote sync is not enabled", nil)
		return
	}

	if err := h.syncCtl.TriggerSync(r.Context()); err != nil {
		if errors.Is(err, sync.ErrCooldown) {
			respondError(w, http.StatusTooManyRequests, "TOO_MANY_REQUESTS",
				"A sync pass ran recently; try again later", nil)
			return
		}
		respondError(w, http.StatusBadGateway, "SYNC_ERROR", "Sync pass failed", err)
		return
	}

	respondData(w, http.StatusAccepted, map[string]string{"status": "synced"}, start)
}

// ResetLedger deletes every play record. The install boundary is kept, so a
// following sync pass does not re-import pre-install history.
func (h *Handler) ResetLedger(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.DeleteAll(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "LEDGER_ERROR", "Failed to reset ledger", err)
		return
	}

	logging.Warn().Str("remote_addr", sanitizeLogValue(r.RemoteAddr)).Msg("ledger reset")
	w.WriteHeader(http.StatusNoContent)
}
