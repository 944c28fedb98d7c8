// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/soundtally/soundtally/internal/dedup"
	"github.com/soundtally/soundtally/internal/models"
	"github.com/soundtally/soundtally/internal/observer"
	"github.com/soundtally/soundtally/internal/validation"
)

// manualPlayRequest is the body of POST /api/v1/plays. The timestamp is
// optional; an absent timestamp means "now".
type manualPlayRequest struct {
	SongID    string     `json:"song_id" validate:"required"`
	Title     string     `json:"title" validate:"required"`
	Artist    string     `json:"artist" validate:"required"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// playOutcome is the decision report returned for a submitted play.
type playOutcome struct {
	Decision  string             `json:"decision"`
	Reason    string             `json:"reason"`
	Record    *models.PlayRecord `json:"record,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// SubmitPlay records a manually reported play. Accepted plays return 201,
// rejected duplicates return 200 with the rejection reason.
func (h *Handler) SubmitPlay(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req manualPlayRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Request body is not valid JSON", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	timestamp := time.Now()
	if req.Timestamp != nil {
		timestamp = *req.Timestamp
	}

	candidate := models.PlayCandidate{
		SongID:    req.SongID,
		Title:     req.Title,
		Artist:    req.Artist,
		Source:    models.SourceManual,
		Timestamp: timestamp,
	}

	outcome, err := h.recorder.RecordPlay(r.Context(), candidate)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "LEDGER_ERROR", "Failed to record play", err)
		return
	}

	status := http.StatusOK
	if outcome.Decision == dedup.Accept {
		status = http.StatusCreated
	}
	respondData(w, status, playOutcome{
		Decision:  outcome.Decision.String(),
		Reason:    string(outcome.Reason),
		Record:    outcome.Record,
		Timestamp: timestamp,
	}, start)
}

// webhookTrackRequest is the body of POST /api/v1/webhook/playing.
type webhookTrackRequest struct {
	SongID string `json:"song_id" validate:"required"`
	Title  string `json:"title" validate:"required"`
	Artist string `json:"artist" validate:"required"`
}

// WebhookPlaying reports that a track is currently playing. The observer
// counts the play once the track survives the continuous-play threshold.
func (h *Handler) WebhookPlaying(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.obs == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "Playback observer is not enabled", nil)
		return
	}

	var req webhookTrackRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Request body is not valid JSON", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	h.obs.NowPlaying(observer.Track{
		SongID: req.SongID,
		Title:  req.Title,
		Artist: req.Artist,
	})
	respondData(w, http.StatusAccepted, map[string]string{"state": "playing", "song_id": req.SongID}, start)
}

// WebhookStopped reports that playback stopped. Any pending play for the
// current track is discarded and the listening session ends.
func (h *Handler) WebhookStopped(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.obs == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "Playback observer is not enabled", nil)
		return
	}

	h.obs.Stopped()
	respondData(w, http.StatusAccepted, map[string]string{"state": "stopped"}, start)
}

func respondValidationError(w http.ResponseWriter, verr *validation.RequestValidationError) {
	respondJSON(w, http.StatusBadRequest, &models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
		Error: &models.APIError{
			Code:    "VALIDATION_ERROR",
			Message: "Request validation failed",
			Details: verr.Error(),
		},
	})
}
