// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api exposes the HTTP surface: stat views, play submission, the
// playback webhook, sync control, and the WebSocket refresh stream.
package api

import (
	"context"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/soundtally/soundtally/internal/config"
	"github.com/soundtally/soundtally/internal/ledger"
	"github.com/soundtally/soundtally/internal/logging"
	"github.com/soundtally/soundtally/internal/models"
	"github.com/soundtally/soundtally/internal/observer"
	"github.com/soundtally/soundtally/internal/query"
	"github.com/soundtally/soundtally/internal/websocket"
)

// Recorder is the ledger update path for manually submitted plays.
type Recorder interface {
	RecordPlay(ctx context.Context, candidate models.PlayCandidate) (ledger.Outcome, error)
}

// SyncController exposes manual sync control.
type SyncController interface {
	TriggerSync(ctx context.Context) error
	LastSyncTime() time.Time
}

// LedgerAdmin exposes the destructive admin operations.
type LedgerAdmin interface {
	Ping(ctx context.Context) error
	DeleteAll(ctx context.Context) error
}

// PlaybackObserver receives playback state reports from the webhook.
type PlaybackObserver interface {
	NowPlaying(track observer.Track)
	Stopped()
}

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	queries  *query.Service
	recorder Recorder
	syncCtl  SyncController
	admin    LedgerAdmin
	obs      PlaybackObserver
	hub      *websocket.Hub
	cfg      *config.APIConfig
}

// NewHandler wires the HTTP handlers to their services. syncCtl, obs, and
// hub may be nil when the corresponding subsystem is disabled.
func NewHandler(queries *query.Service, recorder Recorder, syncCtl SyncController,
	admin LedgerAdmin, obs PlaybackObserver, hub *websocket.Hub, cfg *config.APIConfig) *Handler {
	return &Handler{
		queries:  queries,
		recorder: recorder,
		syncCtl:  syncCtl,
		admin:    admin,
		obs:      obs,
		hub:      hub,
		cfg:      cfg,
	}
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]string{"status": "alive"}, time.Now())
}

// HealthReady reports readiness: the ledger store must answer a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.admin.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "Ledger store not available", err)
		return
	}

	data := map[string]interface{}{"status": "ready"}
	if h.syncCtl != nil {
		if last := h.syncCtl.LastSyncTime(); !last.IsZero() {
			data["last_sync"] = last.UTC().Format(time.RFC3339)
		}
	}
	respondData(w, http.StatusOK, data, start)
}

// WebSocket upgrades the connection and attaches the client to the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "WebSocket is not enabled", nil)
		return
	}

	upgrader := gorillaws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkWebSocketOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

// checkWebSocketOrigin validates connection origins against the configured
// CORS list. Non-browser clients without an Origin header are allowed; the
// stream only carries refresh hints.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if h.cfg == nil {
		return true
	}
	for _, allowed := range h.cfg.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("websocket connection rejected")
	return false
}
