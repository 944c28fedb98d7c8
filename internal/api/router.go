// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soundtally/soundtally/internal/config"
)

// NewRouter builds the HTTP routing tree for the service.
func NewRouter(handler *Handler, cfg *config.APIConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))

	// Health endpoints get a permissive limit so monitoring probes never
	// starve out real traffic.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/live", handler.HealthLive)
		r.Get("/ready", handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
		r.Use(prometheusMetrics)

		r.Get("/stats/today", handler.StatsToday)
		r.Get("/stats/week", handler.StatsWeek)
		r.Get("/stats/recent", handler.StatsRecent)
		r.Get("/stats/all-time", handler.StatsAllTime)

		r.Post("/plays", handler.SubmitPlay)
		r.Post("/webhook/playing", handler.WebhookPlaying)
		r.Post("/webhook/stopped", handler.WebhookStopped)

		r.Post("/sync", handler.TriggerSync)
		r.Delete("/ledger", handler.ResetLedger)
	})

	// The websocket endpoint sits outside the rate-limited group; a single
	// long-lived connection replaces polling.
	r.Get("/ws", handler.WebSocket)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
