// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the reconciliation pipeline:
// - dedup decisions and ledger writes
// - remote history sync
// - query layer latency
// - API and WebSocket surfaces

var (
	// Dedup / Ledger Metrics
	PlaysAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plays_accepted_total",
			Help: "Total number of play candidates accepted into the ledger",
		},
		[]string{"source", "reason"},
	)

	PlaysRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plays_rejected_total",
			Help: "Total number of play candidates rejected as duplicates",
		},
		[]string{"source", "reason"},
	)

	LedgerWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_write_errors_total",
			Help: "Total number of failed ledger record writes",
		},
	)

	LedgerReadErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_read_errors_total",
			Help: "Total number of failed ledger record reads during reconciliation",
		},
	)

	// Sync Operation Metrics
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of remote history sync passes in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
	)

	SyncItemsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_items_processed_total",
			Help: "Total number of remote history items processed during sync",
		},
	)

	SyncItemsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_items_skipped_total",
			Help: "Total number of remote history items skipped during sync",
		},
		[]string{"reason"}, // "before_boundary", "malformed"
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_errors_total",
			Help: "Total number of sync errors",
		},
		[]string{"error_type"}, // "provider", "ledger"
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of last successful sync",
		},
	)

	// Query Layer Metrics
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "query_duration_seconds",
			Help:    "Duration of ledger view queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"view"}, // "today", "week", "recent", "all_time"
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Retention Metrics
	RetentionRecordsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_records_purged_total",
			Help: "Total number of play records removed by retention sweeps",
		},
	)
)

// RecordDecision records a dedup decision outcome.
func RecordDecision(accepted bool, source, reason string) {
	if accepted {
		PlaysAccepted.WithLabelValues(source, reason).Inc()
	} else {
		PlaysRejected.WithLabelValues(source, reason).Inc()
	}
}

// RecordSyncPass records the outcome of one sync pass.
func RecordSyncPass(duration time.Duration, itemsProcessed int, err error) {
	SyncDuration.Observe(duration.Seconds())
	SyncItemsProcessed.Add(float64(itemsProcessed))
	if err != nil {
		SyncErrors.WithLabelValues("provider").Inc()
		return
	}
	SyncLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordQuery records the latency of one ledger view query.
func RecordQuery(view string, duration time.Duration) {
	QueryDuration.WithLabelValues(view).Observe(duration.Seconds())
}
