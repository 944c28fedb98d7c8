// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package metrics provides Prometheus metrics collection and export.

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8480/metrics

# Available Metrics

Dedup and ledger:
  - plays_accepted_total: accepted play candidates (counter)
    Labels: source, reason
  - plays_rejected_total: rejected play candidates (counter)
    Labels: source, reason
  - ledger_write_errors_total: failed ledger writes (counter)
  - ledger_read_errors_total: failed ledger reads (counter)

Remote history sync:
  - sync_duration_seconds: sync pass duration (histogram)
  - sync_items_processed_total: history items processed (counter)
  - sync_items_skipped_total: history items skipped (counter)
    Labels: reason (before_boundary, malformed)
  - sync_errors_total: sync failures (counter)
    Labels: error_type
  - sync_last_success_timestamp: Unix time of last successful sync (gauge)

Query layer:
  - query_duration_seconds: ledger view query latency (histogram)
    Labels: view (today, week, recent, all_time)

API and WebSocket:
  - api_requests_total, api_request_duration_seconds
  - websocket_connections, websocket_messages_sent_total

All recording functions are safe for concurrent use; the Prometheus client
handles synchronization internally. Labels are limited to fixed constants so
cardinality stays bounded.
*/
package metrics
