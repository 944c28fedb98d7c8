// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main is the entry point for the Soundtally server.
//
// Soundtally reconciles play reports from three sources (the local playback
// observer, the periodic remote history sync, and manual API submissions)
// into a single deduplicated per-song play ledger.
//
// Startup order:
//
//  1. Configuration (koanf: defaults, optional config.yaml, environment)
//  2. Install boundary store (BadgerDB, set once on first start)
//  3. Play ledger (DuckDB)
//  4. Dedup engine, ledger service, and change notifier
//  5. WebSocket hub, change relay, remote sync, playback observer
//  6. HTTP server under the suture supervision tree
//
// Shutdown is graceful on SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soundtally/soundtally/internal/api"
	"github.com/soundtally/soundtally/internal/boundary"
	"github.com/soundtally/soundtally/internal/config"
	"github.com/soundtally/soundtally/internal/database"
	"github.com/soundtally/soundtally/internal/dedup"
	"github.com/soundtally/soundtally/internal/ledger"
	"github.com/soundtally/soundtally/internal/logging"
	"github.com/soundtally/soundtally/internal/observer"
	"github.com/soundtally/soundtally/internal/query"
	"github.com/soundtally/soundtally/internal/supervisor"
	"github.com/soundtally/soundtally/internal/supervisor/services"
	"github.com/soundtally/soundtally/internal/sync"
	"github.com/soundtally/soundtally/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Bool("sync_enabled", cfg.Sync.Enabled).
		Bool("retention_enabled", cfg.Retention.Enabled).
		Msg("Starting Soundtally")

	// Install boundary first: every other component needs it, and it must be
	// recorded before the first sync pass can run.
	boundaryStore, err := boundary.Open(cfg.Boundary.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open boundary store")
	}
	defer func() {
		if err := boundaryStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing boundary store")
		}
	}()

	installBoundary, err := boundaryStore.GetOrInit(time.Now())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize install boundary")
	}
	logging.Info().Time("install_boundary", installBoundary).Msg("Install boundary loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize ledger store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing ledger store")
		}
	}()

	engine := dedup.NewEngine(dedup.Windows{
		CrossSource:      cfg.Dedup.CrossSourceWindow,
		SameRealtime:     cfg.Dedup.SameRealtimeWindow,
		SameRemote:       cfg.Dedup.SameRemoteWindow,
		Fallback:         cfg.Dedup.FallbackWindow,
		QuickReplayFloor: cfg.Dedup.QuickReplayFloor,
	}, cfg.Dedup.FailOpen)

	notifier := ledger.NewNotifier(logging.NewWatermillAdapter())
	defer func() {
		if err := notifier.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing change notifier")
		}
	}()

	ledgerService := ledger.NewService(db, engine, notifier)
	queryService := query.NewService(db, installBoundary, cfg.API.TopLimit, cfg.API.RecentLimit)

	hub := websocket.NewHub()
	relay := websocket.NewRelay(notifier, hub)

	obs := observer.New(ledgerService, cfg.Observer.PlayThreshold)
	defer obs.Close()

	var syncManager *sync.Manager
	if cfg.Sync.Enabled {
		provider := sync.NewHTTPProvider(&cfg.Sync)
		syncManager = sync.NewManager(ledgerService, provider, &cfg.Sync, installBoundary)
		syncManager.SetOnSyncCompleted(func(accepted, processed int) {
			hub.BroadcastSyncCompleted(accepted, processed)
		})
	}

	// The api.SyncController parameter must stay a nil interface when sync
	// is disabled, not a typed nil pointer.
	var syncCtl api.SyncController
	if syncManager != nil {
		syncCtl = syncManager
	}

	handler := api.NewHandler(queryService, ledgerService, syncCtl, db, obs, hub, &cfg.API)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler, &cfg.API),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	if cfg.Retention.Enabled {
		tree.AddDataService(services.NewRetentionService(db, cfg.Retention.MaxAge, cfg.Retention.SweepInterval))
		logging.Info().Dur("max_age", cfg.Retention.MaxAge).Msg("Retention sweeper added")
	}

	tree.AddMessagingService(services.NewRunnerService("websocket-hub", hub))
	tree.AddMessagingService(services.NewRunnerService("ledger-relay", relay))
	if syncManager != nil {
		tree.AddMessagingService(services.NewSyncService(syncManager))
		logging.Info().Str("url", cfg.Sync.URL).Dur("interval", cfg.Sync.Interval).Msg("Remote sync added")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Soundtally stopped gracefully")
}
