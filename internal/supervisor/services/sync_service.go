// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"

	"github.com/soundtally/soundtally/internal/logging"
)

// SyncManager matches the remote sync manager's lifecycle methods.
type SyncManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SyncService runs the remote sync manager under supervision. Start launches
// the manager's own goroutines, so Serve parks until the context ends and
// then stops it.
type SyncService struct {
	manager SyncManager
	name    string
}

// NewSyncService creates the wrapper.
func NewSyncService(manager SyncManager) *SyncService {
	return &SyncService{manager: manager, name: "remote-sync"}
}

// Serve implements suture.Service.
func (s *SyncService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		logging.Warn().Err(err).Msg("error stopping sync manager")
	}
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *SyncService) String() string {
	return s.name
}
