// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import "context"

// Runner is implemented by components with a blocking run loop: the
// websocket hub and the ledger change relay.
type Runner interface {
	RunWithContext(ctx context.Context) error
}

// RunnerService wraps a Runner as a supervised service. A crash restarts
// the run loop with fresh state.
type RunnerService struct {
	runner Runner
	name   string
}

// NewRunnerService creates the wrapper. name appears in supervisor logs.
func NewRunnerService(name string, runner Runner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.runner.RunWithContext(ctx)
}

// String identifies the service in supervisor logs.
func (s *RunnerService) String() string {
	return s.name
}
