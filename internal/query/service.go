// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package query implements the read-side views over the play ledger: ranked
// time-window views, the recently-played list, and all-time totals.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/soundtally/soundtally/internal/metrics"
	"github.com/soundtally/soundtally/internal/models"
)

// Store is the read interface the views are computed from.
type Store interface {
	TopByCount(ctx context.Context, from, to *time.Time, limit int) ([]*models.PlayRecord, error)
	RecentlyPlayed(ctx context.Context, limit int) ([]*models.PlayRecord, error)
	Totals(ctx context.Context) (models.LedgerTotals, error)
}

// AllTimeView pairs the top-played list with whole-ledger totals.
type AllTimeView struct {
	Top    []*models.PlayRecord `json:"top"`
	Totals models.LedgerTotals  `json:"totals"`
}

// Service computes the ledger views. The clock and timezone are injectable
// so the local-day boundary is testable.
type Service struct {
	store    Store
	boundary time.Time
	location *time.Location
	now      func() time.Time

	topLimit    int
	recentLimit int
}

// Option customizes a Service.
type Option func(*Service)

// WithNow overrides the clock. Used by tests.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the timezone the local day is computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

// NewService creates the query service. boundary is the install boundary;
// time windows never reach before it, so pre-install remote history that was
// never imported cannot be implied by a view either.
func NewService(store Store, boundary time.Time, topLimit, recentLimit int, opts ...Option) *Service {
	s := &Service{
		store:       store,
		boundary:    boundary,
		location:    time.Local,
		now:         time.Now,
		topLimit:    topLimit,
		recentLimit: recentLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the ranked plays for the current local calendar day.
func (s *Service) Today(ctx context.Context) ([]*models.PlayRecord, error) {
	started := time.Now()
	now := s.now().In(s.location)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	to := from.Add(24 * time.Hour)
	from = s.clampToBoundary(from)

	records, err := s.store.TopByCount(ctx, &from, &to, s.topLimit)
	if err != nil {
		return nil, fmt.Errorf("today view: %w", err)
	}
	metrics.RecordQuery("today", time.Since(started))
	return records, nil
}

// ThisWeek returns the ranked plays for the trailing seven days.
func (s *Service) ThisWeek(ctx context.Context) ([]*models.PlayRecord, error) {
	started := time.Now()
	now := s.now()
	from := s.clampToBoundary(now.Add(-7 * 24 * time.Hour))
	to := now.Add(time.Nanosecond) // inclusive of now

	records, err := s.store.TopByCount(ctx, &from, &to, s.topLimit)
	if err != nil {
		return nil, fmt.Errorf("week view: %w", err)
	}
	metrics.RecordQuery("week", time.Since(started))
	return records, nil
}

// RecentlyPlayed returns the most recently played songs, newest first.
func (s *Service) RecentlyPlayed(ctx context.Context) ([]*models.PlayRecord, error) {
	started := time.Now()
	records, err := s.store.RecentlyPlayed(ctx, s.recentLimit)
	if err != nil {
		return nil, fmt.Errorf("recent view: %w", err)
	}
	metrics.RecordQuery("recent", time.Since(started))
	return records, nil
}

// AllTime returns the top-played songs over the whole ledger plus totals.
func (s *Service) AllTime(ctx context.Context) (AllTimeView, error) {
	started := time.Now()
	top, err := s.store.TopByCount(ctx, nil, nil, s.topLimit)
	if err != nil {
		return AllTimeView{}, fmt.Errorf("all-time view: %w", err)
	}
	totals, err := s.store.Totals(ctx)
	if err != nil {
		return AllTimeView{}, fmt.Errorf("all-time totals: %w", err)
	}
	metrics.RecordQuery("all_time", time.Since(started))
	return AllTimeView{Top: top, Totals: totals}, nil
}

func (s *Service) clampToBoundary(from time.Time) time.Time {
	if from.Before(s.boundary) {
		return s.boundary
	}
	return from
}
