// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/soundtally/soundtally/internal/config"
	"github.com/soundtally/soundtally/internal/logging"
	"github.com/soundtally/soundtally/internal/metrics"
	"github.com/soundtally/soundtally/internal/models"
)

// Provider fetches the remote recently-played history.
type Provider interface {
	FetchRecentlyPlayed(ctx context.Context, limit int) ([]models.RemoteHistoryItem, error)
}

// historyResponse is the remote provider's wire format.
type historyResponse struct {
	Items []models.RemoteHistoryItem `json:"items"`
}

// HTTPProvider talks to the remote listening-history API. All calls go
// through a circuit breaker so a down provider degrades to skipped sync
// passes instead of piling up timed-out requests.
//
// The breaker uses real time for its recovery window. Tests should exercise
// the HTTP behavior directly rather than waiting out breaker state.
type HTTPProvider struct {
	baseURL string
	token   string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[[]models.RemoteHistoryItem]
}

const breakerName = "remote-history"

// NewHTTPProvider creates the provider from sync configuration.
func NewHTTPProvider(cfg *config.SyncConfig) *HTTPProvider {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[[]models.RemoteHistoryItem](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &HTTPProvider{
		baseURL: cfg.URL,
		token:   cfg.Token,
		client:  &http.Client{Timeout: cfg.Timeout},
		cb:      cb,
	}
}

// FetchRecentlyPlayed retrieves up to limit history items, newest first.
func (p *HTTPProvider) FetchRecentlyPlayed(ctx context.Context, limit int) ([]models.RemoteHistoryItem, error) {
	items, err := p.cb.Execute(func() ([]models.RemoteHistoryItem, error) {
		return p.fetch(ctx, limit)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("remote history provider unavailable: %w", err)
		}
		return nil, err
	}
	return items, nil
}

func (p *HTTPProvider) fetch(ctx context.Context, limit int) ([]models.RemoteHistoryItem, error) {
	url := p.baseURL + "/recently-played?limit=" + strconv.Itoa(limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch remote history: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote history returned status %d", resp.StatusCode)
	}

	var parsed historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode remote history: %w", err)
	}
	return parsed.Items, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
