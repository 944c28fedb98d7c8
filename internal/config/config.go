// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads Soundtally configuration via Koanf v2 with layered
// sources: built-in defaults, an optional YAML file, then environment
// variables (highest priority).
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration for the Soundtally server.
type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Boundary  BoundaryConfig  `koanf:"boundary"`
	Dedup     DedupConfig     `koanf:"dedup"`
	Sync      SyncConfig      `koanf:"sync"`
	Observer  ObserverConfig  `koanf:"observer"`
	Retention RetentionConfig `koanf:"retention"`
	Server    ServerConfig    `koanf:"server"`
	API       APIConfig       `koanf:"api"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// DatabaseConfig configures the DuckDB ledger store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// BoundaryConfig configures the Badger-backed install-boundary store.
type BoundaryConfig struct {
	Path string `koanf:"path"`
}

// DedupConfig configures the deduplication engine windows and policies.
type DedupConfig struct {
	CrossSourceWindow  time.Duration `koanf:"cross_source_window"`
	SameRealtimeWindow time.Duration `koanf:"same_realtime_window"`
	SameRemoteWindow   time.Duration `koanf:"same_remote_window"`
	FallbackWindow     time.Duration `koanf:"fallback_window"`
	QuickReplayFloor   time.Duration `koanf:"quick_replay_floor"`

	// FailOpen accepts a candidate when the ledger read fails, trading a lost
	// dedup opportunity for never dropping a legitimate play. This is a
	// product policy, so it is a flag rather than a hardcoded default.
	FailOpen bool `koanf:"fail_open"`
}

// SyncConfig configures the remote recently-played sync.
type SyncConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	Token   string `koanf:"token"`

	// Interval is both the periodic sync cadence and the cooldown enforced on
	// manual triggers.
	Interval time.Duration `koanf:"interval"`
	Timeout  time.Duration `koanf:"timeout"`

	// PageLimit bounds the number of history items requested per sync.
	PageLimit int `koanf:"page_limit"`
}

// ObserverConfig configures the local playback observer.
type ObserverConfig struct {
	// PlayThreshold is how long a song must play continuously before it
	// counts as a play.
	PlayThreshold time.Duration `koanf:"play_threshold"`
}

// RetentionConfig configures age-based ledger cleanup.
type RetentionConfig struct {
	Enabled       bool          `koanf:"enabled"`
	MaxAge        time.Duration `koanf:"max_age"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// APIConfig configures API behavior.
type APIConfig struct {
	TopLimit        int           `koanf:"top_limit"`
	RecentLimit     int           `koanf:"recent_limit"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateDedup(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DATABASE_PATH must not be empty")
	}
	if c.Boundary.Path == "" {
		return fmt.Errorf("BOUNDARY_PATH must not be empty")
	}
	return nil
}

func (c *Config) validateDedup() error {
	windows := map[string]time.Duration{
		"DEDUP_CROSS_SOURCE_WINDOW":  c.Dedup.CrossSourceWindow,
		"DEDUP_SAME_REALTIME_WINDOW": c.Dedup.SameRealtimeWindow,
		"DEDUP_SAME_REMOTE_WINDOW":   c.Dedup.SameRemoteWindow,
		"DEDUP_FALLBACK_WINDOW":      c.Dedup.FallbackWindow,
	}
	for name, d := range windows {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Dedup.QuickReplayFloor < 0 {
		return fmt.Errorf("DEDUP_QUICK_REPLAY_FLOOR must not be negative, got %s", c.Dedup.QuickReplayFloor)
	}
	if c.Dedup.QuickReplayFloor > c.Dedup.SameRealtimeWindow {
		return fmt.Errorf("DEDUP_QUICK_REPLAY_FLOOR (%s) must not exceed DEDUP_SAME_REALTIME_WINDOW (%s)",
			c.Dedup.QuickReplayFloor, c.Dedup.SameRealtimeWindow)
	}
	return nil
}

func (c *Config) validateSync() error {
	if !c.Sync.Enabled {
		return nil
	}
	if c.Sync.URL == "" {
		return fmt.Errorf("SYNC_URL is required when SYNC_ENABLED=true")
	}
	parsed, err := url.Parse(c.Sync.URL)
	if err != nil {
		return fmt.Errorf("SYNC_URL is invalid: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("SYNC_URL must use http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("SYNC_URL must include a host")
	}
	if c.Sync.Interval < time.Minute {
		return fmt.Errorf("SYNC_INTERVAL must be at least 1m, got %s", c.Sync.Interval)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Observer.PlayThreshold <= 0 {
		return fmt.Errorf("OBSERVER_PLAY_THRESHOLD must be positive, got %s", c.Observer.PlayThreshold)
	}
	if c.Retention.Enabled && c.Retention.MaxAge <= 0 {
		return fmt.Errorf("RETENTION_MAX_AGE must be positive when retention is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "disabled", "":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console", "":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
