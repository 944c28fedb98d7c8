// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/soundtally/config.yaml",
	"/etc/soundtally/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:      "/data/soundtally.duckdb",
			MaxMemory: "512MB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		Boundary: BoundaryConfig{
			Path: "/data/boundary",
		},
		Dedup: DedupConfig{
			CrossSourceWindow:  120 * time.Second,
			SameRealtimeWindow: 30 * time.Second,
			SameRemoteWindow:   60 * time.Second,
			FallbackWindow:     60 * time.Second,
			QuickReplayFloor:   10 * time.Second,
			FailOpen:           true,
		},
		Sync: SyncConfig{
			Enabled:   false,
			URL:       "",
			Token:     "",
			Interval:  5 * time.Minute,
			Timeout:   30 * time.Second,
			PageLimit: 100,
		},
		Observer: ObserverConfig{
			PlayThreshold: 30 * time.Second,
		},
		Retention: RetentionConfig{
			Enabled:       false,
			MaxAge:        365 * 24 * time.Hour,
			SweepInterval: 24 * time.Hour,
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8480,
			Timeout: 30 * time.Second,
		},
		API: APIConfig{
			TopLimit:        10,
			RecentLimit:     50,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration with layered sources (highest priority wins):
// environment variables > config file > built-in defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are the config paths parsed as comma-separated slices when
// they arrive as env var strings.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so stray environment noise never pollutes
// the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Database mappings
		"database_path":       "database.path",
		"database_max_memory": "database.max_memory",
		"database_threads":    "database.threads",
		"boundary_path":       "boundary.path",

		// Dedup mappings
		"dedup_cross_source_window":  "dedup.cross_source_window",
		"dedup_same_realtime_window": "dedup.same_realtime_window",
		"dedup_same_remote_window":   "dedup.same_remote_window",
		"dedup_fallback_window":      "dedup.fallback_window",
		"dedup_quick_replay_floor":   "dedup.quick_replay_floor",
		"dedup_fail_open":            "dedup.fail_open",

		// Sync mappings
		"sync_enabled":    "sync.enabled",
		"sync_url":        "sync.url",
		"sync_token":      "sync.token",
		"sync_interval":   "sync.interval",
		"sync_timeout":    "sync.timeout",
		"sync_page_limit": "sync.page_limit",

		// Observer mappings
		"observer_play_threshold": "observer.play_threshold",

		// Retention mappings
		"retention_enabled":        "retention.enabled",
		"retention_max_age":        "retention.max_age",
		"retention_sweep_interval": "retention.sweep_interval",

		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// API mappings
		"api_top_limit":         "api.top_limit",
		"api_recent_limit":      "api.recent_limit",
		"api_rate_limit_reqs":   "api.rate_limit_reqs",
		"api_rate_limit_window": "api.rate_limit_window",
		"cors_origins":          "api.cors_origins",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
