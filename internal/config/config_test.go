// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 120*time.Second, cfg.Dedup.CrossSourceWindow)
	assert.Equal(t, 30*time.Second, cfg.Dedup.SameRealtimeWindow)
	assert.Equal(t, 60*time.Second, cfg.Dedup.SameRemoteWindow)
	assert.Equal(t, 10*time.Second, cfg.Dedup.QuickReplayFloor)
	assert.True(t, cfg.Dedup.FailOpen)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 30*time.Second, cfg.Observer.PlayThreshold)
	assert.Equal(t, 10, cfg.API.TopLimit)
	assert.Equal(t, 50, cfg.API.RecentLimit)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("DEDUP_FAIL_OPEN", "false")
	t.Setenv("SYNC_INTERVAL", "10m")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Dedup.FailOpen)
	assert.Equal(t, 10*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.CORSOrigins)
}

func TestEnvTransformSkipsUnknownKeys(t *testing.T) {
	assert.Equal(t, "sync.url", envTransformFunc("SYNC_URL"))
	assert.Equal(t, "dedup.quick_replay_floor", envTransformFunc("DEDUP_QUICK_REPLAY_FLOOR"))
	assert.Empty(t, envTransformFunc("PATH"))
	assert.Empty(t, envTransformFunc("HOME"))
}

func TestValidateSync(t *testing.T) {
	cfg := defaultConfig()
	cfg.Sync.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNC_URL is required")

	cfg.Sync.URL = "ftp://history.example"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http or https")

	cfg.Sync.URL = "https://history.example"
	require.NoError(t, cfg.Validate())

	cfg.Sync.Interval = 10 * time.Second
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNC_INTERVAL")
}

func TestValidateDedupWindows(t *testing.T) {
	cfg := defaultConfig()
	cfg.Dedup.SameRemoteWindow = 0
	require.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Dedup.QuickReplayFloor = time.Minute
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUICK_REPLAY_FLOOR")
}

func TestValidateLogging(t *testing.T) {
	cfg := defaultConfig()
	cfg.Logging.Level = "verbose"
	require.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Logging.Format = "xml"
	require.Error(t, cfg.Validate())
}
