package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.True(t, cfg.Socket.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Tracking.MinInterval)
	assert.Equal(t, 10.0, cfg.Tracking.MinDistanceM)
	assert.Equal(t, "granted", cfg.Tracking.Permission)
	assert.NotEmpty(t, cfg.Session.Path)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saarthi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://fleet.example.in
  timeout: 4s
socket:
  enabled: false
tracking:
  min_interval: 2s
  min_distance_m: 25
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://fleet.example.in", cfg.API.BaseURL)
	assert.Equal(t, 4*time.Second, cfg.API.Timeout)
	assert.False(t, cfg.Socket.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Tracking.MinInterval)
	assert.Equal(t, 25.0, cfg.Tracking.MinDistanceM)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, ":9090", cfg.Diag.Addr)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saarthi.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  base_url: https://from-file\n"), 0o644))

	t.Setenv("SAARTHI_API_URL", "https://from-env")
	t.Setenv("SAARTHI_MIN_INTERVAL", "7s")
	t.Setenv("SAARTHI_WS_ENABLED", "false")
	t.Setenv("SAARTHI_LOCATION_PERMISSION", "denied")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://from-env", cfg.API.BaseURL)
	assert.Equal(t, 7*time.Second, cfg.Tracking.MinInterval)
	assert.False(t, cfg.Socket.Enabled)
	assert.Equal(t, "denied", cfg.Tracking.Permission)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestBadEnvValuesFallBack(t *testing.T) {
	t.Setenv("SAARTHI_MIN_INTERVAL", "soon")
	t.Setenv("SAARTHI_WS_ENABLED", "sometimes")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Tracking.MinInterval)
	assert.True(t, cfg.Socket.Enabled)
}
