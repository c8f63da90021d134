// Package config loads agent configuration: defaults, then an optional
// YAML file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the agents.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Socket   SocketConfig   `yaml:"socket"`
	Session  SessionConfig  `yaml:"session"`
	Tracking TrackingConfig `yaml:"tracking"`
	Diag     DiagConfig     `yaml:"diag"`
	Log      LogConfig      `yaml:"log"`
}

// APIConfig points at the backend REST surface.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SocketConfig points at the bidirectional channel. Enabled=false runs
// the app REST-only, which is fully supported.
type SocketConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// SessionConfig locates the persisted {user, token} entry.
type SessionConfig struct {
	Path string `yaml:"path"`
}

// TrackingConfig tunes the sampler and dispatcher.
type TrackingConfig struct {
	MinInterval   time.Duration `yaml:"min_interval"`
	MinDistanceM  float64       `yaml:"min_distance_m"`
	SimTick       time.Duration `yaml:"sim_tick"`
	SimSpeedKmh   float64       `yaml:"sim_speed_kmh"`
	PushPerSecond float64       `yaml:"push_per_second"`
	PushBurst     int           `yaml:"push_burst"`
	// Permission simulates the platform prompt answer for the headless
	// agent: "granted" or "denied".
	Permission string `yaml:"permission"`
}

// DiagConfig configures the agent's diagnostics listener.
type DiagConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level string `yaml:"level"`
}

func defaults() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		API:     APIConfig{BaseURL: "http://localhost:8000", Timeout: 10 * time.Second},
		Socket:  SocketConfig{URL: "ws://localhost:8000/ws", Enabled: true},
		Session: SessionConfig{Path: filepath.Join(home, ".saarthi", "session.json")},
		Tracking: TrackingConfig{
			MinInterval:   5 * time.Second,
			MinDistanceM:  10,
			SimTick:       time.Second,
			SimSpeedKmh:   30,
			PushPerSecond: 1,
			PushBurst:     3,
			Permission:    "granted",
		},
		Diag: DiagConfig{Addr: ":9090"},
		Log:  LogConfig{Level: "info"},
	}
}

// Load builds the configuration. path may be "" to skip the file layer.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.API.BaseURL = getEnv("SAARTHI_API_URL", c.API.BaseURL)
	c.API.Timeout = getDurationEnv("SAARTHI_API_TIMEOUT", c.API.Timeout)
	c.Socket.URL = getEnv("SAARTHI_WS_URL", c.Socket.URL)
	c.Socket.Enabled = getBoolEnv("SAARTHI_WS_ENABLED", c.Socket.Enabled)
	c.Session.Path = getEnv("SAARTHI_SESSION_PATH", c.Session.Path)
	c.Tracking.MinInterval = getDurationEnv("SAARTHI_MIN_INTERVAL", c.Tracking.MinInterval)
	c.Tracking.MinDistanceM = getFloatEnv("SAARTHI_MIN_DISTANCE_M", c.Tracking.MinDistanceM)
	c.Tracking.SimTick = getDurationEnv("SAARTHI_SIM_TICK", c.Tracking.SimTick)
	c.Tracking.SimSpeedKmh = getFloatEnv("SAARTHI_SIM_SPEED_KMH", c.Tracking.SimSpeedKmh)
	c.Tracking.Permission = getEnv("SAARTHI_LOCATION_PERMISSION", c.Tracking.Permission)
	c.Diag.Addr = getEnv("SAARTHI_DIAG_ADDR", c.Diag.Addr)
	c.Log.Level = getEnv("SAARTHI_LOG_LEVEL", c.Log.Level)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
