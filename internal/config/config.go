// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

// Package config loads and validates the application configuration using
// Koanf v2 with layered sources: built-in defaults, an optional YAML file,
// and environment variables (highest priority).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root application configuration.
type Config struct {
	GitLab  GitLabConfig  `koanf:"gitlab"`
	Sync    SyncConfig    `koanf:"sync"`
	Server  ServerConfig  `koanf:"server"`
	Persist PersistConfig `koanf:"persist"`
	Widgets WidgetsConfig `koanf:"widgets"`
	Logging LoggingConfig `koanf:"logging"`
}

// GitLabConfig configures the upstream GitLab API client.
type GitLabConfig struct {
	// URL is the GitLab instance base URL, e.g. https://gitlab.example.com.
	URL string `koanf:"url" validate:"required,url"`

	// Token is the personal/OAuth access token sent with every request.
	// Token refresh is handled outside this process; the engine only injects
	// whatever token is currently configured.
	Token string `koanf:"token" validate:"required"`

	// PerPage is the pagination page size for list endpoints.
	PerPage int `koanf:"per_page" validate:"min=1,max=100"`

	// Timeout bounds a single HTTP request.
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitRPS caps outbound requests per second. 0 disables the limiter.
	RateLimitRPS float64 `koanf:"rate_limit_rps"`

	// BreakerDisabled turns off the upstream circuit breaker. Intended for
	// tests; leave enabled in production.
	BreakerDisabled bool `koanf:"breaker_disabled"`
}

// SyncConfig configures the orchestrator cadences and retry behavior.
type SyncConfig struct {
	// ShortPollInterval drives merge request, event, and pipeline refreshes.
	ShortPollInterval time.Duration `koanf:"short_poll_interval"`

	// LongPollInterval drives group, user profile, and project refreshes.
	LongPollInterval time.Duration `koanf:"long_poll_interval"`

	// RetryAttempts is the per-fetch retry budget with exponential backoff.
	RetryAttempts int `koanf:"retry_attempts" validate:"min=1"`

	// RetryDelay is the initial backoff delay, doubled per attempt.
	RetryDelay time.Duration `koanf:"retry_delay"`

	// MissingProjectMaxAttempts bounds the missing-projects reconciliation
	// pass: after this many failed fetches a project id enters the negative
	// cache and is skipped until MissingProjectBackoff elapses.
	MissingProjectMaxAttempts int `koanf:"missing_project_max_attempts" validate:"min=1"`

	// MissingProjectBackoff is the negative-cache hold for unfetchable
	// project ids.
	MissingProjectBackoff time.Duration `koanf:"missing_project_backoff"`
}

// ServerConfig configures the read API HTTP server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// CORSOrigins lists allowed origins for the read API.
	CORSOrigins []string `koanf:"cors_origins"`
}

// PersistConfig configures the badger-backed snapshot cache.
type PersistConfig struct {
	// Enabled toggles snapshot save/restore. The engine is fully functional
	// without it; it only loses session continuity.
	Enabled bool `koanf:"enabled"`

	// Path is the badger database directory.
	Path string `koanf:"path"`

	// Key is the snapshot key within the database.
	Key string `koanf:"key"`
}

// WidgetsConfig locates the widget configuration file.
type WidgetsConfig struct {
	// Path is a YAML file holding the list of configured widgets.
	Path string `koanf:"path"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values applied. Defaults
// are layered first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		GitLab: GitLabConfig{
			URL:          "",
			Token:        "",
			PerPage:      100,
			Timeout:      30 * time.Second,
			RateLimitRPS: 10,
		},
		Sync: SyncConfig{
			ShortPollInterval:         60 * time.Second,
			LongPollInterval:          time.Hour,
			RetryAttempts:             3,
			RetryDelay:                2 * time.Second,
			MissingProjectMaxAttempts: 5,
			MissingProjectBackoff:     time.Hour,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8458,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Persist: PersistConfig{
			Enabled: true,
			Path:    "/data/dashboard-cache",
			Key:     "store-snapshot",
		},
		Widgets: WidgetsConfig{
			Path: "widgets.yaml",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration with validator tags plus cross-field
// rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if c.Sync.ShortPollInterval < time.Second {
		return fmt.Errorf("sync.short_poll_interval %v is below 1s", c.Sync.ShortPollInterval)
	}
	if c.Sync.LongPollInterval < c.Sync.ShortPollInterval {
		return fmt.Errorf("sync.long_poll_interval %v is shorter than the short poll interval", c.Sync.LongPollInterval)
	}
	if c.Persist.Enabled && c.Persist.Path == "" {
		return fmt.Errorf("persist.path is required when persistence is enabled")
	}
	return nil
}
