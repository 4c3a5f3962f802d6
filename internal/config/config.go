// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/olegiv/agentblog/internal/kv"
	"github.com/olegiv/agentblog/internal/model"
	"github.com/olegiv/agentblog/internal/scheduler"
	"github.com/olegiv/agentblog/internal/util"
	"github.com/olegiv/agentblog/internal/webhook"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "AGENTBLOG_"

// Index maintenance modes.
const (
	IndexModeDirect     = "direct"
	IndexModeSerialized = "serialized"
)

// ScheduleOff disables the index reconcile job.
const ScheduleOff = "off"

// MinWebhookSecretLength is the minimum webhook signing secret length.
const MinWebhookSecretLength = 16

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ServerHost string `env:"SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"SERVER_PORT" envDefault:"8080"`
	Env        string `env:"ENV" envDefault:"development"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage
	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"` // memory, redis or sqlite
	RedisURL     string `env:"REDIS_URL"`
	RedisPrefix  string `env:"REDIS_PREFIX" envDefault:"agentblog:"`
	SQLitePath   string `env:"SQLITE_PATH" envDefault:"./data/agentblog.db"`

	// Site defaults, seeded into config:site when absent
	SiteTitle       string `env:"SITE_TITLE" envDefault:"Agent Blog"`
	SiteURL         string `env:"SITE_URL"`
	SiteDescription string `env:"SITE_DESCRIPTION"`

	// Webhook
	WebhookURL          string        `env:"WEBHOOK_URL"`
	WebhookSecret       string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout      time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
	WebhookWorkers      int           `env:"WEBHOOK_WORKERS" envDefault:"2"`
	WebhookQueueSize    int           `env:"WEBHOOK_QUEUE_SIZE" envDefault:"100"`
	WebhookAllowPrivate bool          `env:"WEBHOOK_ALLOW_PRIVATE" envDefault:"false"`

	// Write path
	DefaultRateLimit  int    `env:"DEFAULT_RATE_LIMIT" envDefault:"10"` // posts per hour per key
	IndexMode         string `env:"INDEX_MODE" envDefault:"direct"`
	IndexQueueSize    int    `env:"INDEX_QUEUE_SIZE" envDefault:"64"`
	ReconcileSchedule string `env:"RECONCILE_SCHEDULE" envDefault:"*/15 * * * *"` // "off" disables

	// Per-IP throttle in front of the API
	APIRateLimit float64 `env:"API_RPS" envDefault:"10"`
	APIBurst     int     `env:"API_BURST" envDefault:"20"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// SlogLevel maps LogLevel to a slog level.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Serialized reports whether index updates go through a single writer.
func (c Config) Serialized() bool {
	return c.IndexMode == IndexModeSerialized
}

// ReconcileEnabled reports whether the index reconcile job should run.
func (c Config) ReconcileEnabled() bool {
	return c.ReconcileSchedule != ScheduleOff
}

// StoreConfig returns the key-value store settings.
func (c Config) StoreConfig() kv.Config {
	return kv.Config{
		Backend:    c.StoreBackend,
		RedisURL:   c.RedisURL,
		Prefix:     c.RedisPrefix,
		SQLitePath: c.SQLitePath,
	}
}

// WebhookConfig returns the dispatcher settings.
func (c Config) WebhookConfig() webhook.Config {
	return webhook.Config{
		URL:          c.WebhookURL,
		Secret:       c.WebhookSecret,
		Timeout:      c.WebhookTimeout,
		Workers:      c.WebhookWorkers,
		QueueSize:    c.WebhookQueueSize,
		BlockPrivate: !c.WebhookAllowPrivate,
	}
}

// SiteDefaults returns the site settings used until config:site is written.
func (c Config) SiteDefaults() model.SiteConfig {
	return model.SiteConfig{
		Title:       c.SiteTitle,
		Description: c.SiteDescription,
		BaseURL:     strings.TrimRight(c.SiteURL, "/"),
	}
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.WebhookURL != "" && cfg.WebhookSecret == "" && !cfg.IsDevelopment() {
		slog.Warn("AGENTBLOG_WEBHOOK_SECRET is not set; webhook deliveries will be unsigned")
	}

	return cfg, nil
}

// Validate checks field values and cross-field requirements.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("AGENTBLOG_SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("AGENTBLOG_LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel))
	}

	switch c.StoreBackend {
	case kv.BackendMemory:
	case kv.BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("AGENTBLOG_REDIS_URL is required when AGENTBLOG_STORE_BACKEND=redis"))
		}
	case kv.BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("AGENTBLOG_SQLITE_PATH is required when AGENTBLOG_STORE_BACKEND=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("AGENTBLOG_STORE_BACKEND must be memory, redis or sqlite, got %q", c.StoreBackend))
	}

	if c.SiteURL != "" {
		if _, err := util.ParseHTTPURL(c.SiteURL); err != nil {
			errs = append(errs, fmt.Errorf("AGENTBLOG_SITE_URL: %w", err))
		}
	}

	if c.WebhookURL != "" {
		check := util.CheckPublicURL
		if c.WebhookAllowPrivate {
			check = func(raw string) error {
				_, err := util.ParseHTTPURL(raw)
				return err
			}
		}
		if err := check(c.WebhookURL); err != nil {
			errs = append(errs, fmt.Errorf("AGENTBLOG_WEBHOOK_URL: %w", err))
		}
	}
	if c.WebhookSecret != "" && len(c.WebhookSecret) < MinWebhookSecretLength {
		errs = append(errs, fmt.Errorf("AGENTBLOG_WEBHOOK_SECRET must be at least %d bytes long, got %d bytes",
			MinWebhookSecretLength, len(c.WebhookSecret)))
	}
	if c.WebhookTimeout <= 0 {
		errs = append(errs, errors.New("AGENTBLOG_WEBHOOK_TIMEOUT must be positive"))
	}
	if c.WebhookWorkers < 1 || c.WebhookQueueSize < 1 {
		errs = append(errs, errors.New("AGENTBLOG_WEBHOOK_WORKERS and AGENTBLOG_WEBHOOK_QUEUE_SIZE must be at least 1"))
	}

	if c.DefaultRateLimit < 1 {
		errs = append(errs, fmt.Errorf("AGENTBLOG_DEFAULT_RATE_LIMIT must be at least 1, got %d", c.DefaultRateLimit))
	}

	switch c.IndexMode {
	case IndexModeDirect, IndexModeSerialized:
	default:
		errs = append(errs, fmt.Errorf("AGENTBLOG_INDEX_MODE must be direct or serialized, got %q", c.IndexMode))
	}
	if c.IndexQueueSize < 1 {
		errs = append(errs, errors.New("AGENTBLOG_INDEX_QUEUE_SIZE must be at least 1"))
	}

	if c.ReconcileEnabled() {
		if err := scheduler.ValidateSchedule(c.ReconcileSchedule); err != nil {
			errs = append(errs, fmt.Errorf("AGENTBLOG_RECONCILE_SCHEDULE: %w", err))
		}
	}

	if c.APIRateLimit <= 0 || c.APIBurst < 1 {
		errs = append(errs, errors.New("AGENTBLOG_API_RPS must be positive and AGENTBLOG_API_BURST at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
