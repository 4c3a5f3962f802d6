// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package kv

import (
	"context"
	"fmt"
	"time"
)

// Backend types.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config holds configuration for store creation.
type Config struct {
	// Backend is the store type: "memory", "redis" or "sqlite"
	Backend string

	// RedisURL is the Redis connection URL (only for redis)
	// Example: redis://localhost:6379/0
	RedisURL string

	// Prefix is the key prefix for Redis (only for redis)
	Prefix string

	// SQLitePath is the database file (only for sqlite)
	SQLitePath string

	// CleanupInterval is the interval for expired entry cleanup (only for memory)
	CleanupInterval time.Duration
}

// New creates a store based on the provided configuration.
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendRedis:
		return NewRedisStoreFromURL(cfg.RedisURL, cfg.Prefix)
	case BackendSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	case BackendMemory, "":
		interval := cfg.CleanupInterval
		if interval == 0 {
			interval = time.Minute
		}
		return NewMemoryStore(MemoryStoreOptions{CleanupInterval: interval}), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Purger is implemented by stores that need expired entries removed explicitly.
type Purger interface {
	Store
	PurgeExpired(ctx context.Context) (int64, error)
}
