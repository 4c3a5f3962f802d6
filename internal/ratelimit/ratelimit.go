// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package ratelimit implements fixed one-hour publish quotas per credential,
// stored as expiring counters in the key-value store.
//
// The store has no atomic increment, so the read-then-write below is not
// linearizable: concurrent bursts from one credential may exceed the limit
// by a small margin.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olegiv/agentblog/internal/kv"
)

// Window is the quota window and counter TTL.
const Window = time.Hour

// bucketFormat truncates a UTC timestamp to the hour, e.g. "2025-01-01T00".
const bucketFormat = "2006-01-02T15"

// Result reports the outcome of a quota check.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// Limiter counts requests per credential hash in hour buckets.
type Limiter struct {
	store        kv.Store
	defaultLimit int
	now          func() time.Time
}

// New creates a limiter. defaultLimit applies when a key record carries no limit.
func New(store kv.Store, defaultLimit int) *Limiter {
	return &Limiter{
		store:        store,
		defaultLimit: defaultLimit,
		now:          time.Now,
	}
}

// Bucket returns the window identifier for t.
func Bucket(t time.Time) string {
	return t.UTC().Format(bucketFormat)
}

// CheckAndConsume consumes one unit of quota for keyHash if any is left.
// An exhausted window returns Allowed=false and does not increment.
func (l *Limiter) CheckAndConsume(ctx context.Context, keyHash string, limit int) (Result, error) {
	if limit <= 0 {
		limit = l.defaultLimit
	}

	now := l.now().UTC()
	windowStart := now.Truncate(Window)
	res := Result{Limit: limit, ResetAt: windowStart.Add(Window)}
	key := kv.RateLimitKey(keyHash, Bucket(now))

	count, err := l.read(ctx, key)
	if err != nil {
		return Result{}, err
	}

	if count >= limit {
		return res, nil
	}

	if err := l.store.Put(ctx, key, []byte(strconv.Itoa(count+1)), Window); err != nil {
		return Result{}, fmt.Errorf("writing rate limit counter: %w", err)
	}

	res.Allowed = true
	res.Remaining = limit - count - 1
	return res, nil
}

// read returns the current count; an absent counter reads as zero.
func (l *Limiter) read(ctx context.Context, key string) (int, error) {
	data, err := l.store.Get(ctx, key)
	if err != nil {
		if kv.IsNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading rate limit counter: %w", err)
	}

	count, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || count < 0 {
		// A corrupt counter restarts the window rather than locking the key out
		return 0, nil
	}
	return count, nil
}
