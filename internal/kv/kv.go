// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package kv provides the key-value storage adapter used by every other
// component. The backends are eventually consistent and offer no
// transactions or compare-and-swap; callers must not assume any.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Store defines the minimal operations against the key-value service.
// All implementations must be thread-safe.
type Store interface {
	// Get returns the stored value, or ErrNotFound if the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put overwrites the value at key. A ttl of 0 means the key never expires.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns all non-expired keys starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// Error represents an error type for store operations.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrNotFound indicates the key is absent or has expired.
	ErrNotFound Error = "key not found"

	// ErrClosed indicates the store has been closed.
	ErrClosed Error = "store closed"

	// ErrCorrupt indicates a stored value could not be decoded.
	ErrCorrupt Error = "corrupt value"
)

// GetJSON reads key and decodes it into v.
// Returns ErrNotFound unchanged so callers can treat absence separately.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w: %v", key, ErrCorrupt, err)
	}
	return nil
}

// PutJSON encodes v and writes it to key.
func PutJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.Put(ctx, key, data, ttl)
}

// IsNotFound reports whether err means the key was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
