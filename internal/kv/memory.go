// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore is a thread-safe in-memory Store.
// It is used in tests and for single-process deployments.
type MemoryStore struct {
	data   sync.Map
	stopCh chan struct{}
	closed atomic.Bool
}

// memoryEntry holds a value with its expiration time. A zero expiresAt never expires.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStoreOptions configures the memory store.
type MemoryStoreOptions struct {
	CleanupInterval time.Duration // Interval for expired entry cleanup (0 = no cleanup)
}

// NewMemoryStore creates a new memory store with the given options.
func NewMemoryStore(opts MemoryStoreOptions) *MemoryStore {
	s := &MemoryStore{
		stopCh: make(chan struct{}),
	}

	if opts.CleanupInterval > 0 {
		go s.cleanupLoop(opts.CleanupInterval)
	}

	return s
}

// Get retrieves a value from the store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	val, ok := s.data.Load(key)
	if !ok {
		return nil, ErrNotFound
	}

	entry := val.(*memoryEntry)
	if entry.expired(time.Now()) {
		s.data.CompareAndDelete(key, entry)
		return nil, ErrNotFound
	}

	// Return a copy to prevent mutation
	result := make([]byte, len(entry.value))
	copy(result, entry.value)
	return result, nil
}

// Put stores a value with the specified TTL.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.closed.Load() {
		return ErrClosed
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	entry := &memoryEntry{value: valueCopy}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.data.Store(key, entry)
	return nil
}

// Delete removes a key from the store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.data.Delete(key)
	return nil
}

// List returns all live keys with the given prefix.
func (s *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	now := time.Now()
	var keys []string
	s.data.Range(func(key, value any) bool {
		k := key.(string)
		if strings.HasPrefix(k, prefix) && !value.(*memoryEntry).expired(now) {
			keys = append(keys, k)
		}
		return true
	})
	sort.Strings(keys)
	return keys, nil
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		close(s.stopCh)
	}
	return nil
}

// cleanupLoop periodically removes expired entries.
func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stopCh:
			return
		}
	}
}

// removeExpired removes all expired entries from the store.
func (s *MemoryStore) removeExpired() {
	now := time.Now()
	s.data.Range(func(key, value any) bool {
		if value.(*memoryEntry).expired(now) {
			s.data.CompareAndDelete(key, value)
		}
		return true
	})
}

var _ Store = (*MemoryStore)(nil)
