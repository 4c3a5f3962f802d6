// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers for the agentblog project.
package testutil

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/olegiv/agentblog/internal/kv"
)

// ErrStoreDown is returned by FaultyStore for operations configured to fail.
var ErrStoreDown = errors.New("store unavailable")

// TestLogger creates a silent test logger that only outputs warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// TestLoggerSilent creates a completely silent test logger (error level only).
func TestLoggerSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// MemoryStore returns an in-memory store closed when the test ends.
func MemoryStore(t *testing.T) *kv.MemoryStore {
	t.Helper()
	s := kv.NewMemoryStore(kv.MemoryStoreOptions{})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Store operations understood by FaultyStore.
const (
	OpGet    = "get"
	OpPut    = "put"
	OpDelete = "delete"
	OpList   = "list"
)

// FaultyStore wraps a memory store, counts calls and fails selected
// operations on keys with a given prefix.
type FaultyStore struct {
	inner kv.Store

	mu    sync.Mutex
	fails map[string]string // op -> key prefix
	calls map[string]int
	keys  []string
}

// NewFaultyStore creates a FaultyStore over a fresh memory store.
func NewFaultyStore(t *testing.T) *FaultyStore {
	t.Helper()
	return &FaultyStore{
		inner: MemoryStore(t),
		fails: make(map[string]string),
		calls: make(map[string]int),
	}
}

// Fail makes op fail with ErrStoreDown for keys starting with prefix.
// An empty prefix fails every key.
func (s *FaultyStore) Fail(op, prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails[op] = prefix
}

// Heal clears all configured failures.
func (s *FaultyStore) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails = make(map[string]string)
}

// Calls returns how many times op was invoked.
func (s *FaultyStore) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// TotalCalls returns the number of operations of any kind.
func (s *FaultyStore) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// Keys returns every key touched, in call order.
func (s *FaultyStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

func (s *FaultyStore) record(op, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	s.keys = append(s.keys, key)
	if prefix, ok := s.fails[op]; ok && strings.HasPrefix(key, prefix) {
		return ErrStoreDown
	}
	return nil
}

// Get implements kv.Store.
func (s *FaultyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.record(OpGet, key); err != nil {
		return nil, err
	}
	return s.inner.Get(ctx, key)
}

// Put implements kv.Store.
func (s *FaultyStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.record(OpPut, key); err != nil {
		return err
	}
	return s.inner.Put(ctx, key, value, ttl)
}

// Delete implements kv.Store.
func (s *FaultyStore) Delete(ctx context.Context, key string) error {
	if err := s.record(OpDelete, key); err != nil {
		return err
	}
	return s.inner.Delete(ctx, key)
}

// List implements kv.Store.
func (s *FaultyStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := s.record(OpList, prefix); err != nil {
		return nil, err
	}
	return s.inner.List(ctx, prefix)
}

// Close implements kv.Store.
func (s *FaultyStore) Close() error {
	return s.inner.Close()
}

var _ kv.Store = (*FaultyStore)(nil)
