// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// runStoreTests exercises the Store contract against any backend.
func runStoreTests(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("put and get", func(t *testing.T) {
		if err := s.Put(ctx, "posts:hello", []byte("value"), 0); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := s.Get(ctx, "posts:hello")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "value" {
			t.Errorf("Get returned %q, want %q", got, "value")
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		_ = s.Put(ctx, "posts:over", []byte("one"), 0)
		_ = s.Put(ctx, "posts:over", []byte("two"), 0)
		got, err := s.Get(ctx, "posts:over")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "two" {
			t.Errorf("Get returned %q, want %q", got, "two")
		}
	})

	t.Run("miss", func(t *testing.T) {
		_, err := s.Get(ctx, "posts:nonexistent-12345")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get returned %v, want ErrNotFound", err)
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		_ = s.Put(ctx, "posts:gone", []byte("x"), 0)
		if err := s.Delete(ctx, "posts:gone"); err != nil {
			t.Fatalf("first Delete failed: %v", err)
		}
		if err := s.Delete(ctx, "posts:gone"); err != nil {
			t.Fatalf("second Delete failed: %v", err)
		}
		if _, err := s.Get(ctx, "posts:gone"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get after Delete returned %v, want ErrNotFound", err)
		}
	})

	t.Run("ttl expiry", func(t *testing.T) {
		if err := s.Put(ctx, "ratelimit:h:2025-01-01T00", []byte("1"), 50*time.Millisecond); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if _, err := s.Get(ctx, "ratelimit:h:2025-01-01T00"); err != nil {
			t.Fatalf("Get immediately after Put failed: %v", err)
		}
		time.Sleep(1100 * time.Millisecond)
		if _, err := s.Get(ctx, "ratelimit:h:2025-01-01T00"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get after TTL returned %v, want ErrNotFound", err)
		}
	})

	t.Run("list by prefix", func(t *testing.T) {
		_ = s.Put(ctx, "agents:b", []byte("1"), 0)
		_ = s.Put(ctx, "agents:a", []byte("1"), 0)
		_ = s.Put(ctx, "config:site", []byte("1"), 0)

		keys, err := s.List(ctx, "agents:")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		want := []string{"agents:a", "agents:b"}
		if !reflect.DeepEqual(keys, want) {
			t.Errorf("List returned %v, want %v", keys, want)
		}
	})

	t.Run("json helpers", func(t *testing.T) {
		type doc struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		}
		if err := PutJSON(ctx, s, "config:json", doc{Name: "blog", Count: 3}, 0); err != nil {
			t.Fatalf("PutJSON failed: %v", err)
		}
		var got doc
		if err := GetJSON(ctx, s, "config:json", &got); err != nil {
			t.Fatalf("GetJSON failed: %v", err)
		}
		if got.Name != "blog" || got.Count != 3 {
			t.Errorf("GetJSON returned %+v", got)
		}
		if err := GetJSON(ctx, s, "config:absent", &got); !IsNotFound(err) {
			t.Errorf("GetJSON on absent key returned %v, want ErrNotFound", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(MemoryStoreOptions{})
	defer func() { _ = s.Close() }()
	runStoreTests(t, s)
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore(MemoryStoreOptions{CleanupInterval: time.Millisecond})
	_ = s.Close()
	_ = s.Close()

	if _, err := s.Get(context.Background(), "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get on closed store returned %v, want ErrClosed", err)
	}
	if err := s.Put(context.Background(), "k", nil, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("Put on closed store returned %v, want ErrClosed", err)
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore(MemoryStoreOptions{})
	ctx := context.Background()

	_ = s.Put(ctx, "k", []byte("abc"), 0)
	got, _ := s.Get(ctx, "k")
	got[0] = 'z'

	again, _ := s.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored value was mutated: %q", again)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer func() { _ = s.Close() }()
	runStoreTests(t, s)
}

func TestSQLiteStore_PurgeExpired(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	_ = s.Put(ctx, "short", []byte("1"), time.Millisecond)
	_ = s.Put(ctx, "forever", []byte("1"), 0)
	time.Sleep(20 * time.Millisecond)

	n, err := s.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeExpired removed %d rows, want 1", n)
	}
	if _, err := s.Get(ctx, "forever"); err != nil {
		t.Errorf("non-expiring key lost: %v", err)
	}
}

// skipIfNoRedis skips the test if Redis is not configured.
func skipIfNoRedis(t *testing.T) string {
	url := os.Getenv("AGENTBLOG_TEST_REDIS_URL")
	if url == "" {
		t.Skip("Skipping Redis tests: AGENTBLOG_TEST_REDIS_URL not set")
	}
	return url
}

func TestRedisStore(t *testing.T) {
	url := skipIfNoRedis(t)

	s, err := NewRedisStoreFromURL(url, "agentblog-test:"+time.Now().Format("150405.000")+":")
	if err != nil {
		t.Fatalf("failed to create Redis store: %v", err)
	}
	defer func() { _ = s.Close() }()
	runStoreTests(t, s)
}

func TestNewRedisStore_RequiresURL(t *testing.T) {
	if _, err := NewRedisStore(RedisStoreOptions{}); err == nil {
		t.Error("NewRedisStore without URL should fail")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default is memory", cfg: Config{}},
		{name: "memory", cfg: Config{Backend: BackendMemory}},
		{name: "sqlite", cfg: Config{Backend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "f.db")}},
		{name: "unknown backend", cfg: Config{Backend: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("New() should have failed")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			_ = s.Close()
		})
	}
}

func TestKeys(t *testing.T) {
	if got := PostKey("hello"); got != "posts:hello" {
		t.Errorf("PostKey = %q", got)
	}
	if got := DraftPostKey("hello"); got != "posts:draft:hello" {
		t.Errorf("DraftPostKey = %q", got)
	}
	if got := AgentKey("abc"); got != "agents:abc" {
		t.Errorf("AgentKey = %q", got)
	}
	if got := RateLimitKey("abc", "2025-01-01T00"); got != "ratelimit:abc:2025-01-01T00" {
		t.Errorf("RateLimitKey = %q", got)
	}
}
