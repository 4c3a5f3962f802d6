// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package post stores individual post records and maintains the denormalized
// listing index that mirrors the published ones.
//
// Drafts live under "posts:draft:{slug}", every other status under
// "posts:{slug}". There is no optimistic concurrency: the last writer wins,
// and callers must read-merge against the value Get returns.
package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/olegiv/agentblog/internal/kv"
	"github.com/olegiv/agentblog/internal/model"
	"github.com/olegiv/agentblog/internal/util"
)

// ErrNotFound means no record exists for the slug in either namespace.
var ErrNotFound = errors.New("post not found")

// ErrInvalidSlug means the slug cannot name a post record.
var ErrInvalidSlug = errors.New("invalid post slug")

// Store provides CRUD for post records.
type Store struct {
	kv     kv.Store
	logger *slog.Logger
}

// NewStore creates a post store.
func NewStore(store kv.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: store, logger: logger}
}

// keyFor returns the namespace key for a post with the given status.
func keyFor(slug string, status model.PostStatus) string {
	if status == model.StatusDraft {
		return kv.DraftPostKey(slug)
	}
	return kv.PostKey(slug)
}

// addressable reports whether slug maps onto a post key. Reserved and
// malformed slugs would otherwise resolve to the index document or into the
// draft namespace.
func addressable(slug string) bool {
	return util.IsValidSlug(slug) && !util.IsReservedSlug(slug)
}

// Get returns the post stored under slug, checking the published namespace
// first and then the draft namespace. Slugs that cannot name a post are
// reported as not found without reading storage.
func (s *Store) Get(ctx context.Context, slug string) (*model.Post, error) {
	if !addressable(slug) {
		return nil, ErrNotFound
	}
	for _, key := range []string{kv.PostKey(slug), kv.DraftPostKey(slug)} {
		var p model.Post
		err := kv.GetJSON(ctx, s.kv, key, &p)
		if err == nil {
			return &p, nil
		}
		if !kv.IsNotFound(err) {
			return nil, fmt.Errorf("reading post %s: %w", slug, err)
		}
	}
	return nil, ErrNotFound
}

// Put overwrites the post in its target namespace. It does not touch the
// other namespace; use Replace when the status may have changed.
func (s *Store) Put(ctx context.Context, p *model.Post) error {
	if !addressable(p.Slug) {
		return fmt.Errorf("writing post %q: %w", p.Slug, ErrInvalidSlug)
	}
	if err := kv.PutJSON(ctx, s.kv, keyFor(p.Slug, p.Status), p, 0); err != nil {
		return fmt.Errorf("writing post %s: %w", p.Slug, err)
	}
	return nil
}

// Replace writes p and, when the transition from prev moved the post across
// namespaces, deletes the stale copy. The new copy is written first, so the
// slug is never absent in between.
func (s *Store) Replace(ctx context.Context, p *model.Post, prev model.PostStatus) error {
	if err := s.Put(ctx, p); err != nil {
		return err
	}

	oldKey := keyFor(p.Slug, prev)
	if oldKey == keyFor(p.Slug, p.Status) {
		return nil
	}
	if err := s.kv.Delete(ctx, oldKey); err != nil {
		return fmt.Errorf("removing stale copy of post %s: %w", p.Slug, err)
	}
	return nil
}

// Delete removes the slug from both namespaces. It is idempotent, and a slug
// that cannot name a post is a no-op.
func (s *Store) Delete(ctx context.Context, slug string) error {
	if !addressable(slug) {
		return nil
	}
	var errs []error
	for _, key := range []string{kv.PostKey(slug), kv.DraftPostKey(slug)} {
		if err := s.kv.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("deleting post %s: %w", slug, err)
	}
	return nil
}

// List scans every post record in both namespaces. Records that disappear
// during the scan are skipped; undecodable records are logged and skipped.
func (s *Store) List(ctx context.Context) ([]*model.Post, error) {
	keys, err := s.kv.List(ctx, kv.PostPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}

	posts := make([]*model.Post, 0, len(keys))
	for _, key := range keys {
		if key == kv.IndexKey {
			continue
		}

		var p model.Post
		if err := kv.GetJSON(ctx, s.kv, key, &p); err != nil {
			if kv.IsNotFound(err) {
				continue
			}
			if errors.Is(err, kv.ErrCorrupt) {
				s.logger.Warn("skipping unreadable post record", "key", key, "error", err)
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}

		// A record's namespace must agree with its status to count as published
		if p.IsPublished() && strings.HasPrefix(key, kv.DraftPostPrefix) {
			p.Status = model.StatusDraft
		}
		posts = append(posts, &p)
	}
	return posts, nil
}
