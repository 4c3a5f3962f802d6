// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package post

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/olegiv/agentblog/internal/kv"
	"github.com/olegiv/agentblog/internal/model"
)

// Action is an index mutation.
type Action int

// Index actions
const (
	Upsert Action = iota
	Remove
)

func (a Action) String() string {
	if a == Remove {
		return "remove"
	}
	return "upsert"
}

// Indexer maintains the listing index.
type Indexer interface {
	// Apply re-derives the entry for p: remove drops it, upsert replaces it
	// and keeps it only if p is published.
	Apply(ctx context.Context, p *model.Post, action Action) error

	// Get returns the current index; an absent document reads as empty.
	Get(ctx context.Context) (*model.Index, error)

	// Rebuild rewrites the index from a full scan of post records.
	Rebuild(ctx context.Context) (*model.Index, error)
}

// Index rewrites the singleton index document on every mutation.
//
// Apply is a read-modify-write over a store without compare-and-swap, so two
// concurrent writers can each read the same prior state and drop the other's
// change. Rebuild repairs such gaps; SerialIndex removes them within one process.
type Index struct {
	kv     kv.Store
	posts  *Store
	logger *slog.Logger
	now    func() time.Time
}

// NewIndex creates an index maintainer over the given post store.
func NewIndex(store kv.Store, posts *Store, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		kv:     store,
		posts:  posts,
		logger: logger,
		now:    time.Now,
	}
}

// Get returns the current index document.
func (x *Index) Get(ctx context.Context) (*model.Index, error) {
	var idx model.Index
	if err := kv.GetJSON(ctx, x.kv, kv.IndexKey, &idx); err != nil {
		if kv.IsNotFound(err) {
			return &model.Index{Posts: []model.PostIndexEntry{}}, nil
		}
		return nil, fmt.Errorf("reading index: %w", err)
	}
	if idx.Posts == nil {
		idx.Posts = []model.PostIndexEntry{}
	}
	return &idx, nil
}

// Apply implements Indexer.
func (x *Index) Apply(ctx context.Context, p *model.Post, action Action) error {
	idx, err := x.Get(ctx)
	if err != nil {
		return err
	}

	entries := make([]model.PostIndexEntry, 0, len(idx.Posts)+1)
	for _, e := range idx.Posts {
		if e.Slug != p.Slug {
			entries = append(entries, e)
		}
	}
	if action == Upsert && p.IsPublished() {
		entries = append(entries, p.IndexEntry())
	}

	if _, err := x.write(ctx, entries); err != nil {
		return err
	}

	x.logger.Debug("index updated", "slug", p.Slug, "action", action, "status", p.Status)
	return nil
}

// Rebuild implements Indexer.
func (x *Index) Rebuild(ctx context.Context) (*model.Index, error) {
	posts, err := x.posts.List(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]model.PostIndexEntry, 0, len(posts))
	for _, p := range posts {
		if p.IsPublished() {
			entries = append(entries, p.IndexEntry())
		}
	}

	idx, err := x.write(ctx, entries)
	if err != nil {
		return nil, err
	}

	x.logger.Info("index rebuilt", "posts", idx.TotalCount)
	return idx, nil
}

// write sorts and deduplicates entries and persists the whole document.
func (x *Index) write(ctx context.Context, entries []model.PostIndexEntry) (*model.Index, error) {
	entries = normalize(entries)
	idx := &model.Index{
		Posts:       entries,
		TotalCount:  len(entries),
		LastUpdated: model.FormatTime(x.now()),
	}
	if err := kv.PutJSON(ctx, x.kv, kv.IndexKey, idx, 0); err != nil {
		return nil, fmt.Errorf("writing index: %w", err)
	}
	return idx, nil
}

// normalize orders entries by PublishedAt descending, slug ascending on ties,
// and keeps the first entry per slug.
func normalize(entries []model.PostIndexEntry) []model.PostIndexEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].PublishedAt != entries[j].PublishedAt {
			return entries[i].PublishedAt > entries[j].PublishedAt
		}
		return entries[i].Slug < entries[j].Slug
	})

	seen := make(map[string]bool, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if seen[e.Slug] {
			continue
		}
		seen[e.Slug] = true
		out = append(out, e)
	}
	return out
}

var _ Indexer = (*Index)(nil)
