// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/olegiv/agentblog/internal/model"
	"github.com/olegiv/agentblog/internal/post"
)

// Listing defaults
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// ListOptions filters and pages the public listing.
type ListOptions struct {
	Page     int
	PerPage  int
	Tag      string
	Category string
}

// ListResult is one page of the listing.
type ListResult struct {
	Posts      []model.PostIndexEntry `json:"posts"`
	Page       int                    `json:"page"`
	PerPage    int                    `json:"perPage"`
	Total      int                    `json:"total"`
	TotalPages int                    `json:"totalPages"`
}

// Get returns the post stored under slug. Posts that are not published are
// only visible to callers whose key grants read access.
func (s *PostService) Get(ctx context.Context, caller *model.AgentKey, slug string) (*model.Post, error) {
	p, err := s.posts.Get(ctx, slug)
	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
		}
		return nil, err
	}
	if !p.IsPublished() && (caller == nil || !caller.Can(model.OpRead)) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return p, nil
}

// List serves a page of published posts from the index.
func (s *PostService) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PerPage < 1 {
		opts.PerPage = DefaultPerPage
	}
	if opts.PerPage > MaxPerPage {
		opts.PerPage = MaxPerPage
	}

	idx, err := s.index.Get(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]model.PostIndexEntry, 0, len(idx.Posts))
	for _, e := range idx.Posts {
		if opts.Tag != "" && !e.HasTag(opts.Tag) {
			continue
		}
		if opts.Category != "" && !strings.EqualFold(e.Category, opts.Category) {
			continue
		}
		matched = append(matched, e)
	}

	total := len(matched)
	start := (opts.Page - 1) * opts.PerPage
	if start > total {
		start = total
	}
	end := min(start+opts.PerPage, total)

	return &ListResult{
		Posts:      matched[start:end],
		Page:       opts.Page,
		PerPage:    opts.PerPage,
		Total:      total,
		TotalPages: (total + opts.PerPage - 1) / opts.PerPage,
	}, nil
}
