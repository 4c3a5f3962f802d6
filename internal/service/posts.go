// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service implements the post write and read flows on top of the
// credential, quota, storage, index and notification layers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/olegiv/agentblog/internal/content"
	"github.com/olegiv/agentblog/internal/model"
	"github.com/olegiv/agentblog/internal/post"
	"github.com/olegiv/agentblog/internal/ratelimit"
	"github.com/olegiv/agentblog/internal/util"
	"github.com/olegiv/agentblog/internal/webhook"
)

// Notifier receives post events. Notify must not block.
type Notifier interface {
	Notify(eventType string, data webhook.PostEventData)
}

// Result is returned by every successful mutation.
type Result struct {
	Success            bool             `json:"success"`
	Slug               string           `json:"slug"`
	Status             model.PostStatus `json:"status"`
	URL                string           `json:"url,omitempty"`
	RateLimitRemaining int              `json:"rateLimitRemaining"`
}

// PostService orchestrates publish, update and delete.
type PostService struct {
	posts    *post.Store
	index    post.Indexer
	limiter  *ratelimit.Limiter
	site     *SiteService
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// Deps groups the collaborators of a PostService.
type Deps struct {
	Posts    *post.Store
	Index    post.Indexer
	Limiter  *ratelimit.Limiter
	Site     *SiteService
	Notifier Notifier // optional
	Logger   *slog.Logger
}

// NewPostService creates a PostService.
func NewPostService(d Deps) *PostService {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PostService{
		posts:    d.Posts,
		index:    d.Index,
		limiter:  d.Limiter,
		site:     d.Site,
		notifier: d.Notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// authorize runs the pure scope check. It never touches storage.
func authorize(caller *model.AgentKey, op model.Operation) error {
	if caller == nil {
		return ErrUnauthenticated
	}
	if !caller.Can(op) {
		return fmt.Errorf("%w: scope %q cannot %s", ErrForbidden, caller.Scope, op)
	}
	return nil
}

// consume takes one unit of the caller's hourly quota.
func (s *PostService) consume(ctx context.Context, caller *model.AgentKey) (ratelimit.Result, error) {
	res, err := s.limiter.CheckAndConsume(ctx, caller.KeyHash, caller.RateLimit)
	if err != nil {
		return res, fmt.Errorf("checking rate limit: %w", err)
	}
	if !res.Allowed {
		s.logger.InfoContext(ctx, "rate limit exceeded", "agent", caller.Name, "limit", res.Limit)
		return res, &RateLimitError{Limit: res.Limit, ResetAt: res.ResetAt}
	}
	return res, nil
}

// Publish creates a new post.
func (s *PostService) Publish(ctx context.Context, caller *model.AgentKey, req PublishRequest) (*Result, error) {
	if err := authorize(caller, model.OpPublish); err != nil {
		return nil, err
	}
	quota, err := s.consume(ctx, caller)
	if err != nil {
		return nil, err
	}

	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		slug = util.Slugify(req.Title)
	}

	now := model.FormatTime(s.now())
	p := &model.Post{
		Slug:          slug,
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		Content:       req.Content,
		Author:        strings.TrimSpace(req.Author),
		AuthorType:    req.AuthorType,
		Tags:          normalizeTags(req.Tags),
		Category:      strings.TrimSpace(req.Category),
		Status:        req.Status,
		UpdatedAt:     now,
		FeaturedImage: strings.TrimSpace(req.FeaturedImage),
		ReadingTime:   content.ReadingTime(req.Content),
		AgentMetadata: req.AgentMetadata,
	}
	if p.Author == "" {
		p.Author = caller.Name
	}
	if p.AuthorType == "" {
		p.AuthorType = model.AuthorAgent
	}
	if p.Status == "" {
		p.Status = model.StatusPublished
	}
	if model.ForcesDraft(caller.Scope) {
		p.Status = model.StatusDraft
	}
	if p.Description == "" {
		p.Description = content.Describe(p.Content)
	}
	if p.IsPublished() {
		p.PublishedAt = now
	}

	errs := fieldErrors{}
	validateSlug(slug, errs)
	validatePost(p, errs)
	if err := errs.err(); err != nil {
		return nil, err
	}

	if _, err := s.posts.Get(ctx, slug); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrSlugConflict, slug)
	} else if !errors.Is(err, post.ErrNotFound) {
		return nil, err
	}

	if err := s.posts.Put(ctx, p); err != nil {
		return nil, err
	}
	if p.IsPublished() {
		if err := s.index.Apply(ctx, p, post.Upsert); err != nil {
			return nil, err
		}
	}

	res := s.result(p, quota)
	s.logger.InfoContext(ctx, "post created", "slug", p.Slug, "status", p.Status, "agent", caller.Name)
	s.notify(webhook.EventPostPublished, p, res.URL)
	return res, nil
}

// Update merges req into the existing post.
func (s *PostService) Update(ctx context.Context, caller *model.AgentKey, slug string, req UpdateRequest) (*Result, error) {
	if err := authorize(caller, model.OpUpdate); err != nil {
		return nil, err
	}
	quota, err := s.consume(ctx, caller)
	if err != nil {
		return nil, err
	}

	errs := fieldErrors{}
	req.checkNulls(errs)
	if err := errs.err(); err != nil {
		return nil, err
	}

	existing, err := s.posts.Get(ctx, slug)
	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
		}
		return nil, err
	}

	p := s.merge(existing, &req)
	if model.ForcesDraft(caller.Scope) {
		p.Status = model.StatusDraft
	}
	switch {
	case !p.IsPublished():
		p.PublishedAt = ""
	case existing.PublishedAt == "":
		p.PublishedAt = p.UpdatedAt
	}

	validatePost(p, errs)
	if err := errs.err(); err != nil {
		return nil, err
	}

	if err := s.posts.Replace(ctx, p, existing.Status); err != nil {
		return nil, err
	}
	if existing.IsPublished() || p.IsPublished() {
		if err := s.index.Apply(ctx, p, post.Upsert); err != nil {
			return nil, err
		}
	}

	res := s.result(p, quota)
	s.logger.InfoContext(ctx, "post updated", "slug", p.Slug, "status", p.Status, "agent", caller.Name)

	event := webhook.EventPostUpdated
	if p.IsPublished() && !existing.IsPublished() {
		event = webhook.EventPostPublished
	}
	s.notify(event, p, res.URL)
	return res, nil
}

// merge applies req over a copy of existing. Slug, author and authorType
// always come from existing.
func (s *PostService) merge(existing *model.Post, req *UpdateRequest) *model.Post {
	p := *existing
	p.Tags = append([]string(nil), existing.Tags...)

	p.Title = strings.TrimSpace(req.Title.Apply(existing.Title))
	p.Content = req.Content.Apply(existing.Content)
	p.Category = strings.TrimSpace(req.Category.Apply(existing.Category))
	p.FeaturedImage = strings.TrimSpace(req.FeaturedImage.Apply(existing.FeaturedImage))
	p.AgentMetadata = req.AgentMetadata.Apply(existing.AgentMetadata)
	p.Status = req.Status.Apply(existing.Status)
	if req.Tags.Set {
		p.Tags = normalizeTags(req.Tags.Value)
	}

	switch {
	case req.Description.HasValue():
		p.Description = strings.TrimSpace(req.Description.Value)
	case req.Description.Null, p.Content != existing.Content:
		p.Description = content.Describe(p.Content)
	}
	if p.Description == "" {
		p.Description = content.Describe(p.Content)
	}

	p.ReadingTime = content.ReadingTime(p.Content)
	p.UpdatedAt = model.FormatTime(s.now())

	p.Slug = existing.Slug
	p.Author = existing.Author
	p.AuthorType = existing.AuthorType
	return &p
}

// Delete removes a post from both namespaces and the index.
func (s *PostService) Delete(ctx context.Context, caller *model.AgentKey, slug string) (*Result, error) {
	if err := authorize(caller, model.OpDelete); err != nil {
		return nil, err
	}
	quota, err := s.consume(ctx, caller)
	if err != nil {
		return nil, err
	}

	existing, err := s.posts.Get(ctx, slug)
	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
		}
		return nil, err
	}

	if err := s.posts.Delete(ctx, slug); err != nil {
		return nil, err
	}
	if err := s.index.Apply(ctx, existing, post.Remove); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "post deleted", "slug", slug, "agent", caller.Name)
	s.notify(webhook.EventPostDeleted, existing, "")
	return &Result{
		Success:            true,
		Slug:               slug,
		Status:             existing.Status,
		RateLimitRemaining: quota.Remaining,
	}, nil
}

func (s *PostService) result(p *model.Post, quota ratelimit.Result) *Result {
	res := &Result{
		Success:            true,
		Slug:               p.Slug,
		Status:             p.Status,
		RateLimitRemaining: quota.Remaining,
	}
	if p.IsPublished() && s.site != nil {
		res.URL = s.site.postURL(p.Slug)
	}
	return res
}

// notify hands the event off without waiting. A misbehaving notifier is
// logged and otherwise ignored.
func (s *PostService) notify(eventType string, p *model.Post, url string) {
	if s.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("webhook notify panicked", "event", eventType, "slug", p.Slug, "panic", r)
		}
	}()
	s.notifier.Notify(eventType, webhook.PostData(p, url))
}
