// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/agentblog/internal/content"
	"github.com/olegiv/agentblog/internal/kv"
	"github.com/olegiv/agentblog/internal/model"
	"github.com/olegiv/agentblog/internal/post"
	"github.com/olegiv/agentblog/internal/testutil"
	"github.com/olegiv/agentblog/internal/util"
	"github.com/olegiv/agentblog/internal/webhook"
)

func TestPublish_HelloWorldLifecycle(t *testing.T) {
	modes := map[string]func(f *fixture) func(){
		"direct": func(f *fixture) func() { return func() {} },
		"serialized": func(f *fixture) func() {
			s := post.NewSerialIndex(f.index.(*post.Index), 4)
			f.index = s
			f.svc.index = s
			return s.Close
		},
	}

	for name, setup := range modes {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, testutil.MemoryStore(t))
			defer setup(f)()

			req := helloRequest()
			req.Slug = "hello-world"
			res, err := f.svc.Publish(ctx, publisherKey, req)
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Equal(t, "hello-world", res.Slug)
			assert.Equal(t, model.StatusPublished, res.Status)
			assert.Equal(t, testBaseURL+"/posts/hello-world", res.URL)

			idx, err := f.index.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, idx.TotalCount)

			_, err = f.svc.Publish(ctx, publisherKey, req)
			assert.ErrorIs(t, err, ErrSlugConflict)

			res, err = f.svc.Delete(ctx, publisherKey, "hello-world")
			require.NoError(t, err)
			assert.True(t, res.Success)

			idx, err = f.index.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, idx.TotalCount)

			_, err = f.posts.Get(ctx, "hello-world")
			assert.ErrorIs(t, err, post.ErrNotFound)

			events := f.notifier.Events()
			require.Len(t, events, 2)
			assert.Equal(t, webhook.EventPostPublished, events[0].Type)
			assert.Equal(t, testBaseURL+"/posts/hello-world", events[0].Data.URL)
			assert.Equal(t, webhook.EventPostDeleted, events[1].Type)
			assert.Equal(t, "hello-world", events[1].Data.Slug)
		})
	}
}

func TestPublish_Defaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.MemoryStore(t))
	fixed := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return fixed }

	req := helloRequest()
	req.Tags = []string{" intro ", "intro", "", "agents"}
	res, err := f.svc.Publish(ctx, publisherKey, req)
	require.NoError(t, err)
	assert.Equal(t, "hello-world", res.Slug)

	p, err := f.posts.Get(ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, "writer-bot", p.Author)
	assert.Equal(t, model.AuthorAgent, p.AuthorType)
	assert.Equal(t, content.Describe(req.Content), p.Description)
	assert.NotContains(t, p.Description, "**")
	assert.Equal(t, []string{"intro", "agents"}, p.Tags)
	assert.Equal(t, 1, p.ReadingTime)
	assert.Equal(t, "2025-06-01T12:30:00.000Z", p.PublishedAt)
	assert.Equal(t, p.PublishedAt, p.UpdatedAt)
}

func TestPublish_KeepsCallerFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.MemoryStore(t))

	req := helloRequest()
	req.Author = "Jane Doe"
	req.AuthorType = model.AuthorHuman
	req.Description = "Hand written summary"
	req.Category = "news"
	req.FeaturedImage = "https://cdn.example.com/a.png"
	req.AgentMetadata = &model.AgentMetadata{Model: "gpt-x", GeneratedAt: "2025-01-01T00:00:00.000Z"}
	_, err := f.svc.Publish(ctx, adminKey, req)
	require.NoError(t, err)

	p, err := f.posts.Get(ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", p.Author)
	assert.Equal(t, model.AuthorHuman, p.AuthorType)
	assert.Equal(t, "Hand written summary", p.Description)
	assert.Equal(t, "news", p.Category)
	assert.Equal(t, "https://cdn.example.com/a.png", p.FeaturedImage)
	assert.Equal(t, "gpt-x", p.AgentMetadata.Model)
}

func TestPublish_DraftOnlyForcesDraft(t *testing.T) {
	ctx := context.Background()
	store := testutil.MemoryStore(t)
	f := newFixture(t, store)

	req := helloRequest()
	req.Status = model.StatusPublished
	res, err := f.svc.Publish(ctx, draftKey, req)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, res.Status)
	assert.Empty(t, res.URL)

	p, err := f.posts.Get(ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, p.Status)
	assert.Empty(t, p.PublishedAt)

	_, err = store.Get(ctx, kv.PostKey("hello-world"))
	assert.ErrorIs(t, err, kv.ErrNotFound)
	_, err = store.Get(ctx, kv.DraftPostKey("hello-world"))
	assert.NoError(t, err)

	idx, err := f.index.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.TotalCount)
}

func TestPublish_RequestedDraftIsNotIndexed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.MemoryStore(t))

	for _, status := range []model.PostStatus{model.StatusDraft, model.StatusScheduled} {
		req := helloRequest()
		req.Slug = "post-" + string(status)
		req.Status = status
		res, err := f.svc.Publish(ctx, publisherKey, req)
		require.NoError(t, err)
		assert.Equal(t, status, res.Status)
	}

	idx, err := f.index.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, idx.Posts)
}

func TestPublish_Validation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(r *PublishRequest)
		field string
	}{
		{"missing title", func(r *PublishRequest) { r.Title = "  " }, "slug"},
		{"long title", func(r *PublishRequest) { r.Title = strings.Repeat("a ", 150) }, "title"},
		{"missing content", func(r *PublishRequest) { r.Content = "" }, "content"},
		{"bad slug", func(r *PublishRequest) { r.Slug = "Not A Slug" }, "slug"},
		{"reserved slug", func(r *PublishRequest) { r.Slug = "index" }, "slug"},
		{"long description", func(r *PublishRequest) { r.Description = strings.Repeat("x", 301) }, "description"},
		{"too many tags", func(r *PublishRequest) {
			r.Tags = []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}
		}, "tags"},
		{"long tag", func(r *PublishRequest) { r.Tags = []string{strings.Repeat("t", 51)} }, "tags"},
		{"long category", func(r *PublishRequest) { r.Category = strings.Repeat("c", 51) }, "category"},
		{"unknown status", func(r *PublishRequest) { r.Status = "archived" }, "status"},
		{"unknown author type", func(r *PublishRequest) { r.AuthorType = "robot" }, "authorType"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testutil.MemoryStore(t))
			req := helloRequest()
			tt.edit(&req)

			_, err := f.svc.Publish(context.Background(), publisherKey, req)
			require.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestPublish_ValidationFailureConsumesQuota(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.MemoryStore(t))

	bad := helloRequest()
	bad.Content = ""
	_, err := f.svc.Publish(ctx, publisherKey, bad)
	require.ErrorIs(t, err, ErrValidation)

	res, err := f.svc.Publish(ctx, publisherKey, helloRequest())
	require.NoError(t, err)
	assert.Equal(t, 98, res.RateLimitRemaining)
}

func TestPublish_RateLimited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.MemoryStore(t))
	caller := agent("limited-bot", model.ScopePublish)
	caller.RateLimit = 2

	for i, slug := range []string{"one", "two"} {
		req := helloRequest()
		req.Slug = slug
		res, err := f.svc.Publish(ctx, caller, req)
		require.NoError(t, err)
		assert.Equal(t, 1-i, res.RateLimitRemaining)
	}

	req := helloRequest()
	req.Slug = "three"
	_, err := f.svc.Publish(ctx, caller, req)
	require.ErrorIs(t, err, ErrRateLimited)

	var rlErr *RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, 2, rlErr.Limit)
	assert.True(t, rlErr.ResetAt.After(time.Now()))

	_, err = f.posts.Get(ctx, "three")
	assert.ErrorIs(t, err, post.ErrNotFound)
}

func TestMutations_UnauthenticatedAndForbiddenTouchNoStorage(t *testing.T) {
	tests := []struct {
		name   string
		caller *model.AgentKey
		call   func(s *PostService, caller *model.AgentKey) error
		want   error
	}{
		{"publish without key", nil, func(s *PostService, c *model.AgentKey) error {
			_, err := s.Publish(context.Background(), c, helloRequest())
			return err
		}, ErrUnauthenticated},
		{"read-only publish", readerKey, func(s *PostService, c *model.AgentKey) error {
			_, err := s.Publish(context.Background(), c, helloRequest())
			return err
		}, ErrForbidden},
		{"read-only update", readerKey, func(s *PostService, c *model.AgentKey) error {
			_, err := s.Update(context.Background(), c, "hello-world", UpdateRequest{Title: util.Some("x")})
			return err
		}, ErrForbidden},
		{"read-only delete", readerKey, func(s *PostService, c *model.AgentKey) error {
			_, err := s.Delete(context.Background(), c, "hello-world")
			return err
		}, ErrForbidden},
		{"draft-only delete", draftKey, func(s *PostService, c *model.AgentKey) error {
			_, err := s.Delete(context.Background(), c, "hello-world")
			return err
		}, ErrForbidden},
		{"unknown scope", &model.AgentKey{Name: "odd", Scope: "superuser"}, func(s *PostService, c *model.AgentKey) error {
			_, err := s.Publish(context.Background(), c, helloRequest())
			return err
		}, ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := testutil.NewFaultyStore(t)
			f := newFixture(t, fs)

			err := tt.call(f.svc, tt.caller)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, fs.TotalCalls(), "storage touched: %v", fs.Keys())
			assert.Empty(t, f.notifier.Events())
		})
	}
}

func TestUpdate_ContentChangeRegeneratesDescription(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.MemoryStore(t))
	_, err := f.svc.Publish(ctx, publisherKey, helloRequest())
	require.NoError(t, err)

	newContent := "Completely *different* words now describe this post."
	_, err = f.svc.Update(ctx, publisherKey, "hello-world", UpdateRequest{Content: util.Some(newContent)})
	require.NoError(t, err)

	p, err := f.posts.Get(ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, newContent, p.Content)
	assert.Equal(t, "Completely different words now describe this post.", p.Description)
}

func TestUpdate_ExplicitDescriptionWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.MemoryStore(t))
	_, err := f.svc.Publish(ctx, publisherKey, helloRequest())
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, publisherKey, "hello-world", UpdateRequest{
		Content:     util.Some("Some new body text."),
		Description: util.Some("Curated summary"),
	})
	require.NoError(t, err)

	p, err := f.posts.Get(ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, "Curated summary", p.Description)
}

func TestUpdate_UnchangedContentKeepsDescription(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.MemoryStore(t))
	req := helloRequest()
	req.Description = "Curated summary"
	_, err := f.svc.Publish(ctx, publisherKey, req)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, publisherKey, "hello-world", UpdateRequest{
		Title:   util.Some("Hello Again"),
		Content: util.Some(req.Content),
	})
	require.NoError(t, err)

	p, err := f.posts.Get(ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, "Hello Again", p.Title)
	assert.Equal(t, "Curated summary", p.Description)
}

func TestUpdate_NullClearsOmittedKeeps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.MemoryStore(t))
	req := helloRequest()
	req.Category = "news"
	req.FeaturedImage = "https://cdn.example.com/a.png"
	req.Description = "Curated summary"
	req.AgentMetadata = &model.AgentMetadata{Model: "gpt-x"}
	_, err := f.svc.Publish(ctx, publisherKey, req)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, publisherKey, "hello-world", UpdateRequest{
		Category:      util.Null[string](),
		Tags:          util.Null[[]string](),
		AgentMetadata: util.Null[*model.AgentMetadata](),
		Description:   util.Null[string](),
	})
	require.NoError(t, err)

	p, err := f.posts.Get(ctx, "hello-world")
	require.NoError(t, err)
	assert.Empty(t, p.Category)
	assert.Empty(t, p.Tags)
	assert.Nil(t, p.AgentMetadata)
	assert.Equal(t, content.Describe(req.Content), p.Description)
	assert.Equal(t, "https://cdn.example.com/a.png", p.FeaturedImage)
	assert.Equal(t, "Hello World", p.Title)
	assert.Equal(t, req.Content, p.Content)
}

func TestUpdate_NullOnRequiredFieldRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.MemoryStore(t))
	_, err := f.svc.Publish(ctx, publisherKey, helloRequest())
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, publisherKey, "hello-world", UpdateRequest{
		Title:   util.Null[string](),
		Content: util.Null[string](),
	})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "title")
	assert.Contains(t, verr.Fields, "content")
}

func TestUpdate_ImmutableFieldsReasserted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.MemoryStore(t))
	_, err := f.svc.Publish(ctx, publisherKey, helloRequest())
	require.NoError(t, err)

	res, err := f.svc.Update(ctx, adminKey, "hello-world", UpdateRequest{
		Slug:       "renamed",
		Author:     "someone-else",
		AuthorType: model.AuthorHuman,
		Title:      util.Some("New Title"),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello-world", res.Slug)

	p, err := f.posts.Get(ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, "hello-world", p.Slug)
	assert.Equal(t, "writer-bot", p.Author)
	assert.Equal(t, model.AuthorAgent, p.AuthorType)
	assert.Equal(t, "New Title", p.Title)

	_, err = f.posts.Get(ctx, "renamed")
	assert.ErrorIs(t, err, post.ErrNotFound)
}

func TestUpdate_FirstPublishStampsPublishedAt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.MemoryStore(t))
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return clock }

	req := helloRequest()
	req.Status = model.StatusDraft
	_, err := f.svc.Publish(ctx, publisherKey, req)
	require.NoError(t, err)

	p, err := f.posts.Get(ctx, "hello-world")
	require.NoError(t, err)
	assert.Empty(t, p.PublishedAt)

	clock = clock.Add(time.Hour)
	res, err := f.svc.Update(ctx, publisherKey, "hello-world", UpdateRequest{Status: util.Some(model.StatusPublished)})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, res.Status)
	assert.Equal(t, webhook.EventPostPublished, f.notifier.Last().Type)

	p, err = f.posts.Get(ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01T10:00:00.000Z", p.PublishedAt)

	idx, err := f.index.Get(ctx)
	require.NoError(t, err)
	require.Len(t, idx.Posts, 1)
	assert.Equal(t, p.PublishedAt, idx.Posts[0].PublishedAt)

	// later edits keep the original publication time
	clock = clock.Add(time.Hour)
	_, err = f.svc.Update(ctx, publisherKey, "hello-world", UpdateRequest{Title: util.Some("Edited")})
	require.NoError(t, err)
	assert.Equal(t, webhook.EventPostUpdated, f.notifier.Last().Type)

	p, err = f.posts.Get(ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01T10:00:00.000Z", p.PublishedAt)
	assert.Equal(t, "2025-03-01T11:00:00.000Z", p.UpdatedAt)

	idx, err = f.index.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Edited", idx.Posts[0].Title)
}

func TestUpdate_DraftOnlyDemotesPublishedPost(t *testing.T) {
	ctx := context.Background()
	store := testutil.MemoryStore(t)
	f := newFixture(t, store)
	_, err := f.svc.Publish(ctx, publisherKey, helloRequest())
	require.NoError(t, err)

	res, err := f.svc.Update(ctx, draftKey, "hello-world", UpdateRequest{
		Title:  util.Some("Needs review"),
		Status: util.Some(model.StatusPublished),
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, res.Status)

	_, err = store.Get(ctx, kv.PostKey("hello-world"))
	assert.ErrorIs(t, err, kv.ErrNotFound, "stale published copy left behind")

	p, err := f.posts.Get(ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, p.Status)
	assert.Empty(t, p.PublishedAt)

	idx, err := f.index.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.TotalCount)
}

func TestUpdate_Unpublish(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.MemoryStore(t))
	_, err := f.svc.Publish(ctx, publisherKey, helloRequest())
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, publisherKey, "hello-world", UpdateRequest{Status: util.Some(model.StatusScheduled)})
	require.NoError(t, err)

	p, err := f.posts.Get(ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, p.Status)

	idx, err := f.index.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, idx.Posts)
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(t, testutil.MemoryStore(t))
	_, err := f.svc.Update(context.Background(), publisherKey, "missing", UpdateRequest{Title: util.Some("x")})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.notifier.Events())
}

func TestUpdate_InvalidMergedPost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.MemoryStore(t))
	_, err := f.svc.Publish(ctx, publisherKey, helloRequest())
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, publisherKey, "hello-world", UpdateRequest{Title: util.Some(strings.Repeat("long ", 50))})
	assert.ErrorIs(t, err, ErrValidation)

	p, err := f.posts.Get(ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, "Hello World", p.Title)
}

func TestDelete_NotFound(t *testing.T) {
	f := newFixture(t, testutil.MemoryStore(t))
	_, err := f.svc.Delete(context.Background(), adminKey, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_Draft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.MemoryStore(t))
	_, err := f.svc.Publish(ctx, draftKey, helloRequest())
	require.NoError(t, err)

	res, err := f.svc.Delete(ctx, adminKey, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, res.Status)

	_, err = f.posts.Get(ctx, "hello-world")
	assert.ErrorIs(t, err, post.ErrNotFound)
}

func TestMutations_ReservedAndNamespacedSlugsAreNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.MemoryStore(t))
	_, err := f.svc.Publish(ctx, publisherKey, helloRequest())
	require.NoError(t, err)
	draft := helloRequest()
	draft.Slug = "wip"
	_, err = f.svc.Publish(ctx, draftKey, draft)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, adminKey, "index")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Get(ctx, adminKey, "draft:wip")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Delete(ctx, publisherKey, "index")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Delete(ctx, adminKey, "draft:wip")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Update(ctx, adminKey, "draft:wip", UpdateRequest{Title: util.Some("Hijacked")})
	assert.ErrorIs(t, err, ErrNotFound)

	idx, err := f.index.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.TotalCount)
	require.Len(t, idx.Posts, 1)
	assert.Equal(t, "hello-world", idx.Posts[0].Slug)

	p, err := f.posts.Get(ctx, "wip")
	require.NoError(t, err)
	assert.Equal(t, "Hello World", p.Title)
	assert.Len(t, f.notifier.Events(), 1)
}

func TestMutations_DoNotReadSiteConfig(t *testing.T) {
	ctx := context.Background()
	fs := testutil.NewFaultyStore(t)
	f := newFixture(t, fs)
	require.NoError(t, kv.PutJSON(ctx, fs, kv.SiteConfigKey, model.SiteConfig{BaseURL: "https://seeded.example"}, 0))
	_, err := f.site.Seed(ctx)
	require.NoError(t, err)

	fs.Fail(testutil.OpGet, kv.SiteConfigKey)
	before := len(fs.Keys())
	res, err := f.svc.Publish(ctx, publisherKey, helloRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://seeded.example/posts/hello-world", res.URL)

	res, err = f.svc.Update(ctx, publisherKey, "hello-world", UpdateRequest{Title: util.Some("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, "https://seeded.example/posts/hello-world", res.URL)
	assert.NotContains(t, fs.Keys()[before:], kv.SiteConfigKey)
}

func TestMutations_StorageErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	fs := testutil.NewFaultyStore(t)
	f := newFixture(t, fs)

	fs.Fail(testutil.OpPut, kv.PostPrefix)
	_, err := f.svc.Publish(ctx, publisherKey, helloRequest())
	assert.ErrorIs(t, err, testutil.ErrStoreDown)
	assert.NotErrorIs(t, err, ErrValidation)

	fs.Heal()
	fs.Fail(testutil.OpGet, kv.RateLimitPrefix)
	_, err = f.svc.Publish(ctx, publisherKey, helloRequest())
	assert.ErrorIs(t, err, testutil.ErrStoreDown)

	assert.Empty(t, f.notifier.Events())
}

func TestMutations_NotifierPanicDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.MemoryStore(t))
	f.svc.notifier = panickingNotifier{}

	res, err := f.svc.Publish(ctx, publisherKey, helloRequest())
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = f.svc.Delete(ctx, publisherKey, "hello-world")
	require.NoError(t, err)
}

func TestMutations_FailingWebhookEndpointDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := webhook.NewDispatcher(webhook.Config{URL: srv.URL, Timeout: time.Second}, testutil.TestLoggerSilent())
	d.Start(ctx)

	f := newFixture(t, testutil.MemoryStore(t))
	f.svc.notifier = d

	start := time.Now()
	res, err := f.svc.Publish(ctx, publisherKey, helloRequest())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Less(t, time.Since(start), 250*time.Millisecond)

	d.Stop()
	assert.Equal(t, int32(1), hits.Load())
}

func TestMutations_NilNotifier(t *testing.T) {
	f := newFixture(t, testutil.MemoryStore(t))
	f.svc.notifier = nil
	_, err := f.svc.Publish(context.Background(), publisherKey, helloRequest())
	assert.NoError(t, err)
}
