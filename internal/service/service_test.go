// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"sync"
	"testing"

	"github.com/olegiv/agentblog/internal/kv"
	"github.com/olegiv/agentblog/internal/model"
	"github.com/olegiv/agentblog/internal/post"
	"github.com/olegiv/agentblog/internal/ratelimit"
	"github.com/olegiv/agentblog/internal/testutil"
	"github.com/olegiv/agentblog/internal/webhook"
)

const testBaseURL = "https://blog.example.com"

type recordedEvent struct {
	Type string
	Data webhook.PostEventData
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Notify(eventType string, data webhook.PostEventData) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{Type: eventType, Data: data})
}

func (n *recordingNotifier) Events() []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]recordedEvent(nil), n.events...)
}

func (n *recordingNotifier) Last() recordedEvent {
	events := n.Events()
	if len(events) == 0 {
		return recordedEvent{}
	}
	return events[len(events)-1]
}

type panickingNotifier struct{}

func (panickingNotifier) Notify(string, webhook.PostEventData) { panic("endpoint exploded") }

type fixture struct {
	store    kv.Store
	posts    *post.Store
	index    post.Indexer
	site     *SiteService
	notifier *recordingNotifier
	svc      *PostService
}

func newFixture(t *testing.T, store kv.Store) *fixture {
	t.Helper()
	logger := testutil.TestLoggerSilent()
	posts := post.NewStore(store, logger)
	f := &fixture{
		store:    store,
		posts:    posts,
		index:    post.NewIndex(store, posts, logger),
		site:     NewSiteService(store, model.SiteConfig{Title: "Test", BaseURL: testBaseURL}, logger),
		notifier: &recordingNotifier{},
	}
	f.svc = NewPostService(Deps{
		Posts:    posts,
		Index:    f.index,
		Limiter:  ratelimit.New(store, 100),
		Site:     f.site,
		Notifier: f.notifier,
		Logger:   logger,
	})
	return f
}

func agent(name string, scope model.Scope) *model.AgentKey {
	return &model.AgentKey{
		Name:      name,
		KeyHash:   model.HashAPIKey("key-" + name),
		Scope:     scope,
		RateLimit: 100,
	}
}

var (
	adminKey     = agent("admin-bot", model.ScopeAdmin)
	publisherKey = agent("writer-bot", model.ScopePublish)
	draftKey     = agent("intern-bot", model.ScopeDraftOnly)
	readerKey    = agent("reader-bot", model.ScopeReadOnly)
)

func helloRequest() PublishRequest {
	return PublishRequest{
		Title:   "Hello World",
		Content: "# Hello\n\nThis is the **first** post written by an agent. It has a few words in it.",
		Tags:    []string{"intro", "agents"},
	}
}
