// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/olegiv/agentblog/internal/middleware"
)

// Route paths relative to the API mount point.
const (
	RouteAuth     = "/auth"
	RoutePosts    = "/posts"
	RoutePostSlug = "/posts/{slug}"
)

// Register mounts the v1 API routes on r.
func Register(r chi.Router, h *Handler, authn middleware.Authenticator) {
	// Public reads; a valid key additionally unlocks drafts
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAgentKeyAuth(authn))
		r.Get(RoutePosts, h.ListPosts)
		r.Get(RoutePostSlug, h.GetPost)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AgentKeyAuth(authn))
		r.Get(RouteAuth, h.AuthInfo)
		r.Post(RoutePosts, h.CreatePost)
		r.Patch(RoutePostSlug, h.UpdatePost)
		r.Put(RoutePostSlug, h.UpdatePost)
		r.Delete(RoutePostSlug, h.DeletePost)
	})
}
