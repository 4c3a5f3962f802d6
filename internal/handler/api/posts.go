// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/agentblog/internal/middleware"
	"github.com/olegiv/agentblog/internal/model"
	"github.com/olegiv/agentblog/internal/service"
)

// AuthInfoResponse describes the calling key. The secret is never echoed.
type AuthInfoResponse struct {
	Name       string      `json:"name"`
	KeyPrefix  string      `json:"keyPrefix,omitempty"`
	Scope      model.Scope `json:"scope"`
	RateLimit  int         `json:"rateLimit"`
	CanPublish bool        `json:"canPublish"`
	CanDelete  bool        `json:"canDelete"`
	DraftOnly  bool        `json:"draftOnly"`
}

// AuthInfo returns information about the authenticated agent key.
func (h *Handler) AuthInfo(w http.ResponseWriter, r *http.Request) {
	key := middleware.GetAgentKey(r)
	if key == nil {
		WriteUnauthorized(w, "Not authenticated")
		return
	}

	WriteSuccess(w, AuthInfoResponse{
		Name:       key.Name,
		KeyPrefix:  key.KeyPrefix,
		Scope:      key.Scope,
		RateLimit:  key.RateLimit,
		CanPublish: key.Can(model.OpPublish),
		CanDelete:  key.Can(model.OpDelete),
		DraftOnly:  model.ForcesDraft(key.Scope),
	}, nil)
}

// ListPosts handles GET /posts.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	res, err := h.posts.List(r.Context(), service.ListOptions{
		Page:     page,
		PerPage:  perPage,
		Tag:      q.Get("tag"),
		Category: q.Get("category"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	WriteSuccess(w, res.Posts, &Meta{
		Total:   res.Total,
		Page:    res.Page,
		PerPage: res.PerPage,
		Pages:   res.TotalPages,
	})
}

// GetPost handles GET /posts/{slug}.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.posts.Get(r.Context(), middleware.GetAgentKey(r), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, p, nil)
}

// CreatePost handles POST /posts.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req service.PublishRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.posts.Publish(r.Context(), middleware.GetAgentKey(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	setQuotaHeader(w, res)
	WriteCreated(w, res)
}

// UpdatePost handles PATCH and PUT /posts/{slug}. Both are partial updates.
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.posts.Update(r.Context(), middleware.GetAgentKey(r), chi.URLParam(r, "slug"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	setQuotaHeader(w, res)
	WriteSuccess(w, res, nil)
}

// DeletePost handles DELETE /posts/{slug}.
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	res, err := h.posts.Delete(r.Context(), middleware.GetAgentKey(r), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	setQuotaHeader(w, res)
	WriteSuccess(w, res, nil)
}
