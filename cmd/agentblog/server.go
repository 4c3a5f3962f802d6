// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/agentblog/internal/config"
	"github.com/olegiv/agentblog/internal/handler"
	"github.com/olegiv/agentblog/internal/handler/api"
	"github.com/olegiv/agentblog/internal/kv"
	"github.com/olegiv/agentblog/internal/middleware"
	"github.com/olegiv/agentblog/internal/service"
	"github.com/olegiv/agentblog/internal/version"
)

// requestTimeout bounds every request end to end.
const requestTimeout = 30 * time.Second

type routerDeps struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   kv.Store
	authn   middleware.Authenticator
	posts   *service.PostService
	version version.Info
}

func newRouter(d routerDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(d.cfg.IsDevelopment())))

	healthHandler := handler.NewHealthHandler(d.store, d.authn, d.version)
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	throttle := middleware.NewIPRateLimiter(d.cfg.APIRateLimit, d.cfg.APIBurst)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(throttle.Middleware())
		api.Register(r, api.NewHandler(d.posts, d.logger), d.authn)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteAPIError(w, http.StatusNotFound, "not_found", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", nil)
	})

	return r
}
