// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/olegiv/agentblog/internal/kv"
	"github.com/olegiv/agentblog/internal/model"
)

// SiteService reads the singleton site configuration document. Post URLs
// are resolved from the copy cached by the last Seed or Load, so mutations
// never read the document.
type SiteService struct {
	kv       kv.Store
	defaults model.SiteConfig
	logger   *slog.Logger

	mu      sync.RWMutex
	current model.SiteConfig
}

// NewSiteService creates a SiteService. defaults are served while the
// document is absent and written by Seed.
func NewSiteService(store kv.Store, defaults model.SiteConfig, logger *slog.Logger) *SiteService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SiteService{kv: store, defaults: defaults, logger: logger, current: defaults}
}

// Get returns the stored site configuration or the defaults when absent.
func (s *SiteService) Get(ctx context.Context) (model.SiteConfig, error) {
	var cfg model.SiteConfig
	if err := kv.GetJSON(ctx, s.kv, kv.SiteConfigKey, &cfg); err != nil {
		if kv.IsNotFound(err) {
			return s.defaults, nil
		}
		return s.defaults, fmt.Errorf("reading site config: %w", err)
	}
	return cfg, nil
}

// Load reads the stored configuration and caches it for URL resolution.
// On error the cached copy is left unchanged.
func (s *SiteService) Load(ctx context.Context) (model.SiteConfig, error) {
	cfg, err := s.Get(ctx)
	if err != nil {
		return cfg, err
	}
	s.setCurrent(cfg)
	return cfg, nil
}

// Seed writes the defaults if no site configuration is stored yet and caches
// whichever document is now in effect. It reports whether it wrote anything.
func (s *SiteService) Seed(ctx context.Context) (bool, error) {
	var stored model.SiteConfig
	err := kv.GetJSON(ctx, s.kv, kv.SiteConfigKey, &stored)
	if err == nil {
		s.setCurrent(stored)
		return false, nil
	}
	if !kv.IsNotFound(err) {
		return false, fmt.Errorf("reading site config: %w", err)
	}

	if err := kv.PutJSON(ctx, s.kv, kv.SiteConfigKey, s.defaults, 0); err != nil {
		return false, fmt.Errorf("writing site config: %w", err)
	}
	s.setCurrent(s.defaults)
	s.logger.Info("site config seeded", "title", s.defaults.Title, "base_url", s.defaults.BaseURL)
	return true, nil
}

func (s *SiteService) setCurrent(cfg model.SiteConfig) {
	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()
}

// postURL resolves the canonical URL of slug from the cached configuration.
func (s *SiteService) postURL(slug string) string {
	s.mu.RLock()
	cfg := s.current
	s.mu.RUnlock()
	return cfg.PostURL(slug)
}
