// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "strings"

// SiteConfig is the singleton site configuration document.
type SiteConfig struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	BaseURL     string `json:"baseUrl,omitempty"`
}

// PostURL returns the canonical URL of a post, or "" when no base URL is set.
func (c SiteConfig) PostURL(slug string) string {
	if c.BaseURL == "" {
		return ""
	}
	return strings.TrimRight(c.BaseURL, "/") + "/posts/" + slug
}
