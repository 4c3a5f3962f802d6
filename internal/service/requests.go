// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/olegiv/agentblog/internal/model"
	"github.com/olegiv/agentblog/internal/util"
)

// PublishRequest creates a post. Empty optional fields take defaults:
// slug from title, description from content, author from the key name,
// status published.
type PublishRequest struct {
	Slug          string               `json:"slug,omitempty"`
	Title         string               `json:"title"`
	Description   string               `json:"description,omitempty"`
	Content       string               `json:"content"`
	Author        string               `json:"author,omitempty"`
	AuthorType    model.AuthorType     `json:"authorType,omitempty"`
	Tags          []string             `json:"tags,omitempty"`
	Category      string               `json:"category,omitempty"`
	Status        model.PostStatus     `json:"status,omitempty"`
	FeaturedImage string               `json:"featuredImage,omitempty"`
	AgentMetadata *model.AgentMetadata `json:"agentMetadata,omitempty"`
}

// UpdateRequest is a partial update. Omitted fields keep their value and
// null clears nullable fields. Slug, author and authorType are read but
// never applied.
type UpdateRequest struct {
	Slug          string                              `json:"slug,omitempty"`
	Author        string                              `json:"author,omitempty"`
	AuthorType    model.AuthorType                    `json:"authorType,omitempty"`
	Title         util.Optional[string]               `json:"title,omitzero"`
	Description   util.Optional[string]               `json:"description,omitzero"`
	Content       util.Optional[string]               `json:"content,omitzero"`
	Tags          util.Optional[[]string]             `json:"tags,omitzero"`
	Category      util.Optional[string]               `json:"category,omitzero"`
	Status        util.Optional[model.PostStatus]     `json:"status,omitzero"`
	FeaturedImage util.Optional[string]               `json:"featuredImage,omitzero"`
	AgentMetadata util.Optional[*model.AgentMetadata] `json:"agentMetadata,omitzero"`
}

// checkNulls rejects explicit nulls on fields that cannot be cleared.
func (r *UpdateRequest) checkNulls(errs fieldErrors) {
	if r.Title.Null {
		errs.add("title", "Title cannot be null")
	}
	if r.Content.Null {
		errs.add("content", "Content cannot be null")
	}
	if r.Status.Null {
		errs.add("status", "Status cannot be null")
	}
}

// validateSlug checks a caller-supplied or derived slug.
func validateSlug(slug string, errs fieldErrors) {
	switch {
	case slug == "":
		errs.add("slug", "Slug is required (or a title it can be derived from)")
	case !util.IsValidSlug(slug):
		errs.add("slug", "Invalid slug format (use lowercase letters, numbers, and hyphens)")
	case util.IsReservedSlug(slug):
		errs.add("slug", fmt.Sprintf("Slug %q is reserved", slug))
	}
}

// validatePost checks the fully merged record before it is written.
func validatePost(p *model.Post, errs fieldErrors) {
	title := strings.TrimSpace(p.Title)
	switch {
	case title == "":
		errs.add("title", "Title is required")
	case utf8.RuneCountInString(p.Title) > model.MaxTitleLength:
		errs.add("title", fmt.Sprintf("Title must be at most %d characters", model.MaxTitleLength))
	}

	if strings.TrimSpace(p.Content) == "" {
		errs.add("content", "Content is required")
	}

	if utf8.RuneCountInString(p.Description) > model.MaxDescriptionLength {
		errs.add("description", fmt.Sprintf("Description must be at most %d characters", model.MaxDescriptionLength))
	}

	if !p.Status.Valid() {
		errs.add("status", "Status must be 'published', 'draft' or 'scheduled'")
	}
	if !p.AuthorType.Valid() {
		errs.add("authorType", "Author type must be 'agent' or 'human'")
	}

	if len(p.Tags) > model.MaxTags {
		errs.add("tags", fmt.Sprintf("At most %d tags are allowed", model.MaxTags))
	}
	for _, tag := range p.Tags {
		if tag == "" || utf8.RuneCountInString(tag) > model.MaxTagLength {
			errs.add("tags", fmt.Sprintf("Each tag must be 1 to %d characters", model.MaxTagLength))
			break
		}
	}

	if utf8.RuneCountInString(p.Category) > model.MaxCategoryLength {
		errs.add("category", fmt.Sprintf("Category must be at most %d characters", model.MaxCategoryLength))
	}
}

// normalizeTags trims tags and drops blanks and duplicates, keeping order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
