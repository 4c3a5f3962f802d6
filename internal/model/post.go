// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models and types used throughout the application.
package model

import (
	"time"
)

// PostStatus is the publication status of a post.
type PostStatus string

// Post statuses
const (
	StatusPublished PostStatus = "published"
	StatusDraft     PostStatus = "draft"
	StatusScheduled PostStatus = "scheduled"
)

// Valid reports whether s is a known status.
func (s PostStatus) Valid() bool {
	switch s {
	case StatusPublished, StatusDraft, StatusScheduled:
		return true
	}
	return false
}

// AuthorType distinguishes automated authors from humans.
type AuthorType string

// Author types
const (
	AuthorAgent AuthorType = "agent"
	AuthorHuman AuthorType = "human"
)

// Valid reports whether t is a known author type.
func (t AuthorType) Valid() bool {
	return t == AuthorAgent || t == AuthorHuman
}

// Field limits
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 300
	MaxTags              = 10
	MaxTagLength         = 50
	MaxCategoryLength    = 50
)

// TimeFormat is a fixed-width UTC layout, so string order equals time order.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in TimeFormat.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// AgentMetadata describes how an agent produced a post.
type AgentMetadata struct {
	Model       string `json:"model,omitempty"`
	GeneratedAt string `json:"generatedAt,omitempty"`
}

// Post is the authoritative record of a blog post.
type Post struct {
	Slug          string         `json:"slug"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Content       string         `json:"content"`
	Author        string         `json:"author"`
	AuthorType    AuthorType     `json:"authorType"`
	Tags          []string       `json:"tags"`
	Category      string         `json:"category,omitempty"`
	Status        PostStatus     `json:"status"`
	PublishedAt   string         `json:"publishedAt,omitempty"`
	UpdatedAt     string         `json:"updatedAt"`
	FeaturedImage string         `json:"featuredImage,omitempty"`
	ReadingTime   int            `json:"readingTime"`
	AgentMetadata *AgentMetadata `json:"agentMetadata,omitempty"`
}

// IsPublished reports whether the post belongs in the listing index.
func (p *Post) IsPublished() bool {
	return p.Status == StatusPublished
}

// IsDraft reports whether the post is stored in the draft namespace.
func (p *Post) IsDraft() bool {
	return p.Status == StatusDraft
}

// IndexEntry builds the public listing projection of the post.
func (p *Post) IndexEntry() PostIndexEntry {
	tags := make([]string, len(p.Tags))
	copy(tags, p.Tags)
	return PostIndexEntry{
		Slug:          p.Slug,
		Title:         p.Title,
		Description:   p.Description,
		Author:        p.Author,
		AuthorType:    p.AuthorType,
		Tags:          tags,
		Category:      p.Category,
		PublishedAt:   p.PublishedAt,
		UpdatedAt:     p.UpdatedAt,
		FeaturedImage: p.FeaturedImage,
		ReadingTime:   p.ReadingTime,
	}
}

// PostIndexEntry is a lightweight listing row. It never carries content.
type PostIndexEntry struct {
	Slug          string     `json:"slug"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Author        string     `json:"author"`
	AuthorType    AuthorType `json:"authorType"`
	Tags          []string   `json:"tags"`
	Category      string     `json:"category,omitempty"`
	PublishedAt   string     `json:"publishedAt"`
	UpdatedAt     string     `json:"updatedAt"`
	FeaturedImage string     `json:"featuredImage,omitempty"`
	ReadingTime   int        `json:"readingTime"`
}

// HasTag reports whether the entry carries tag.
func (e PostIndexEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Index is the singleton listing document of published posts,
// sorted by PublishedAt descending.
type Index struct {
	Posts       []PostIndexEntry `json:"posts"`
	TotalCount  int              `json:"totalCount"`
	LastUpdated string           `json:"lastUpdated"`
}
