// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package webhook notifies an external endpoint about post changes.
package webhook

import (
	"time"

	"github.com/olegiv/agentblog/internal/model"
)

// Event types
const (
	EventPostPublished = "post.published"
	EventPostUpdated   = "post.updated"
	EventPostDeleted   = "post.deleted"
)

// Event is the JSON body of one notification.
type Event struct {
	Type      string        `json:"type"`
	Timestamp string        `json:"timestamp"`
	Data      PostEventData `json:"data"`
}

// PostEventData is the minimal post projection carried by an event.
type PostEventData struct {
	Slug   string `json:"slug"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType string, data PostEventData) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: model.FormatTime(time.Now()),
		Data:      data,
	}
}

// PostData projects p for an event. url may be empty.
func PostData(p *model.Post, url string) PostEventData {
	return PostEventData{
		Slug:   p.Slug,
		Title:  p.Title,
		Author: p.Author,
		Status: string(p.Status),
		URL:    url,
	}
}
