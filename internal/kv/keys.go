// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package kv

// Key layout. Every component builds its keys through these helpers so the
// namespace stays in one place.
const (
	PostPrefix      = "posts:"
	DraftPostPrefix = "posts:draft:"
	IndexKey        = "posts:index"
	SiteConfigKey   = "config:site"
	AgentPrefix     = "agents:"
	RateLimitPrefix = "ratelimit:"
)

// PostKey returns the key of a published or scheduled post.
func PostKey(slug string) string {
	return PostPrefix + slug
}

// DraftPostKey returns the key of a draft post.
func DraftPostKey(slug string) string {
	return DraftPostPrefix + slug
}

// AgentKey returns the key of an agent key record.
func AgentKey(keyHash string) string {
	return AgentPrefix + keyHash
}

// RateLimitKey returns the counter key for a credential and hour bucket.
func RateLimitKey(keyHash, bucket string) string {
	return RateLimitPrefix + keyHash + ":" + bucket
}
