// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// Scope is the permission level attached to an agent key.
type Scope string

// Agent key scopes
const (
	ScopeAdmin     Scope = "admin"
	ScopePublish   Scope = "publish"
	ScopeDraftOnly Scope = "draft-only"
	ScopeReadOnly  Scope = "read-only"
)

// AllScopes returns all available scopes.
func AllScopes() []Scope {
	return []Scope{ScopeAdmin, ScopePublish, ScopeDraftOnly, ScopeReadOnly}
}

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	_, ok := scopeCapabilities[s]
	return ok
}

// Operation is an action an agent may attempt.
type Operation string

// Operations checked against scopes
const (
	OpPublish Operation = "publish"
	OpUpdate  Operation = "update"
	OpDelete  Operation = "delete"
	OpRead    Operation = "read"
)

type capabilities struct {
	ops         map[Operation]bool
	forcesDraft bool
}

var scopeCapabilities = map[Scope]capabilities{
	ScopeAdmin: {
		ops: map[Operation]bool{OpPublish: true, OpUpdate: true, OpDelete: true, OpRead: true},
	},
	ScopePublish: {
		ops: map[Operation]bool{OpPublish: true, OpUpdate: true, OpDelete: true, OpRead: true},
	},
	ScopeDraftOnly: {
		ops:         map[Operation]bool{OpPublish: true, OpUpdate: true, OpRead: true},
		forcesDraft: true,
	},
	ScopeReadOnly: {
		ops: map[Operation]bool{OpRead: true},
	},
}

// CanPerform reports whether scope permits op. Unknown scopes permit nothing.
func CanPerform(scope Scope, op Operation) bool {
	return scopeCapabilities[scope].ops[op]
}

// ForcesDraft reports whether writes under scope are always stored as drafts.
func ForcesDraft(scope Scope) bool {
	return scopeCapabilities[scope].forcesDraft
}

// AgentKey is the stored record of a bearer credential.
// The raw secret is never stored; KeyHash is its SHA-256.
type AgentKey struct {
	Name       string `json:"name"`
	KeyHash    string `json:"keyHash"`
	KeyPrefix  string `json:"keyPrefix,omitempty"`
	Scope      Scope  `json:"scope"`
	RateLimit  int    `json:"rateLimit"`
	CreatedAt  string `json:"createdAt"`
	LastUsedAt string `json:"lastUsedAt,omitempty"`
}

// Can reports whether the key's scope permits op.
func (k *AgentKey) Can(op Operation) bool {
	return CanPerform(k.Scope, op)
}

// GenerateAPIKey generates a new random API key.
// Returns the raw key (to show the user once) and the key prefix.
func GenerateAPIKey() (rawKey string, prefix string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", err
	}

	rawKey = base64.RawURLEncoding.EncodeToString(bytes)
	prefix = rawKey[:8]

	return rawKey, prefix, nil
}

// HashAPIKey creates a SHA-256 hash of the API key for storage and lookup.
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
