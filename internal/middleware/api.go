// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for agent key authentication,
// request throttling and response headers.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/olegiv/agentblog/internal/auth"
	"github.com/olegiv/agentblog/internal/model"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ContextKeyAgent is the context key for the authenticated agent key.
const ContextKeyAgent ContextKey = "agent_key"

// Authenticator resolves an Authorization header to an agent key.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (*model.AgentKey, error)
}

// APIError represents a JSON error response for the API.
type APIError struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// WriteAPIError writes a JSON error response.
func WriteAPIError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	apiErr := APIError{}
	apiErr.Error.Code = code
	apiErr.Error.Message = message
	apiErr.Error.Details = details

	_ = json.NewEncoder(w).Encode(apiErr)
}

// authenticate resolves the request's key. The bool reports whether an
// error response was written, which only happens when required is set.
func authenticate(w http.ResponseWriter, r *http.Request, authn Authenticator, required bool) (*model.AgentKey, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if required {
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Missing Authorization header", nil)
			return nil, true
		}
		return nil, false
	}

	key, err := authn.Authenticate(r.Context(), header)
	if err == nil {
		return key, false
	}
	if !required {
		return nil, false
	}

	if errors.Is(err, auth.ErrUnauthenticated) {
		WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key. Use: Authorization: Bearer <api_key>", nil)
	} else {
		slog.Error("failed to validate API key", "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to validate API key", nil)
	}
	return nil, true
}

// AgentKeyAuth requires a valid bearer key and stores it in the request context.
func AgentKeyAuth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, written := authenticate(w, r, authn, true)
			if written {
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAgentKey(r.Context(), key)))
		})
	}
}

// OptionalAgentKeyAuth adds the key to the context when a valid one is
// presented and otherwise serves the request anonymously.
func OptionalAgentKeyAuth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, _ := authenticate(w, r, authn, false)
			if key == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAgentKey(r.Context(), key)))
		})
	}
}

// WithAgentKey returns a copy of ctx carrying key.
func WithAgentKey(ctx context.Context, key *model.AgentKey) context.Context {
	return context.WithValue(ctx, ContextKeyAgent, key)
}

// GetAgentKey retrieves the agent key from the request context.
// Returns nil if no key is in context.
func GetAgentKey(r *http.Request) *model.AgentKey {
	key, _ := r.Context().Value(ContextKeyAgent).(*model.AgentKey)
	return key
}

// limiterCache is a generic rate limiter cache with double-check locking.
type limiterCache[K comparable] struct {
	limiters map[K]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

func newLimiterCache[K comparable](rps float64, burst int) *limiterCache[K] {
	return &limiterCache[K]{
		limiters: make(map[K]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// get returns the rate limiter for a specific key, creating one if needed.
func (lc *limiterCache[K]) get(key K) *rate.Limiter {
	lc.mu.RLock()
	limiter, exists := lc.limiters[key]
	lc.mu.RUnlock()

	if exists {
		return limiter
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = lc.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(lc.rate, lc.burst)
	lc.limiters[key] = limiter
	return limiter
}

// clearIfExceeds clears all entries if the cache exceeds maxSize.
// Returns true if the cache was cleared.
func (lc *limiterCache[K]) clearIfExceeds(maxSize int) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if len(lc.limiters) > maxSize {
		lc.limiters = make(map[K]*rate.Limiter)
		return true
	}
	return false
}

// maxTrackedIPs bounds the per-IP limiter cache.
const maxTrackedIPs = 10000

// IPRateLimiter throttles requests per client IP. It complements the hourly
// per-key quota and protects the key lookup itself.
type IPRateLimiter struct {
	cache *limiterCache[string]
}

// NewIPRateLimiter creates a limiter allowing rps requests per second per IP
// with the given burst.
func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{cache: newLimiterCache[string](rps, burst)}
}

// Middleware returns the throttling middleware.
func (rl *IPRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if rl.cache.clearIfExceeds(maxTrackedIPs) {
				slog.Debug("ip rate limiter cache reset")
			}
			if !rl.cache.get(ip).Allow() {
				slog.Warn("api throttle exceeded", "ip", ip, "path", r.URL.Path)
				WriteAPIError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Rate limit exceeded. Please slow down.", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the host part of RemoteAddr. chi's RealIP middleware
// rewrites RemoteAddr from proxy headers before this runs.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
