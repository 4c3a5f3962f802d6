// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides HTTP handlers that sit outside the versioned API.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/olegiv/agentblog/internal/kv"
	"github.com/olegiv/agentblog/internal/middleware"
	"github.com/olegiv/agentblog/internal/model"
	"github.com/olegiv/agentblog/internal/version"
)

// healthCheckTimeout bounds each storage probe.
const healthCheckTimeout = 2 * time.Second

// pinger is implemented by stores with a cheap connectivity check.
type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	store     kv.Store
	authn     middleware.Authenticator
	version   version.Info
	startTime time.Time
}

// NewHealthHandler creates a new health handler. authn may be nil, in which
// case every caller gets the public response.
func NewHealthHandler(store kv.Store, authn middleware.Authenticator, info version.Info) *HealthHandler {
	return &HealthHandler{
		store:     store,
		authn:     authn,
		version:   info,
		startTime: time.Now(),
	}
}

// HealthStatusPublic is the minimal health response for unauthenticated callers.
type HealthStatusPublic struct {
	Status string `json:"status"`
}

// HealthStatus is the detailed response for admin keys.
type HealthStatus struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	System    *SystemInfo      `json:"system,omitempty"`
}

// Check represents a single health check result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// SystemInfo contains system-level information.
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutines"`
	NumCPU       int    `json:"num_cpus"`
	MemAlloc     string `json:"mem_alloc"`
	MemSys       string `json:"mem_sys"`
}

// Health handles GET /health. Admin keys get check details; everyone else
// only the overall status.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	storeCheck := h.checkStore(r.Context())
	indexCheck := h.checkIndex(r.Context())

	overallStatus := "healthy"
	switch {
	case storeCheck.Status != "healthy":
		overallStatus = "unhealthy"
	case indexCheck.Status != "healthy":
		overallStatus = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	if overallStatus == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if !h.isAdmin(r) {
		_ = json.NewEncoder(w).Encode(HealthStatusPublic{Status: overallStatus})
		return
	}

	status := HealthStatus{
		Status:    overallStatus,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version.String(),
		Checks: map[string]Check{
			"store": storeCheck,
			"index": indexCheck,
		},
	}
	if r.URL.Query().Get("verbose") == "true" {
		status.System = getSystemInfo()
	}
	_ = json.NewEncoder(w).Encode(status)
}

// Liveness handles GET /health/live.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// Readiness handles GET /health/ready.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	check := h.checkStore(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if check.Status == "healthy" {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	resp := map[string]string{"status": "not_ready"}
	if h.isAdmin(r) {
		resp["message"] = check.Message
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// isAdmin reports whether the request carries a valid admin-scoped key.
func (h *HealthHandler) isAdmin(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if h.authn == nil || header == "" {
		return false
	}
	key, err := h.authn.Authenticate(r.Context(), header)
	return err == nil && key.Scope == model.ScopeAdmin
}

// checkStore verifies the key-value store answers.
func (h *HealthHandler) checkStore(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	var err error
	if p, ok := h.store.(pinger); ok {
		err = p.Ping(ctx)
	} else if _, err = h.store.Get(ctx, kv.SiteConfigKey); kv.IsNotFound(err) {
		err = nil
	}
	latency := time.Since(start)

	if err != nil {
		return Check{Status: "unhealthy", Message: err.Error(), Latency: latency.String()}
	}
	return Check{Status: "healthy", Message: "Connected", Latency: latency.String()}
}

// checkIndex verifies the listing index decodes.
func (h *HealthHandler) checkIndex(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var idx model.Index
	if err := kv.GetJSON(ctx, h.store, kv.IndexKey, &idx); err != nil {
		if kv.IsNotFound(err) {
			return Check{Status: "healthy", Message: "No posts indexed yet"}
		}
		return Check{Status: "degraded", Message: err.Error()}
	}
	return Check{Status: "healthy", Message: fmt.Sprintf("%d posts indexed", idx.TotalCount)}
}

func getSystemInfo() *SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &SystemInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     formatBytes(m.Alloc),
		MemSys:       formatBytes(m.Sys),
	}
}

func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
