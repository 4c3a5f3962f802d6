// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package auth validates bearer credentials against stored agent key records
// and issues new keys.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/olegiv/agentblog/internal/kv"
	"github.com/olegiv/agentblog/internal/model"
)

// ErrUnauthenticated means the credential is missing, malformed or unknown.
var ErrUnauthenticated = errors.New("unauthenticated")

// touchTimeout bounds the background last-used update.
const touchTimeout = 5 * time.Second

// Service looks up agent keys by the hash of their bearer secret.
type Service struct {
	store  kv.Store
	logger *slog.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

// NewService creates a credential service.
func NewService(store kv.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// ParseBearer extracts the token from an Authorization header of the form
// "Bearer <token>". The scheme is case-insensitive.
func ParseBearer(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// Authenticate validates a raw Authorization header and returns the matching
// key record. Malformed headers are rejected without a lookup.
func (s *Service) Authenticate(ctx context.Context, header string) (*model.AgentKey, error) {
	token, ok := ParseBearer(header)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return s.Lookup(ctx, token)
}

// Lookup finds the key record for a raw token. Only the hash touches storage.
// On success the record's last-used stamp is refreshed in the background.
func (s *Service) Lookup(ctx context.Context, token string) (*model.AgentKey, error) {
	hash := model.HashAPIKey(token)

	var key model.AgentKey
	if err := kv.GetJSON(ctx, s.store, kv.AgentKey(hash), &key); err != nil {
		if kv.IsNotFound(err) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("looking up agent key: %w", err)
	}
	if key.KeyHash == "" {
		key.KeyHash = hash
	}

	s.touch(key)
	return &key, nil
}

// touch updates the last used timestamp in a background goroutine. The
// record is re-read first so a key revoked or re-scoped since the lookup is
// never written back. Failures are logged and never reach the caller.
func (s *Service) touch(key model.AgentKey) {
	usedAt := model.FormatTime(s.now())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()

		var current model.AgentKey
		if err := kv.GetJSON(ctx, s.store, kv.AgentKey(key.KeyHash), &current); err != nil {
			if !kv.IsNotFound(err) {
				s.logger.Debug("failed to reload agent key", "key", key.Name, "error", err)
			}
			return
		}
		current.LastUsedAt = usedAt
		if err := kv.PutJSON(ctx, s.store, kv.AgentKey(key.KeyHash), current, 0); err != nil {
			s.logger.Debug("failed to update agent key last used", "key", key.Name, "error", err)
		}
	}()
}

// Wait blocks until pending last-used updates have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Issue creates and stores a new agent key. The raw secret is returned once
// and is not recoverable afterwards.
func (s *Service) Issue(ctx context.Context, name string, scope model.Scope, rateLimit int) (string, *model.AgentKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, errors.New("agent key name is required")
	}
	if !scope.Valid() {
		return "", nil, fmt.Errorf("unknown scope %q", scope)
	}
	if rateLimit <= 0 {
		return "", nil, fmt.Errorf("rate limit must be positive, got %d", rateLimit)
	}

	rawKey, prefix, err := model.GenerateAPIKey()
	if err != nil {
		return "", nil, fmt.Errorf("generating agent key: %w", err)
	}

	key := &model.AgentKey{
		Name:      name,
		KeyHash:   model.HashAPIKey(rawKey),
		KeyPrefix: prefix,
		Scope:     scope,
		RateLimit: rateLimit,
		CreatedAt: model.FormatTime(s.now()),
	}
	if err := kv.PutJSON(ctx, s.store, kv.AgentKey(key.KeyHash), key, 0); err != nil {
		return "", nil, fmt.Errorf("storing agent key: %w", err)
	}

	s.logger.Info("agent key issued", "name", name, "scope", scope, "prefix", prefix)
	return rawKey, key, nil
}
