// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/olegiv/agentblog/internal/kv"
	"github.com/olegiv/agentblog/internal/post"
)

// Job names.
const (
	JobReconcileIndex = "reconcile-index"
	JobPurgeExpired   = "purge-expired"
)

// ReconcileIndex rebuilds the listing index from the stored posts, repairing
// entries lost to concurrent writers or failed index updates.
//
// A rebuild scans and then writes. Given a direct Index, a post deleted
// between the two steps is listed again until the next run. Given a
// SerialIndex, the rebuild is ordered with the removal and the final index
// is exact.
func ReconcileIndex(idx post.Indexer, logger *slog.Logger) JobFunc {
	return func(ctx context.Context) error {
		index, err := idx.Rebuild(ctx)
		if err != nil {
			return fmt.Errorf("rebuilding index: %w", err)
		}
		logger.Info("index reconciled", "posts", index.TotalCount)
		return nil
	}
}

// PurgeExpired removes expired entries from stores that keep them on disk.
func PurgeExpired(store kv.Purger, logger *slog.Logger) JobFunc {
	return func(ctx context.Context) error {
		n, err := store.PurgeExpired(ctx)
		if err != nil {
			return fmt.Errorf("purging expired entries: %w", err)
		}
		if n > 0 {
			logger.Info("purged expired entries", "count", n)
		}
		return nil
	}
}

// RegisterMaintenance adds the standard maintenance jobs. The purge job is
// only added when the store needs explicit expiry.
func RegisterMaintenance(s *Scheduler, store kv.Store, idx post.Indexer, schedule string, logger *slog.Logger) error {
	if err := s.Add(JobReconcileIndex, "Rebuild the post index from stored posts", schedule, ReconcileIndex(idx, logger)); err != nil {
		return err
	}
	if p, ok := store.(kv.Purger); ok {
		if err := s.Add(JobPurgeExpired, "Remove expired rate limit counters", "@hourly", PurgeExpired(p, logger)); err != nil {
			return err
		}
	}
	return nil
}
