// Copyright 2024 Backuptool Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backup

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/DevHarmeet/backuptool/internal/common"
	"github.com/DevHarmeet/backuptool/internal/storage"
	"github.com/DevHarmeet/backuptool/internal/util"
)

// PruneResult reports what a prune removed.
type PruneResult struct {
	SnapshotID     int64
	RemovedEntries int64
	ReclaimedBlobs int
	ReclaimedBytes int64
}

// GCResult reports what a garbage collection sweep removed.
type GCResult struct {
	ReclaimedBlobs int
	ReclaimedBytes int64
}

// SnapshotStats is the derived size of one snapshot.
type SnapshotStats struct {
	SnapshotID int64
	FileCount  int64
	TotalSize  int64
}

// PruneSnapshot deletes snapshot id and reclaims every blob it was the last
// reference to.
//
// The existence check, entry and snapshot deletion, and reclaim all run in a
// single transaction. A candidate blob is deleted only if no entry of any
// snapshot references it at that point inside the transaction, so a blob
// picked up by a concurrently committed snapshot survives.
func (m *Manager) PruneSnapshot(ctx context.Context, id int64) (*PruneResult, error) {
	return util.RetryWithResult(ctx, func() (*PruneResult, error) {
		return m.pruneOnce(ctx, id)
	}, util.DatabaseRetryOptions(ctx, m.retryAttempts)...)
}

func (m *Manager) pruneOnce(ctx context.Context, id int64) (*PruneResult, error) {
	result := &PruneResult{SnapshotID: id}

	err := m.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := m.db.GetSnapshotWith(tx, ctx, id); err != nil {
			return err
		}

		candidates, err := m.db.ListEntryDigestsWith(tx, ctx, id)
		if err != nil {
			return fmt.Errorf("list snapshot digests: %w", err)
		}

		if result.RemovedEntries, err = m.db.DeleteEntriesWith(tx, ctx, id); err != nil {
			return fmt.Errorf("delete entries: %w", err)
		}
		if _, err := m.db.DeleteSnapshotWith(tx, ctx, id); err != nil {
			return fmt.Errorf("delete snapshot: %w", err)
		}

		blobs, bytes, err := m.reclaim(ctx, tx, candidates)
		if err != nil {
			return err
		}
		result.ReclaimedBlobs, result.ReclaimedBytes = blobs, bytes
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.WithFields(log.Fields{
		"snapshot":        id,
		"entries":         result.RemovedEntries,
		"reclaimed_blobs": result.ReclaimedBlobs,
		"reclaimed_bytes": result.ReclaimedBytes,
	}).Info("snapshot pruned")
	return result, nil
}

// reclaim deletes each digest that has no referencing entry. It must run in
// the transaction that removed the references.
func (m *Manager) reclaim(ctx context.Context, tx bun.Tx, digests []string) (int, int64, error) {
	var count int
	var freed int64
	for _, digest := range digests {
		refs, err := m.db.CountReferencingWith(tx, ctx, digest)
		if err != nil {
			return 0, 0, fmt.Errorf("count references to %s: %w", digest, err)
		}
		if refs > 0 {
			continue
		}
		deleted, size, err := m.db.DeleteBlobWith(tx, ctx, digest)
		if err != nil {
			return 0, 0, fmt.Errorf("delete blob %s: %w", digest, err)
		}
		if deleted {
			count++
			freed += size
			m.log.WithField("digest", digest).Debug("reclaimed blob")
		}
	}
	return count, freed, nil
}

// GarbageCollect sweeps every blob that no snapshot references. Prune keeps
// the store free of orphans on its own; this repairs stores written by
// interrupted or older tools.
func (m *Manager) GarbageCollect(ctx context.Context) (*GCResult, error) {
	return util.RetryWithResult(ctx, func() (*GCResult, error) {
		result := &GCResult{}
		err := m.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
			orphans, err := m.db.ListOrphanDigestsWith(tx, ctx)
			if err != nil {
				return fmt.Errorf("list orphan blobs: %w", err)
			}
			result.ReclaimedBlobs, result.ReclaimedBytes, err = m.reclaim(ctx, tx, orphans)
			return err
		})
		if err != nil {
			return nil, err
		}
		m.log.WithFields(log.Fields{
			"reclaimed_blobs": result.ReclaimedBlobs,
			"reclaimed_bytes": result.ReclaimedBytes,
		}).Info("garbage collection complete")
		return result, nil
	}, util.DatabaseRetryOptions(ctx, m.retryAttempts)...)
}

// GetSnapshotStats returns the file count and logical size of snapshot id.
// Returns common.ErrNotFound if the snapshot does not exist.
func (m *Manager) GetSnapshotStats(ctx context.Context, id int64) (*SnapshotStats, error) {
	stats := &SnapshotStats{SnapshotID: id}
	err := m.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := m.db.GetSnapshotWith(tx, ctx, id); err != nil {
			return err
		}
		var err error
		stats.FileCount, stats.TotalSize, err = m.db.GetSnapshotStatsWith(tx, ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// StorageStats reports store-wide blob and snapshot totals.
func (m *Manager) StorageStats(ctx context.Context) (*storage.StorageStats, error) {
	stats, err := m.db.GetStorageStats(ctx)
	if err != nil {
		return nil, common.ClassifyStorageError(err)
	}
	return stats, nil
}
