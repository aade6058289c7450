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
	"time"

	"github.com/uptrace/bun"

	"github.com/DevHarmeet/backuptool/internal/common"
)

// SnapshotInfo is a snapshot with its derived file count and size.
type SnapshotInfo struct {
	ID          int64
	Timestamp   time.Time
	Name        string
	Description string
	FileCount   int64
	TotalSize   int64
}

// ListSnapshots returns all snapshots, newest first. Snapshots with the same
// timestamp are ordered by descending ID.
func (m *Manager) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := m.db.ListSnapshotSummaries(ctx)
	if err != nil {
		return nil, common.ClassifyStorageError(err)
	}
	infos := make([]SnapshotInfo, 0, len(rows))
	for i := range rows {
		infos = append(infos, SnapshotInfo{
			ID:          rows[i].ID,
			Timestamp:   rows[i].Timestamp(),
			Name:        rows[i].Name,
			Description: rows[i].Description,
			FileCount:   rows[i].FileCount,
			TotalSize:   rows[i].TotalSize,
		})
	}
	return infos, nil
}

// GetSnapshot returns one snapshot with its stats, or common.ErrNotFound.
func (m *Manager) GetSnapshot(ctx context.Context, id int64) (*SnapshotInfo, error) {
	var info *SnapshotInfo
	err := m.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		snap, err := m.db.GetSnapshotWith(tx, ctx, id)
		if err != nil {
			return err
		}
		count, size, err := m.db.GetSnapshotStatsWith(tx, ctx, id)
		if err != nil {
			return err
		}
		info = &SnapshotInfo{
			ID:          snap.ID,
			Timestamp:   time.Unix(snap.CreatedAt, 0),
			Name:        snap.Name,
			Description: snap.Description,
			FileCount:   count,
			TotalSize:   size,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}
