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
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"
	billyutil "github.com/go-git/go-billy/v5/util"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/DevHarmeet/backuptool/internal/common"
)

const restoreDirMode = 0o755

// RestoreResult reports what a restore wrote.
type RestoreResult struct {
	SnapshotID    int64
	RestoredPaths []string
	// Warnings lists permission changes that could not be applied.
	Warnings []string
}

// RestoreSnapshot writes every entry of snapshot id into out, creating parent
// directories as needed and then applying the recorded permission bits.
//
// Content write failures abort the restore with common.ErrIO and may leave a
// partial tree; running the restore again is safe. Permission failures are
// collected as warnings.
func (m *Manager) RestoreSnapshot(ctx context.Context, id int64, out billy.Filesystem) (*RestoreResult, error) {
	result := &RestoreResult{SnapshotID: id}
	changer, canChmod := out.(billy.Change)

	err := m.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := m.db.GetSnapshotWith(tx, ctx, id); err != nil {
			return err
		}
		entries, err := m.db.ListEntriesWith(tx, ctx, id)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			rel, err := common.ValidateRelPath(entry.RelPath)
			if err != nil {
				return err
			}

			data, err := m.db.GetBlobWith(tx, ctx, entry.Digest)
			if errors.Is(err, common.ErrNotFound) {
				return fmt.Errorf("%w: %s references missing blob %s", common.ErrIntegrityViolation, rel, entry.Digest)
			}
			if err != nil {
				return err
			}

			perm := os.FileMode(entry.Permissions) & os.ModePerm
			if dir := common.ParentPath(rel); dir != "" {
				if err := out.MkdirAll(dir, restoreDirMode); err != nil {
					return fmt.Errorf("%w: create %s: %w", common.ErrIO, dir, err)
				}
			}
			if err := billyutil.WriteFile(out, rel, data, perm); err != nil {
				return fmt.Errorf("%w: write %s: %w", common.ErrIO, rel, err)
			}
			result.RestoredPaths = append(result.RestoredPaths, rel)

			if !canChmod {
				m.log.WithFields(log.Fields{
					"path": rel,
					"mode": fmt.Sprintf("%o", perm),
				}).Warn("output filesystem does not support permissions")
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s: permissions not supported by output filesystem", rel))
				continue
			}
			if err := changer.Chmod(rel, perm); err != nil {
				m.log.WithError(err).WithFields(log.Fields{
					"path": rel,
					"mode": fmt.Sprintf("%o", perm),
				}).Warn("failed to restore permissions")
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s: chmod %o: %v", rel, perm, err))
			}
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	m.log.WithFields(log.Fields{
		"snapshot": id,
		"files":    len(result.RestoredPaths),
		"warnings": len(result.Warnings),
	}).Info("snapshot restored")
	return result, nil
}

// RestoreToDir restores snapshot id into a host directory, creating it if needed.
func (m *Manager) RestoreToDir(ctx context.Context, id int64, dir string) (*RestoreResult, error) {
	if err := os.MkdirAll(dir, restoreDirMode); err != nil {
		return nil, fmt.Errorf("%w: create output directory: %w", common.ErrIO, err)
	}
	return m.RestoreSnapshot(ctx, id, NewDirFS(dir))
}
