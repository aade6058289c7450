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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v5"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/DevHarmeet/backuptool/internal/common"
	"github.com/DevHarmeet/backuptool/internal/storage"
	"github.com/DevHarmeet/backuptool/internal/util"
)

// ProgressFunc is notified after each file is stored. It cannot influence
// the snapshot: a panic inside it is recovered and logged.
type ProgressFunc func(current, total int, filename string)

// CreateOptions holds the optional inputs of CreateSnapshot.
type CreateOptions struct {
	Name        string
	Description string
	Progress    ProgressFunc
	Filter      Filter
}

// CreateSnapshot records every regular file under the root of fs as a new
// snapshot and returns its ID.
//
// The snapshot row, its entries and every newly stored blob are written in
// one transaction; on any failure nothing is left behind. Transaction
// conflicts are retried with a fresh walk. All failures are returned wrapped
// in common.ErrSnapshotCreationFailed together with their cause.
func (m *Manager) CreateSnapshot(ctx context.Context, fs billy.Filesystem, opts CreateOptions) (int64, error) {
	total, err := NewWalker(fs, opts.Filter).Count()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", common.ErrSnapshotCreationFailed, err)
	}

	id, err := util.RetryWithResult(ctx, func() (int64, error) {
		return m.createOnce(ctx, fs, opts, total)
	}, util.DatabaseRetryOptions(ctx, m.retryAttempts)...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", common.ErrSnapshotCreationFailed, err)
	}
	return id, nil
}

// CreateSnapshotFromDir snapshots a host directory.
func (m *Manager) CreateSnapshotFromDir(ctx context.Context, dir string, opts CreateOptions) (int64, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: target directory %s %w", common.ErrSnapshotCreationFailed, dir, common.ErrNotFound)
		}
		return 0, fmt.Errorf("%w: %w: %w", common.ErrSnapshotCreationFailed, common.ErrIO, err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%w: %s is not a directory: %w", common.ErrSnapshotCreationFailed, dir, common.ErrInvalidPath)
	}
	return m.CreateSnapshot(ctx, NewDirFS(dir), opts)
}

func (m *Manager) createOnce(ctx context.Context, fs billy.Filesystem, opts CreateOptions, total int) (int64, error) {
	snap := &storage.SnapshotModel{
		CreatedAt:   m.now().Unix(),
		Name:        opts.Name,
		Description: opts.Description,
	}
	var stored, reused int

	err := m.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		// The insert comes first so the transaction takes the write lock
		// before any blob is stored.
		if err := m.db.InsertSnapshotWith(tx, ctx, snap); err != nil {
			return err
		}

		walker := NewWalker(fs, opts.Filter)
		current := 0
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry, err := walker.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}

			inserted, err := m.storeFile(ctx, tx, fs, snap.ID, entry)
			if err != nil {
				return err
			}
			if inserted {
				stored++
			} else {
				reused++
			}

			current++
			m.notify(opts.Progress, current, total, entry.RelPath)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	m.log.WithFields(log.Fields{
		"snapshot":     snap.ID,
		"blobs_stored": stored,
		"blobs_reused": reused,
	}).Info("snapshot committed")
	return snap.ID, nil
}

// storeFile reads one file, stores its blob and records the entry.
// Reports whether a new blob was written.
func (m *Manager) storeFile(ctx context.Context, tx bun.Tx, fs billy.Filesystem, snapshotID int64, entry FileEntry) (bool, error) {
	f, err := fs.Open(entry.RelPath)
	if err != nil {
		return false, fmt.Errorf("%w: open %s: %w", common.ErrIO, entry.RelPath, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	buf.Grow(int(entry.Size))
	digest, _, err := DigestReader(io.TeeReader(f, &buf))
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %w", common.ErrIO, entry.RelPath, err)
	}
	data := buf.Bytes()

	exists, err := m.db.BlobExistsWith(tx, ctx, digest)
	if err != nil {
		return false, fmt.Errorf("look up blob for %s: %w", entry.RelPath, err)
	}
	inserted := false
	if !exists {
		if inserted, err = m.db.PutBlobWith(tx, ctx, digest, data); err != nil {
			return false, fmt.Errorf("store blob for %s: %w", entry.RelPath, err)
		}
	}

	err = m.db.InsertEntryWith(tx, ctx, &storage.SnapshotEntryModel{
		SnapshotID:  snapshotID,
		RelPath:     entry.RelPath,
		Digest:      digest,
		Permissions: int64(entry.Mode & storage.PermMask),
	})
	if err != nil {
		return false, fmt.Errorf("record entry %s: %w", entry.RelPath, err)
	}

	m.log.WithFields(log.Fields{
		"path":   entry.RelPath,
		"digest": digest,
		"new":    inserted,
	}).Debug("stored file")
	return inserted, nil
}

func (m *Manager) notify(fn ProgressFunc, current, total int, filename string) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.WithField("panic", r).Warn("progress callback panicked")
		}
	}()
	fn(current, total, filename)
}
