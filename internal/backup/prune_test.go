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
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevHarmeet/backuptool/internal/common"
	"github.com/DevHarmeet/backuptool/internal/storage"
)

func TestPruneSnapshot_SharedContentPreserved(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	dir := writeTree(t, map[string]string{"a.txt": "alpha", "sub/b.txt": "beta"})

	first, err := m.CreateSnapshotFromDir(ctx, dir, CreateOptions{})
	require.NoError(t, err)
	second, err := m.CreateSnapshotFromDir(ctx, dir, CreateOptions{})
	require.NoError(t, err)
	_, _, blobs := storeCounts(t, m)
	require.Equal(t, 2, blobs)

	result, err := m.PruneSnapshot(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.RemovedEntries)
	assert.Zero(t, result.ReclaimedBlobs)
	assert.Zero(t, result.ReclaimedBytes)

	_, _, blobs = storeCounts(t, m)
	assert.Equal(t, 2, blobs)
	requireIntegrity(t, m)

	out := t.TempDir()
	_, err = m.RestoreToDir(ctx, second, out)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(out, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "beta", string(data))

	result, err = m.PruneSnapshot(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ReclaimedBlobs)
	assert.Equal(t, int64(len("alpha")+len("beta")), result.ReclaimedBytes)

	snapshots, entries, blobs := storeCounts(t, m)
	assert.Zero(t, snapshots)
	assert.Zero(t, entries)
	assert.Zero(t, blobs)
}

func TestPruneSnapshot_OrphanReclaimExactness(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	dir := writeTree(t, map[string]string{
		"shared.txt": "shared",
		"only1.txt":  "one",
		"only1b.txt": "one-b",
		"dup.txt":    "one",
	})

	first, err := m.CreateSnapshotFromDir(ctx, dir, CreateOptions{})
	require.NoError(t, err)

	for _, name := range []string{"only1.txt", "only1b.txt", "dup.txt"} {
		require.NoError(t, os.Remove(filepath.Join(dir, name)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "only2.txt"), []byte("two"), 0o644))

	_, err = m.CreateSnapshotFromDir(ctx, dir, CreateOptions{})
	require.NoError(t, err)
	_, _, blobs := storeCounts(t, m)
	require.Equal(t, 4, blobs)

	result, err := m.PruneSnapshot(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.RemovedEntries)
	assert.Equal(t, 2, result.ReclaimedBlobs)
	assert.Equal(t, int64(len("one")+len("one-b")), result.ReclaimedBytes)

	data, err := m.db.GetBlob(ctx, Digest([]byte("shared")))
	require.NoError(t, err)
	assert.Equal(t, "shared", string(data))

	_, _, blobs = storeCounts(t, m)
	assert.Equal(t, 2, blobs)
	requireIntegrity(t, m)
}

func TestPruneSnapshot_NotFoundLeavesStoreUnchanged(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.CreateSnapshotFromDir(ctx, writeTree(t, map[string]string{"a": "a", "b": "b"}), CreateOptions{})
	require.NoError(t, err)

	snapshots, entries, blobs := storeCounts(t, m)

	_, err = m.PruneSnapshot(ctx, 999)
	assert.ErrorIs(t, err, common.ErrNotFound)

	s2, e2, b2 := storeCounts(t, m)
	assert.Equal(t, snapshots, s2)
	assert.Equal(t, entries, e2)
	assert.Equal(t, blobs, b2)
}

func TestPruneSnapshot_IDsAreNotReused(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	dir := writeTree(t, map[string]string{"a": "a"})

	first, err := m.CreateSnapshotFromDir(ctx, dir, CreateOptions{})
	require.NoError(t, err)
	_, err = m.PruneSnapshot(ctx, first)
	require.NoError(t, err)

	next, err := m.CreateSnapshotFromDir(ctx, dir, CreateOptions{})
	require.NoError(t, err)
	assert.Greater(t, next, first)
}

func TestGetSnapshotStats_NotFound(t *testing.T) {
	m := newTestManager(t)

	_, err := m.GetSnapshotStats(context.Background(), 7)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGarbageCollect(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.CreateSnapshotFromDir(ctx, writeTree(t, map[string]string{"a": "kept"}), CreateOptions{})
	require.NoError(t, err)

	_, err = m.db.PutBlobWith(m.db.DB, ctx, Digest([]byte("stray")), []byte("stray"))
	require.NoError(t, err)

	stats, err := m.StorageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.OrphanedBlobs)

	result, err := m.GarbageCollect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ReclaimedBlobs)
	assert.Equal(t, int64(len("stray")), result.ReclaimedBytes)

	result, err = m.GarbageCollect(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.ReclaimedBlobs)
	requireIntegrity(t, m)
}

// TestConcurrentCreateAndPrune races snapshot creation against pruning of
// snapshots that share the same content, through two independent stores on
// one database file.
func TestConcurrentCreateAndPrune(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "backup.db")
	storeA, err := storage.Create(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { storeA.Close() })
	storeB, err := storage.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { storeB.Close() })

	managers := []*Manager{
		NewManager(storeA, WithLogger(quietLogger()), WithRetryAttempts(50)),
		NewManager(storeB, WithLogger(quietLogger()), WithRetryAttempts(50)),
	}
	ctx := context.Background()

	shared := memfs.New()
	writeMemFiles(t, shared, map[string]string{"a.txt": "shared a", "b/c.txt": "shared c"})
	base, err := managers[0].CreateSnapshot(ctx, shared, CreateOptions{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(m *Manager) {
			defer wg.Done()
			id, err := m.CreateSnapshot(ctx, shared, CreateOptions{})
			if err != nil {
				errs <- err
				return
			}
			if _, err := m.PruneSnapshot(ctx, id); err != nil {
				errs <- err
			}
		}(managers[i%2])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list, err := managers[1].ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, base, list[0].ID)
	requireIntegrity(t, managers[0])

	_, err = managers[1].RestoreSnapshot(ctx, base, memfs.New())
	require.NoError(t, err)
}
