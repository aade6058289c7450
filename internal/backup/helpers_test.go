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
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/DevHarmeet/backuptool/internal/storage"
)

func quietLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	store, err := storage.Create(filepath.Join(t.TempDir(), "backup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewManager(store, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

// writeTree creates files under a fresh temp dir and returns its path.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

// storeCounts returns the snapshot, entry and blob row counts.
func storeCounts(t *testing.T, m *Manager) (int, int, int) {
	t.Helper()
	ctx := context.Background()
	snapshots, err := m.db.CountSnapshots(ctx)
	require.NoError(t, err)
	entries, err := m.db.CountEntries(ctx)
	require.NoError(t, err)
	blobs, err := m.db.CountBlobs(ctx)
	require.NoError(t, err)
	return snapshots, entries, blobs
}

// requireIntegrity checks that blobs and entries reference each other exactly.
func requireIntegrity(t *testing.T, m *Manager) {
	t.Helper()
	report, err := m.Verify(context.Background(), true)
	require.NoError(t, err)
	require.True(t, report.OK())
}

// fixedClock returns a clock that yields the given Unix times in order,
// repeating the last one.
func fixedClock(unix ...int64) func() time.Time {
	i := 0
	return func() time.Time {
		ts := unix[i]
		if i < len(unix)-1 {
			i++
		}
		return time.Unix(ts, 0)
	}
}
