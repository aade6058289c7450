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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevHarmeet/backuptool/internal/common"
)

func TestVerify_CleanStore(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.CreateSnapshotFromDir(ctx, writeTree(t, map[string]string{"a": "a", "b": "b"}), CreateOptions{})
	require.NoError(t, err)

	report, err := m.Verify(ctx, true)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 2, report.BlobsChecked)
}

func TestVerify_DanglingEntry(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	id, err := m.CreateSnapshotFromDir(ctx, writeTree(t, map[string]string{"a": "a"}), CreateOptions{})
	require.NoError(t, err)
	removeBlobUnchecked(t, m, Digest([]byte("a")))

	report, err := m.Verify(ctx, false)
	assert.ErrorIs(t, err, common.ErrIntegrityViolation)
	require.Len(t, report.Dangling, 1)
	assert.Equal(t, id, report.Dangling[0].SnapshotID)
	assert.Equal(t, "a", report.Dangling[0].RelPath)
}

func TestVerify_OrphanBlob(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.db.PutBlobWith(m.db.DB, ctx, Digest([]byte("loose")), []byte("loose"))
	require.NoError(t, err)

	report, err := m.Verify(ctx, false)
	assert.ErrorIs(t, err, common.ErrIntegrityViolation)
	assert.Equal(t, []string{Digest([]byte("loose"))}, report.Orphans)
}

func TestVerify_CorruptContent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.CreateSnapshotFromDir(ctx, writeTree(t, map[string]string{"a": "original"}), CreateOptions{})
	require.NoError(t, err)

	digest := Digest([]byte("original"))
	_, err = m.Store().DB().ExecContext(ctx, "UPDATE blobs SET content = ? WHERE digest = ?", []byte("tampered"), digest)
	require.NoError(t, err)

	report, err := m.Verify(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, report.BlobsChecked)

	report, err = m.Verify(ctx, true)
	assert.ErrorIs(t, err, common.ErrIntegrityViolation)
	assert.Equal(t, []string{digest}, report.Corrupt)
}
