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

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/DevHarmeet/backuptool/internal/common"
)

// BunDB wraps a Bun database instance for type-safe queries.
//
// Methods with a With suffix take a bun.IDB so they can run on the plain
// database or inside a bun.Tx; every write path of the backup engine uses
// the With form so it joins the caller's transaction.
type BunDB struct {
	*bun.DB
}

// NewBunDB wraps an existing *sql.DB with Bun's type-safe query builder.
func NewBunDB(sqlDB *sql.DB) *BunDB {
	bunDB := bun.NewDB(sqlDB, sqlitedialect.New())
	return &BunDB{DB: bunDB}
}

// GetSchemaInfo retrieves a schema_info value by key.
func (db *BunDB) GetSchemaInfo(ctx context.Context, key string) (string, error) {
	var info SchemaInfoModel
	err := db.NewSelect().
		Model(&info).
		Where("key = ?", key).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return info.Value, nil
}

// --- Blob Operations ---

// PutBlobWith stores data under digest unless a blob with that digest exists.
// Existing content is never compared or replaced. Reports whether a row was inserted.
func (db *BunDB) PutBlobWith(idb bun.IDB, ctx context.Context, digest string, data []byte) (bool, error) {
	if data == nil {
		data = []byte{}
	}
	res, err := idb.NewInsert().
		Model(&BlobModel{
			Digest:  digest,
			Size:    int64(len(data)),
			Content: data,
		}).
		On("CONFLICT (digest) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// BlobExistsWith reports whether a blob is stored for digest.
func (db *BunDB) BlobExistsWith(idb bun.IDB, ctx context.Context, digest string) (bool, error) {
	return idb.NewSelect().
		Model((*BlobModel)(nil)).
		Where("digest = ?", digest).
		Exists(ctx)
}

// GetBlob returns the content stored for digest.
// Returns ErrNotFound if no blob exists.
func (db *BunDB) GetBlob(ctx context.Context, digest string) ([]byte, error) {
	return db.GetBlobWith(db.DB, ctx, digest)
}

// GetBlobWith is like GetBlob but uses the provided bun.IDB.
func (db *BunDB) GetBlobWith(idb bun.IDB, ctx context.Context, digest string) ([]byte, error) {
	var blob BlobModel
	err := idb.NewSelect().
		Model(&blob).
		Where("digest = ?", digest).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("blob %s: %w", digest, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return blob.Content, nil
}

// DeleteBlobWith removes the blob for digest and returns the bytes freed.
// Deleting an absent blob is a no-op.
func (db *BunDB) DeleteBlobWith(idb bun.IDB, ctx context.Context, digest string) (bool, int64, error) {
	var size sql.NullInt64
	err := idb.NewSelect().
		Model((*BlobModel)(nil)).
		Column("size").
		Where("digest = ?", digest).
		Scan(ctx, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	res, err := idb.NewDelete().
		Model((*BlobModel)(nil)).
		Where("digest = ?", digest).
		Exec(ctx)
	if err != nil {
		return false, 0, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, 0, nil
	}
	return true, size.Int64, nil
}

// CountReferencingWith returns how many snapshot entries point at digest.
// Callers deciding whether to reclaim must run it in the deleting transaction.
func (db *BunDB) CountReferencingWith(idb bun.IDB, ctx context.Context, digest string) (int, error) {
	return idb.NewSelect().
		Model((*SnapshotEntryModel)(nil)).
		Where("digest = ?", digest).
		Count(ctx)
}

// CountBlobs returns the number of distinct stored digests.
func (db *BunDB) CountBlobs(ctx context.Context) (int, error) {
	return db.NewSelect().Model((*BlobModel)(nil)).Count(ctx)
}

// ListDigests returns every stored digest in ascending order.
func (db *BunDB) ListDigests(ctx context.Context) ([]string, error) {
	var digests []string
	err := db.NewSelect().
		Model((*BlobModel)(nil)).
		Column("digest").
		Order("digest ASC").
		Scan(ctx, &digests)
	return digests, err
}

// --- Snapshot Operations ---

// InsertSnapshotWith inserts a new snapshot row and fills in its assigned ID.
func (db *BunDB) InsertSnapshotWith(idb bun.IDB, ctx context.Context, snapshot *SnapshotModel) error {
	// Use RETURNING clause to get the ID (libsql doesn't support LastInsertId)
	_, err := idb.NewInsert().
		Model(snapshot).
		Returning("id").
		Exec(ctx)
	return err
}

// GetSnapshot retrieves a snapshot by ID.
// Returns ErrNotFound if it doesn't exist.
func (db *BunDB) GetSnapshot(ctx context.Context, id int64) (*SnapshotModel, error) {
	return db.GetSnapshotWith(db.DB, ctx, id)
}

// GetSnapshotWith is like GetSnapshot but uses the provided bun.IDB.
func (db *BunDB) GetSnapshotWith(idb bun.IDB, ctx context.Context, id int64) (*SnapshotModel, error) {
	var snapshot SnapshotModel
	err := idb.NewSelect().
		Model(&snapshot).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %d %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// DeleteSnapshotWith deletes the snapshot row. Entries must be deleted first.
func (db *BunDB) DeleteSnapshotWith(idb bun.IDB, ctx context.Context, id int64) (int64, error) {
	res, err := idb.NewDelete().
		Model((*SnapshotModel)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountSnapshots returns the number of stored snapshots.
func (db *BunDB) CountSnapshots(ctx context.Context) (int, error) {
	return db.NewSelect().Model((*SnapshotModel)(nil)).Count(ctx)
}

// ListSnapshotSummaries returns all snapshots with file count and logical size,
// newest first, ties broken by the higher ID.
func (db *BunDB) ListSnapshotSummaries(ctx context.Context) ([]SnapshotSummary, error) {
	var rows []SnapshotSummary
	err := db.NewRaw(`
		SELECT s.id, s.created_at, s.name, s.description,
		       COUNT(e.rel_path) AS file_count,
		       COALESCE(SUM(b.size), 0) AS total_size
		FROM snapshots s
		LEFT JOIN snapshot_entries e ON e.snapshot_id = s.id
		LEFT JOIN blobs b ON b.digest = e.digest
		GROUP BY s.id, s.created_at, s.name, s.description
		ORDER BY s.created_at DESC, s.id DESC
	`).Scan(ctx, &rows)
	return rows, err
}

// GetSnapshotStatsWith returns the file count and total logical size of a snapshot.
// It does not check that the snapshot exists. Entries whose blob is missing
// are counted with size 0.
func (db *BunDB) GetSnapshotStatsWith(idb bun.IDB, ctx context.Context, id int64) (int64, int64, error) {
	var fileCount, totalSize int64
	err := idb.NewRaw(`
		SELECT COUNT(*), COALESCE(SUM(b.size), 0)
		FROM snapshot_entries e
		LEFT JOIN blobs b ON b.digest = e.digest
		WHERE e.snapshot_id = ?
	`, id).Scan(ctx, &fileCount, &totalSize)
	return fileCount, totalSize, err
}

// --- Snapshot Entry Operations ---

// InsertEntryWith records one path of a snapshot.
func (db *BunDB) InsertEntryWith(idb bun.IDB, ctx context.Context, entry *SnapshotEntryModel) error {
	_, err := idb.NewInsert().Model(entry).Exec(ctx)
	return err
}

// ListEntriesWith returns the entries of a snapshot ordered by path.
func (db *BunDB) ListEntriesWith(idb bun.IDB, ctx context.Context, snapshotID int64) ([]SnapshotEntryModel, error) {
	var entries []SnapshotEntryModel
	err := idb.NewSelect().
		Model(&entries).
		Where("snapshot_id = ?", snapshotID).
		Order("rel_path ASC").
		Scan(ctx)
	return entries, err
}

// ListEntryDigestsWith returns the distinct digests referenced by a snapshot.
func (db *BunDB) ListEntryDigestsWith(idb bun.IDB, ctx context.Context, snapshotID int64) ([]string, error) {
	var digests []string
	err := idb.NewSelect().
		Model((*SnapshotEntryModel)(nil)).
		ColumnExpr("DISTINCT digest").
		Where("snapshot_id = ?", snapshotID).
		Order("digest ASC").
		Scan(ctx, &digests)
	return digests, err
}

// DeleteEntriesWith deletes all entries of a snapshot.
func (db *BunDB) DeleteEntriesWith(idb bun.IDB, ctx context.Context, snapshotID int64) (int64, error) {
	res, err := idb.NewDelete().
		Model((*SnapshotEntryModel)(nil)).
		Where("snapshot_id = ?", snapshotID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountEntries returns the number of entries across all snapshots.
func (db *BunDB) CountEntries(ctx context.Context) (int, error) {
	return db.NewSelect().Model((*SnapshotEntryModel)(nil)).Count(ctx)
}

// --- Garbage Collection Operations ---

// ListOrphanDigestsWith returns digests of blobs that no entry references.
func (db *BunDB) ListOrphanDigestsWith(idb bun.IDB, ctx context.Context) ([]string, error) {
	var digests []string
	err := idb.NewRaw(`
		SELECT b.digest
		FROM blobs b
		WHERE NOT EXISTS (SELECT 1 FROM snapshot_entries e WHERE e.digest = b.digest)
		ORDER BY b.digest
	`).Scan(ctx, &digests)
	return digests, err
}

// ListDanglingEntries returns entries whose digest has no blob row.
func (db *BunDB) ListDanglingEntries(ctx context.Context) ([]DanglingEntry, error) {
	var rows []DanglingEntry
	err := db.NewRaw(`
		SELECT e.snapshot_id, e.rel_path, e.digest
		FROM snapshot_entries e
		LEFT JOIN blobs b ON b.digest = e.digest
		WHERE b.digest IS NULL
		ORDER BY e.snapshot_id, e.rel_path
	`).Scan(ctx, &rows)
	return rows, err
}

// StorageStats holds statistics about storage usage.
type StorageStats struct {
	SnapshotCount    int
	EntryCount       int
	TotalBlobs       int
	TotalBlobsBytes  int64
	OrphanedBlobs    int // referenced by no snapshot entry
	OrphanedBytes    int64
	LogicalSizeBytes int64 // sum of entry sizes, counting shared content once per entry
}

// GetStorageStats returns overall storage statistics.
func (db *BunDB) GetStorageStats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{}

	err := db.NewRaw(`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM blobs`).
		Scan(ctx, &stats.TotalBlobs, &stats.TotalBlobsBytes)
	if err != nil {
		return nil, err
	}

	err = db.NewRaw(`
		SELECT COUNT(*), COALESCE(SUM(b.size), 0)
		FROM blobs b
		WHERE NOT EXISTS (SELECT 1 FROM snapshot_entries e WHERE e.digest = b.digest)
	`).Scan(ctx, &stats.OrphanedBlobs, &stats.OrphanedBytes)
	if err != nil {
		return nil, err
	}

	err = db.NewRaw(`
		SELECT COUNT(*), COALESCE(SUM(b.size), 0)
		FROM snapshot_entries e
		JOIN blobs b ON b.digest = e.digest
	`).Scan(ctx, &stats.EntryCount, &stats.LogicalSizeBytes)
	if err != nil {
		return nil, err
	}

	if stats.SnapshotCount, err = db.CountSnapshots(ctx); err != nil {
		return nil, err
	}
	return stats, nil
}
