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
	"time"

	"github.com/uptrace/bun"
)

// Bun ORM models for the backup database tables.

// SchemaInfoModel represents the schema_info table
type SchemaInfoModel struct {
	bun.BaseModel `bun:"table:schema_info"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

// SnapshotModel represents the snapshots metadata table
type SnapshotModel struct {
	bun.BaseModel `bun:"table:snapshots"`

	ID          int64  `bun:"id,pk,autoincrement"`
	CreatedAt   int64  `bun:"created_at,notnull"` // Unix timestamp
	Name        string `bun:"name,nullzero"`
	Description string `bun:"description,nullzero"`
}

// BlobModel represents deduplicated content storage (content-addressable)
type BlobModel struct {
	bun.BaseModel `bun:"table:blobs"`

	Digest  string `bun:"digest,pk"` // SHA-256, lowercase hex
	Size    int64  `bun:"size,notnull"`
	Content []byte `bun:"content,notnull"`
}

// SnapshotEntryModel binds one path of a snapshot to a blob
type SnapshotEntryModel struct {
	bun.BaseModel `bun:"table:snapshot_entries"`

	SnapshotID  int64  `bun:"snapshot_id,pk"`
	RelPath     string `bun:"rel_path,pk"`
	Digest      string `bun:"digest,notnull"` // References blobs.digest
	Permissions int64  `bun:"permissions,notnull"`
}

// SnapshotSummary is a snapshot row with its aggregated entry stats.
type SnapshotSummary struct {
	ID          int64  `bun:"id"`
	CreatedAt   int64  `bun:"created_at"`
	Name        string `bun:"name"`
	Description string `bun:"description"`
	FileCount   int64  `bun:"file_count"`
	TotalSize   int64  `bun:"total_size"`
}

// Timestamp returns CreatedAt as a time.Time
func (s *SnapshotSummary) Timestamp() time.Time {
	return time.Unix(s.CreatedAt, 0)
}

// DanglingEntry is a snapshot entry whose digest has no blob row.
type DanglingEntry struct {
	SnapshotID int64  `bun:"snapshot_id"`
	RelPath    string `bun:"rel_path"`
	Digest     string `bun:"digest"`
}
