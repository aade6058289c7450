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
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	_ "github.com/tursodatabase/go-libsql"
	"github.com/uptrace/bun"

	"github.com/DevHarmeet/backuptool/internal/common"
)

// Store is a SQLite-backed backup database holding snapshots, their
// entries and the deduplicated blob table.
type Store struct {
	path  string
	db    *sql.DB
	bunDB *BunDB
}

// execPragma runs a PRAGMA statement using Query (not Exec) because libsql
// returns rows for PRAGMA statements. The result rows are drained and closed.
func execPragma(db *sql.DB, pragma string) error {
	rows, err := db.Query(pragma)
	if err != nil {
		return err
	}
	rows.Close()
	return nil
}

// applyPragmas sets essential PRAGMAs after opening a libsql connection.
// libsql ignores DSN-based _pragma=value parameters, so all PRAGMAs must be
// set explicitly via SQL statements after the connection is opened.
func applyPragmas(db *sql.DB) error {
	// PRAGMAs are per connection. A single pooled connection keeps
	// foreign_keys and busy_timeout in force for every query.
	db.SetMaxOpenConns(1)

	// busy_timeout first so journal_mode=WAL waits for locks instead of failing.
	if err := execPragma(db, fmt.Sprintf("PRAGMA busy_timeout = %d", GetBusyTimeout())); err != nil {
		return fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	if err := execPragma(db, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to set journal_mode=WAL: %w", err)
	}
	if err := execPragma(db, "PRAGMA synchronous=NORMAL"); err != nil {
		return fmt.Errorf("failed to set synchronous=NORMAL: %w", err)
	}

	// Foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := execPragma(db, "PRAGMA cache_size = -8000"); err != nil {
		return fmt.Errorf("failed to set cache_size: %w", err)
	}

	// Failure is non-fatal (may not be supported on all platforms).
	_ = execPragma(db, "PRAGMA mmap_size = 268435456")

	return nil
}

// Create creates a new backup database at path. The parent directory is
// created if missing.
func Create(path string) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: create database directory: %w", common.ErrStorageUnavailable, err)
	}

	db, err := sql.Open("libsql", BuildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create database: %w", common.ErrStorageUnavailable, err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	// Create schema (execute statements individually for libsql compatibility)
	if err := execStatements(db, backupSchema); err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := execStatements(db, initSchemaInfo, SchemaVersion, FileType); err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to initialize schema info: %w", err)
	}

	return &Store{
		path:  path,
		db:    db,
		bunDB: NewBunDB(db),
	}, nil
}

// Open opens an existing backup database.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: file not found: %s", common.ErrStorageUnavailable, path)
	}

	db, err := sql.Open("libsql", BuildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", common.ErrStorageUnavailable, err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	bunDB := NewBunDB(db)

	// Verify it's a backup database
	fileType, err := bunDB.GetSchemaInfo(context.Background(), "type")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to read schema info: %w", common.ErrStorageUnavailable, err)
	}
	if fileType != FileType {
		db.Close()
		return nil, fmt.Errorf("%w: not a backup database (type=%q)", common.ErrStorageUnavailable, fileType)
	}

	return &Store{
		path:  path,
		db:    db,
		bunDB: bunDB,
	}, nil
}

// OpenOrCreate opens the database at path, creating it on first use.
func OpenOrCreate(path string) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Create(path)
	}
	return Open(path)
}

// Close checkpoints the WAL into the main database file (TRUNCATE) and
// closes the connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	// PRAGMA wal_checkpoint returns rows, so we must use Query() not Exec()
	rows, err := s.db.Query("PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		log.WithError(err).WithField("path", s.path).Warn("WAL checkpoint failed")
	} else {
		rows.Close()
	}

	if err := s.db.Close(); err != nil {
		return err
	}
	s.db = nil

	// -wal and -shm belong to SQLite; it removes them when the last
	// connection to the file closes.
	return nil
}

// Path returns the file path
func (s *Store) Path() string {
	return s.path
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// BunDB returns the Bun database wrapper.
func (s *Store) BunDB() *BunDB {
	return s.bunDB
}

// RunInTx runs fn in a single transaction. fn's error or a failed commit
// rolls back every write. Driver errors are classified into the
// common sentinels so callers can match on them.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	if s.db == nil {
		return fmt.Errorf("%w: database is closed", common.ErrStorageUnavailable)
	}
	return common.ClassifyStorageError(s.bunDB.RunInTx(ctx, nil, fn))
}

// Vacuum rebuilds the database file, returning space freed by deletions
// to the filesystem.
func (s *Store) Vacuum(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("%w: database is closed", common.ErrStorageUnavailable)
	}
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return common.ClassifyStorageError(err)
}
