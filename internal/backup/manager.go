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

// Package backup implements the content-addressed snapshot engine: walking a
// tree, storing deduplicated file content, and restoring, pruning and listing
// snapshots on top of a storage.Store.
package backup

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	log "github.com/sirupsen/logrus"

	"github.com/DevHarmeet/backuptool/internal/storage"
	"github.com/DevHarmeet/backuptool/internal/util"
)

// Manager runs snapshot operations against one store. It holds no state
// between calls beyond the store handle, so one Manager may be shared.
type Manager struct {
	store         *storage.Store
	db            *storage.BunDB
	log           log.FieldLogger
	now           func() time.Time
	retryAttempts uint
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for operation logs.
func WithLogger(l log.FieldLogger) Option {
	return func(m *Manager) { m.log = l }
}

// WithClock overrides the time source used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRetryAttempts sets how many times a conflicting transaction is run.
func WithRetryAttempts(n uint) Option {
	return func(m *Manager) { m.retryAttempts = n }
}

// NewManager creates a Manager on an open store.
func NewManager(store *storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store:         store,
		db:            store.BunDB(),
		log:           log.StandardLogger(),
		now:           time.Now,
		retryAttempts: util.DefaultTxAttempts,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() *storage.Store {
	return m.store
}

// dirFS is an osfs filesystem rooted at a host directory that also
// implements billy.Change, applying mode and ownership changes on disk.
type dirFS struct {
	billy.Filesystem
	root string
}

// NewDirFS returns a billy filesystem for the host directory root.
func NewDirFS(root string) billy.Filesystem {
	return &dirFS{Filesystem: osfs.New(root), root: root}
}

func (d *dirFS) hostPath(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(name))
}

// billy.Change interface
func (d *dirFS) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(d.hostPath(name), mode)
}

func (d *dirFS) Lchown(name string, uid, gid int) error {
	return os.Lchown(d.hostPath(name), uid, gid)
}

func (d *dirFS) Chown(name string, uid, gid int) error {
	return os.Chown(d.hostPath(name), uid, gid)
}

func (d *dirFS) Chtimes(name string, atime, mtime time.Time) error {
	return os.Chtimes(d.hostPath(name), atime, mtime)
}

var _ billy.Change = (*dirFS)(nil)
