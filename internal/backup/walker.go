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
	"fmt"
	"io"
	"os"
	"path"
	"sort"

	"github.com/go-git/go-billy/v5"

	"github.com/DevHarmeet/backuptool/internal/common"
)

// FileEntry describes one regular file found by a Walker.
type FileEntry struct {
	RelPath string      // slash-separated, relative to the walk root
	Mode    os.FileMode // permission bits only
	Size    int64
}

// walkFrame is one directory on the walker's stack.
type walkFrame struct {
	dir     string
	entries []os.FileInfo
	next    int
}

// Walker enumerates regular files under the root of a billy filesystem.
//
// Traversal is depth-first with an explicit stack. Each directory's entries
// are visited in name order, so a fixed tree always yields the same sequence.
// Directories produce no FileEntry. Symlinks and special files fail the walk
// with common.ErrUnsupportedFileType; unreadable directories with common.ErrIO.
type Walker struct {
	fs      billy.Filesystem
	filter  Filter
	stack   []walkFrame
	started bool
	err     error
}

// NewWalker creates a walker over fs. filter may be nil.
func NewWalker(fs billy.Filesystem, filter Filter) *Walker {
	return &Walker{fs: fs, filter: filter}
}

// Next returns the next regular file, or io.EOF when the walk is complete.
// After a non-EOF error the walker keeps returning that error until Reset.
func (w *Walker) Next() (FileEntry, error) {
	if w.err != nil {
		return FileEntry{}, w.err
	}
	if !w.started {
		w.started = true
		if err := w.push(""); err != nil {
			return FileEntry{}, w.fail(err)
		}
	}

	for len(w.stack) > 0 {
		top := &w.stack[len(w.stack)-1]
		if top.next >= len(top.entries) {
			w.stack = w.stack[:len(w.stack)-1]
			continue
		}
		fi := top.entries[top.next]
		top.next++

		rel := path.Join(top.dir, fi.Name())
		mode := fi.Mode()
		if w.filter != nil && !w.filter(rel, mode.IsDir()) {
			continue
		}

		switch {
		case mode.IsDir():
			if err := w.push(rel); err != nil {
				return FileEntry{}, w.fail(err)
			}
		case mode.IsRegular():
			return FileEntry{
				RelPath: rel,
				Mode:    mode.Perm(),
				Size:    fi.Size(),
			}, nil
		default:
			return FileEntry{}, w.fail(fmt.Errorf("%s (%s): %w", rel, describeMode(mode), common.ErrUnsupportedFileType))
		}
	}
	return FileEntry{}, io.EOF
}

// Reset restarts the walk from the root.
func (w *Walker) Reset() {
	w.stack = nil
	w.started = false
	w.err = nil
}

// Count walks the whole tree and returns the number of regular files.
// The walker is reset before and after counting.
func (w *Walker) Count() (int, error) {
	w.Reset()
	defer w.Reset()

	n := 0
	for {
		_, err := w.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

func (w *Walker) push(dir string) error {
	readPath := dir
	if readPath == "" {
		readPath = "."
	}
	entries, err := w.fs.ReadDir(readPath)
	if err != nil {
		return fmt.Errorf("%w: read dir %q: %w", common.ErrIO, readPath, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	w.stack = append(w.stack, walkFrame{dir: dir, entries: entries})
	return nil
}

func (w *Walker) fail(err error) error {
	w.err = err
	w.stack = nil
	return err
}

func describeMode(mode os.FileMode) string {
	switch {
	case mode&os.ModeSymlink != 0:
		return "symlink"
	case mode&os.ModeNamedPipe != 0:
		return "named pipe"
	case mode&os.ModeSocket != 0:
		return "socket"
	case mode&os.ModeDevice != 0:
		return "device"
	default:
		return mode.Type().String()
	}
}
