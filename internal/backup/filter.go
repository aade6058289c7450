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
	"os"
	"strings"

	"github.com/go-git/go-billy/v5"
	billyutil "github.com/go-git/go-billy/v5/util"
	ignore "github.com/sabhiram/go-gitignore"
	log "github.com/sirupsen/logrus"
)

// IgnoreFileName is read from the snapshot root, gitignore syntax.
const IgnoreFileName = ".backupignore"

// Filter decides whether relPath is part of a snapshot. Returning false
// skips the path; for a directory the whole subtree is skipped.
type Filter func(relPath string, isDir bool) bool

// BuildFilter creates a Filter from gitignore-style patterns plus the
// root's .backupignore file, if present.
//
// Precedence:
// 1. Excludes list (plain relative paths, whole subtree)
// 2. Patterns and .backupignore rules
func BuildFilter(fs billy.Filesystem, excludes, patterns []string) Filter {
	lines := append([]string(nil), patterns...)
	if fs != nil {
		if data, err := billyutil.ReadFile(fs, IgnoreFileName); err == nil {
			lines = append(lines, strings.Split(string(data), "\n")...)
		} else if !os.IsNotExist(err) {
			log.WithError(err).Warn("filter: failed to read " + IgnoreFileName)
		}
	}

	var matcher *ignore.GitIgnore
	if len(lines) > 0 {
		matcher = ignore.CompileIgnoreLines(lines...)
	}
	if matcher == nil && len(excludes) == 0 {
		return nil
	}

	return func(relPath string, isDir bool) bool {
		for _, exc := range excludes {
			exc = strings.Trim(exc, "/")
			if relPath == exc || strings.HasPrefix(relPath, exc+"/") {
				return false
			}
		}

		if matcher != nil {
			checkPath := relPath
			if isDir {
				checkPath += "/"
			}
			if matcher.MatchesPath(checkPath) {
				return false
			}
		}
		return true
	}
}
