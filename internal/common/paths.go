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

package common

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// NormalizePath cleans a slash-separated path and strips leading/trailing slashes.
// The root itself normalizes to "".
func NormalizePath(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	p = strings.Trim(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// ParentPath returns the parent directory of a path, "" for top-level entries.
func ParentPath(p string) string {
	p = NormalizePath(p)
	if p == "" {
		return ""
	}
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}

// ValidateRelPath checks that a recorded snapshot path stays inside its root
// once joined to an output directory, and returns its normalized form.
func ValidateRelPath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	slashed := filepath.ToSlash(p)
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(p) {
		return "", fmt.Errorf("%w: %q is absolute", ErrInvalidPath, p)
	}
	clean := NormalizePath(slashed)
	if clean == "" || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q escapes the output root", ErrInvalidPath, p)
	}
	return clean, nil
}
