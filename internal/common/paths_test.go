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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		// Empty and root
		{"empty", "", ""},
		{"root", "/", ""},
		{"double_root", "//", ""},
		{"dot", ".", ""},

		// Simple paths
		{"simple", "foo", "foo"},
		{"leading_slash", "/foo", "foo"},
		{"trailing_slash", "foo/", "foo"},

		// Nested paths
		{"two_parts", "foo/bar", "foo/bar"},
		{"three_parts", "foo/bar/baz", "foo/bar/baz"},

		// Paths with dots
		{"dot_prefix", "./foo", "foo"},
		{"dot_middle", "foo/./bar", "foo/bar"},
		{"dotdot_middle", "foo/../bar", "bar"},

		// Multiple slashes
		{"double_slash", "foo//bar", "foo/bar"},
		{"many_slashes", "///foo///bar///", "foo/bar"},

		// Special cases
		{"dotdot", "..", ".."},
		{"dotdot_prefix", "../foo", "../foo"},
		{"dotdot_suffix", "foo/..", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NormalizePath(tt.input)
			assert.Equal(t, tt.want, got, "NormalizePath(%q)", tt.input)
		})
	}
}

func TestParentPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", ParentPath(""))
	assert.Equal(t, "", ParentPath("file1.txt"))
	assert.Equal(t, "nested", ParentPath("nested/nested.txt"))
	assert.Equal(t, "a/b", ParentPath("a/b/c.txt"))
}

func TestValidateRelPath(t *testing.T) {
	t.Parallel()

	t.Run("accepts paths inside the root", func(t *testing.T) {
		t.Parallel()
		for in, want := range map[string]string{
			"file1.txt":          "file1.txt",
			"nested/nested.txt":  "nested/nested.txt",
			"a/./b/../c.txt":     "a/c.txt",
			"dir//deep/file.bin": "dir/deep/file.bin",
		} {
			got, err := ValidateRelPath(in)
			require.NoError(t, err, in)
			assert.Equal(t, want, got, in)
		}
	})

	t.Run("rejects escaping and absolute paths", func(t *testing.T) {
		t.Parallel()
		for _, in := range []string{"", ".", "/etc/passwd", "..", "../outside", "a/../../b"} {
			_, err := ValidateRelPath(in)
			assert.ErrorIs(t, err, ErrInvalidPath, "ValidateRelPath(%q)", in)
		}
	})
}
