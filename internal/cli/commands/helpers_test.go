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

package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/DevHarmeet/backuptool/internal/config"
)

// TestEnv holds an isolated config dir, database and source tree for one test.
type TestEnv struct {
	t         *testing.T
	g         Gomega
	TestDir   string
	Source    string // directory snapshotted by tests
	DBPath    string
	configDir string
	prompter  *fakePrompter
}

// NewTestEnv creates a test environment isolated via BACKUPTOOL_CONFIG_DIR.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	testDir := t.TempDir()
	configDir := filepath.Join(testDir, "config")
	source := filepath.Join(testDir, "source")
	if err := os.MkdirAll(source, 0755); err != nil {
		t.Fatalf("Failed to create source directory: %v", err)
	}

	t.Setenv(config.EnvConfigDir, configDir)
	t.Setenv(config.EnvDatabase, "")
	t.Setenv(config.EnvLogLevel, "off")

	return &TestEnv{
		t:         t,
		g:         NewWithT(t),
		TestDir:   testDir,
		Source:    source,
		DBPath:    filepath.Join(configDir, config.DatabaseFileName),
		configDir: configDir,
		prompter:  &fakePrompter{},
	}
}

// CLIResult holds the result of a CLI command
type CLIResult struct {
	Stdout   string
	Stderr   string
	Combined string
	ExitCode int
}

// Contains checks if output contains a substring
func (r CLIResult) Contains(s string) bool {
	return bytes.Contains([]byte(r.Combined), []byte(s))
}

// RunCLI executes the command tree in-process, mirroring main's error handling.
func (e *TestEnv) RunCLI(args ...string) CLIResult {
	e.t.Helper()

	var stdout, stderr bytes.Buffer
	root := NewRootCmd(WithPrompter(e.prompter))
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(bytes.NewReader(nil))

	exitCode := 0
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(&stderr, "Error: %v\n", err)
		exitCode = 1
	}

	return CLIResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Combined: stdout.String() + stderr.String(),
		ExitCode: exitCode,
	}
}

// MustRunCLI runs the CLI and fails the test on a non-zero exit.
func (e *TestEnv) MustRunCLI(args ...string) CLIResult {
	e.t.Helper()
	result := e.RunCLI(args...)
	if result.ExitCode != 0 {
		e.t.Fatalf("backuptool %v failed: %s", args, result.Combined)
	}
	return result
}

// WriteFile writes content to a file in the source tree
func (e *TestEnv) WriteFile(relPath, content string) {
	e.t.Helper()
	fullPath := filepath.Join(e.Source, relPath)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		e.t.Fatalf("Failed to create directory %s: %v", dir, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		e.t.Fatalf("Failed to write file %s: %v", relPath, err)
	}
}

// ReadFile reads content from a file below the test directory
func (e *TestEnv) ReadFile(path string) string {
	e.t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		e.t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(data)
}

// FileExists checks if a path exists
func (e *TestEnv) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// fakePrompter answers confirmations without a terminal.
type fakePrompter struct {
	answer bool
	asked  []string
}

func (p *fakePrompter) Confirm(question string) bool {
	p.asked = append(p.asked, question)
	return p.answer
}
