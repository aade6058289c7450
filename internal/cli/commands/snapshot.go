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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DevHarmeet/backuptool/internal/backup"
)

type snapshotOptions struct {
	targetDir   string
	name        string
	description string
	excludes    []string
	quiet       bool
}

func newSnapshotCmd(cc *cliContext) *cobra.Command {
	opts := &snapshotOptions{}
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Create a snapshot of a directory",
		Long: `Create a snapshot of every regular file under a directory.

File contents are stored once per distinct SHA-256 digest, so unchanged
files cost nothing in later snapshots. Symlinks and special files abort
the snapshot; nothing is recorded unless every file was stored.

Paths matching the settings "excludes" patterns, --exclude patterns, or
rules in the directory's .backupignore file are skipped.

Examples:
  backuptool snapshot --target-directory ~/project
  backuptool snapshot -t ~/project -n nightly -d "before upgrade"
  backuptool snapshot -t ~/project --exclude '*.log' --exclude node_modules/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd, cc, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.targetDir, "target-directory", "t", "", "Directory to snapshot (required)")
	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "Snapshot name")
	cmd.Flags().StringVarP(&opts.description, "description", "d", "", "Snapshot description")
	cmd.Flags().StringArrayVar(&opts.excludes, "exclude", nil, "gitignore-style pattern to skip (repeatable)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print progress")
	_ = cmd.MarkFlagRequired("target-directory")
	return cmd
}

func runSnapshot(cmd *cobra.Command, cc *cliContext, opts *snapshotOptions) error {
	targetDir, err := filepath.Abs(opts.targetDir)
	if err != nil {
		return err
	}

	m, store, err := cc.openManager()
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	fs := backup.NewDirFS(targetDir)
	patterns := append(append([]string(nil), cc.settings.Excludes...), opts.excludes...)
	filter := backup.BuildFilter(fs, databaseExcludes(targetDir, store.Path()), patterns)

	createOpts := backup.CreateOptions{
		Name:        opts.name,
		Description: opts.description,
		Filter:      filter,
	}
	if !opts.quiet {
		createOpts.Progress = func(current, total int, filename string) {
			fmt.Fprintf(out, "\rProcessing files: %d/%d (%s)", current, total, filename)
		}
	}

	fmt.Fprintf(out, "Creating snapshot of %s...\n", targetDir)
	id, err := m.CreateSnapshotFromDir(cmd.Context(), targetDir, createOpts)
	if !opts.quiet {
		fmt.Fprintln(out)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Successfully created snapshot #%d\n", id)
	return nil
}

// databaseExcludes returns the database files' paths relative to targetDir
// when the database lives inside the tree being snapshotted.
func databaseExcludes(targetDir, dbPath string) []string {
	absDB, err := filepath.Abs(dbPath)
	if err != nil {
		return nil
	}
	rel, err := filepath.Rel(targetDir, absDB)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return nil
	}
	rel = filepath.ToSlash(rel)
	return []string{rel, rel + "-wal", rel + "-shm"}
}
