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

	"github.com/spf13/cobra"
)

type pruneOptions struct {
	snapshotID int64
	force      bool
}

func newPruneCmd(cc *cliContext) *cobra.Command {
	opts := &pruneOptions{}
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete a snapshot and reclaim its unshared content",
		Long: `Delete a snapshot and every stored blob that no other snapshot references.

Content shared with other snapshots is kept. Asks for confirmation
unless --force is given.

Examples:
  backuptool prune --snapshot 3
  backuptool prune -s 3 --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(cmd, cc, opts)
		},
	}
	cmd.Flags().Int64VarP(&opts.snapshotID, "snapshot", "s", 0, "Snapshot ID (required)")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Skip confirmation prompt")
	_ = cmd.MarkFlagRequired("snapshot")
	return cmd
}

func runPrune(cmd *cobra.Command, cc *cliContext, opts *pruneOptions) error {
	m, store, err := cc.openManager()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	// Check existence before asking, so a bad ID fails without a prompt.
	stats, err := m.GetSnapshotStats(ctx, opts.snapshotID)
	if err != nil {
		return err
	}

	if !opts.force {
		fmt.Fprintf(out, "Snapshot #%d contains %d files (%s).\n",
			opts.snapshotID, stats.FileCount, formatBytes(stats.TotalSize))
		if !cc.prompter.Confirm("Are you sure you want to continue?") {
			fmt.Fprintln(out, "Prune cancelled")
			return nil
		}
	}

	result, err := m.PruneSnapshot(ctx, opts.snapshotID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Pruned snapshot #%d: reclaimed %s (%d blobs)\n",
		result.SnapshotID, formatBytes(result.ReclaimedBytes), result.ReclaimedBlobs)
	return nil
}
