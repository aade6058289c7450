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

	"github.com/DevHarmeet/backuptool/internal/util"
)

type gcOptions struct {
	statsOnly bool
	vacuum    bool
}

func newGCCmd(cc *cliContext) *cobra.Command {
	opts := &gcOptions{}
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Run garbage collection to clean orphaned content",
		Long: `Remove stored content that no snapshot references.

Prune already reclaims the content of the snapshot it deletes; gc sweeps
the whole store and repairs databases left behind by older tools.

Output format:
  Storage: 2.3 MB total (5 snapshots, 142 blobs)
  Reclaimable: 512.0 KB (12 orphaned blobs)

Examples:
  backuptool gc
  backuptool gc --stats      # Show stats without cleaning
  backuptool gc --vacuum     # Also run SQLite VACUUM`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGC(cmd, cc, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.statsOnly, "stats", false, "Show storage stats without cleaning")
	cmd.Flags().BoolVar(&opts.vacuum, "vacuum", false, "Run SQLite VACUUM after cleanup")
	return cmd
}

func runGC(cmd *cobra.Command, cc *cliContext, opts *gcOptions) error {
	m, store, err := cc.openManager()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if opts.statsOnly {
		stats, err := m.StorageStats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Storage: %s total (%d snapshots, %d blobs)\n",
			formatBytes(stats.TotalBlobsBytes), stats.SnapshotCount, stats.TotalBlobs)
		fmt.Fprintf(out, "Logical: %s across %d files\n",
			formatBytes(stats.LogicalSizeBytes), stats.EntryCount)
		if stats.OrphanedBlobs > 0 {
			fmt.Fprintf(out, "Reclaimable: %s (%d orphaned blobs)\n",
				formatBytes(stats.OrphanedBytes), stats.OrphanedBlobs)
		} else {
			fmt.Fprintln(out, "Reclaimable: none")
		}
		return nil
	}

	fmt.Fprintln(out, "Running garbage collection...")
	result, err := m.GarbageCollect(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Cleaned: %s freed (%d blobs)\n", formatBytes(result.ReclaimedBytes), result.ReclaimedBlobs)

	if opts.vacuum {
		// VACUUM needs exclusive access; wait out concurrent writers.
		err := util.Retry(ctx, func() error {
			return store.Vacuum(ctx)
		}, util.DatabaseRetryOptions(ctx, cc.settings.RetryAttempts)...)
		if err != nil {
			return fmt.Errorf("vacuum failed: %w", err)
		}
		fmt.Fprintln(out, "VACUUM completed.")
	}
	return nil
}
