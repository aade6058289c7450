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

func newStatsCmd(cc *cliContext) *cobra.Command {
	var snapshotID int64
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the file count and size of a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, store, err := cc.openManager()
			if err != nil {
				return err
			}
			defer store.Close()

			info, err := m.GetSnapshot(cmd.Context(), snapshotID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Snapshot:    #%d\n", info.ID)
			fmt.Fprintf(out, "Created:     %s\n", info.Timestamp.Format(timestampLayout))
			if info.Name != "" {
				fmt.Fprintf(out, "Name:        %s\n", info.Name)
			}
			if info.Description != "" {
				fmt.Fprintf(out, "Description: %s\n", info.Description)
			}
			fmt.Fprintf(out, "Files:       %d\n", info.FileCount)
			fmt.Fprintf(out, "Size:        %s (%d bytes)\n", formatBytes(info.TotalSize), info.TotalSize)
			return nil
		},
	}
	cmd.Flags().Int64VarP(&snapshotID, "snapshot", "s", 0, "Snapshot ID (required)")
	_ = cmd.MarkFlagRequired("snapshot")
	return cmd
}
