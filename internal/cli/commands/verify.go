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

func newVerifyCmd(cc *cliContext) *cobra.Command {
	var checkContent bool
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the store for integrity problems",
		Long: `Check that every snapshot entry has its content stored and that no
stored content is unreferenced. With --content, every blob is also
re-hashed and compared with its digest.

Exits non-zero if any problem is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, store, err := cc.openManager()
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			report, verr := m.Verify(cmd.Context(), checkContent)
			for _, d := range report.Dangling {
				fmt.Fprintf(out, "missing blob: snapshot #%d %s -> %s\n", d.SnapshotID, d.RelPath, d.Digest)
			}
			for _, digest := range report.Orphans {
				fmt.Fprintf(out, "orphan blob: %s\n", digest)
			}
			for _, digest := range report.Corrupt {
				fmt.Fprintf(out, "corrupt blob: %s\n", digest)
			}
			if verr != nil {
				return verr
			}

			if checkContent {
				fmt.Fprintf(out, "OK (%d blobs verified)\n", report.BlobsChecked)
			} else {
				fmt.Fprintln(out, "OK")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkContent, "content", false, "Re-hash every stored blob")
	return cmd
}
