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

	"github.com/DevHarmeet/backuptool/internal/config"
)

func newConfigCmd(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective settings",
		Long: `Show the settings in effect after applying settings.yaml, environment
variables and command-line flags.

Settings file: $BACKUPTOOL_CONFIG_DIR/settings.yaml (default ~/.backuptool/settings.yaml)

Environment overrides:
  BACKUPTOOL_CONFIG_DIR    config directory
  BACKUPTOOL_DB            database path
  BACKUPTOOL_LOG_LEVEL     log level
  BACKUPTOOL_BUSY_TIMEOUT  SQLite busy timeout (ms)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# config dir: %s\n", config.ConfigDir())
			fmt.Fprintf(out, "# database:   %s\n", cc.settings.DatabasePath())
			fmt.Fprint(out, cc.settings.String())
			return nil
		},
	}
}
