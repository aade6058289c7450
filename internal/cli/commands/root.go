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
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/DevHarmeet/backuptool/internal/backup"
	"github.com/DevHarmeet/backuptool/internal/config"
	"github.com/DevHarmeet/backuptool/internal/storage"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the version info for --version flag
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// getVersionString returns the version string with build info
func getVersionString() string {
	buildDate := formatBuildDate(date)
	if strings.HasSuffix(version, "-dev") || version == "dev" {
		return fmt.Sprintf("%s (%s, commit: %s)", version, buildDate, commit)
	}
	return fmt.Sprintf("%s (%s)", version, buildDate)
}

// formatBuildDate converts epoch timestamp to readable date
func formatBuildDate(epoch string) string {
	ts, err := strconv.ParseInt(epoch, 10, 64)
	if err != nil {
		return epoch
	}
	return time.Unix(ts, 0).Format("2006-01-02")
}

// cliContext carries the state shared by all subcommands of one invocation.
type cliContext struct {
	dbFlag       string
	logLevelFlag string

	settings *config.Settings
	log      *logrus.Entry
	prompter Prompter
}

// Option customizes the root command; used by tests to inject capabilities.
type Option func(*cliContext)

// WithPrompter replaces the interactive confirmation source.
func WithPrompter(p Prompter) Option {
	return func(c *cliContext) { c.prompter = p }
}

// NewRootCmd builds the backuptool command tree.
func NewRootCmd(opts ...Option) *cobra.Command {
	cc := &cliContext{}
	for _, opt := range opts {
		opt(cc)
	}

	rootCmd := &cobra.Command{
		Use:   "backuptool",
		Short: "Content-addressed directory snapshots",
		Long: `Take point-in-time snapshots of a directory tree, storing file contents
deduplicated by SHA-256, and list, restore or prune them later.

Snapshots live in a single SQLite database (default ~/.backuptool/backup.db).`,
		Version:       getVersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip initialization for help commands
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return cc.init(cmd)
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("backuptool version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cc.dbFlag, "db", "", "Path to the backup database (overrides settings)")
	rootCmd.PersistentFlags().StringVar(&cc.logLevelFlag, "log-level", "", "Log level: trace, debug, info, warn, off")

	rootCmd.AddCommand(
		newSnapshotCmd(cc),
		newListCmd(cc),
		newRestoreCmd(cc),
		newPruneCmd(cc),
		newStatsCmd(cc),
		newGCCmd(cc),
		newVerifyCmd(cc),
		newConfigCmd(cc),
	)
	return rootCmd
}

// init loads settings and configures logging for this invocation.
func (cc *cliContext) init(cmd *cobra.Command) error {
	if err := config.InitConfigDir(); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	settings, err := config.LoadSettings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if cc.dbFlag != "" {
		settings.Database = cc.dbFlag
	}
	if cc.logLevelFlag != "" {
		settings.LogLevel = cc.logLevelFlag
	}
	cc.settings = settings

	storage.SetConfigBusyTimeout(settings.BusyTimeout)
	setupLogging(settings.NormalizedLogLevel(), cmd.ErrOrStderr())
	cc.log = logrus.WithField("run", uuid.NewString())

	if cc.prompter == nil {
		cc.prompter = NewReaderPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	}
	return nil
}

// setupLogging applies a settings log level to the global logger.
func setupLogging(level string, out io.Writer) {
	switch level {
	case "trace":
		logrus.SetLevel(logrus.TraceLevel)
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "off":
		logrus.SetOutput(io.Discard)
		return
	default:
		logrus.SetLevel(logrus.WarnLevel)
	}
	logrus.SetOutput(out)
}

// openManager opens (creating on first use) the configured database.
// Callers must close the returned store.
func (cc *cliContext) openManager() (*backup.Manager, *storage.Store, error) {
	path := cc.settings.DatabasePath()
	store, err := storage.OpenOrCreate(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	m := backup.NewManager(store,
		backup.WithLogger(cc.log),
		backup.WithRetryAttempts(cc.settings.RetryAttempts),
	)
	return m, store, nil
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
