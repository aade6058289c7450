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

// Package config locates the backuptool config directory and loads
// settings.yaml, applying environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/DevHarmeet/backuptool/internal/artifacts"
)

const (
	EnvConfigDir = "BACKUPTOOL_CONFIG_DIR"
	EnvDatabase  = "BACKUPTOOL_DB"
	EnvLogLevel  = "BACKUPTOOL_LOG_LEVEL"

	DatabaseFileName = "backup.db"
	SettingsFileName = "settings.yaml"
)

// getConfigDir returns the config directory path.
// Uses BACKUPTOOL_CONFIG_DIR env var if set, otherwise defaults to ~/.backuptool.
// This is computed dynamically to support test isolation.
func getConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".backuptool")
}

// ConfigDir returns the configuration directory path
func ConfigDir() string {
	return getConfigDir()
}

// SettingsPath returns the settings file path
func SettingsPath() string {
	return filepath.Join(getConfigDir(), SettingsFileName)
}

// DefaultDatabasePath returns the database path used when none is configured
func DefaultDatabasePath() string {
	return filepath.Join(getConfigDir(), DatabaseFileName)
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(getConfigDir(), 0700)
}

// InitConfigDir creates the config directory and writes the default
// settings file if none exists.
func InitConfigDir() error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	settingsPath := SettingsPath()
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		if err := os.WriteFile(settingsPath, artifacts.GlobalSettings, 0600); err != nil {
			return fmt.Errorf("failed to create default settings: %w", err)
		}
	}
	return nil
}

// Settings holds the user-editable settings from settings.yaml.
type Settings struct {
	Database      string   `yaml:"database"`       // empty = <config dir>/backup.db
	LogLevel      string   `yaml:"log_level"`      // trace, debug, info, warn, off
	BusyTimeout   int      `yaml:"busy_timeout"`   // SQLite busy_timeout (ms), 0 = use default
	RetryAttempts uint     `yaml:"retry_attempts"` // 0 = use default
	Excludes      []string `yaml:"excludes"`       // gitignore-style patterns
}

// loadDefaultSettings parses default settings from embedded artifact.
func loadDefaultSettings() Settings {
	var settings Settings
	if err := yaml.Unmarshal(artifacts.GlobalSettings, &settings); err != nil {
		panic("failed to parse embedded settings: " + err.Error())
	}
	return settings
}

// LoadSettings reads settings.yaml from the config directory, falling back
// to the embedded defaults when the file does not exist. Environment
// overrides are applied on top.
func LoadSettings() (*Settings, error) {
	settings := loadDefaultSettings()

	data, err := os.ReadFile(SettingsPath())
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("parse %s: %w", SettingsPath(), err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	settings.applyEnv()
	return &settings, nil
}

func (s *Settings) applyEnv() {
	if db := os.Getenv(EnvDatabase); db != "" {
		s.Database = db
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		s.LogLevel = level
	}
}

// DatabasePath returns the configured database path, or the default one.
func (s *Settings) DatabasePath() string {
	if s.Database == "" {
		return DefaultDatabasePath()
	}
	if strings.HasPrefix(s.Database, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, s.Database[2:])
		}
	}
	return s.Database
}

// NormalizedLogLevel returns the lowercase log level, "off" when unset.
func (s *Settings) NormalizedLogLevel() string {
	level := strings.ToLower(strings.TrimSpace(s.LogLevel))
	if level == "" || level == "none" {
		return "off"
	}
	return level
}

// String renders the effective settings as YAML.
func (s *Settings) String() string {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Sprintf("%+v", *s)
	}
	return string(data)
}
