// Package config resolves operator-facing settings (database path,
// log level, search result cap) through a cascading viper lookup,
// with a fixed precedence: env var > config file > default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper singleton. Call once at process
// startup before reading any setting.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := false

	// 1. Walk up from CWD looking for .evstore/config.yaml, so
	// commands work from any subdirectory of a project.
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, ".evstore", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
				break
			}
		}
	}

	// 2. XDG config directory.
	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "evstorectl", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// 3. Home directory fallback.
	if !configFileSet {
		if homeDir, err := os.UserHomeDir(); err == nil {
			configPath := filepath.Join(homeDir, ".evstore", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("EVSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("db", "")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-dir", "")
	v.SetDefault("search.default-limit", 50)
	v.SetDefault("search.max-limit", 500)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	}
	return nil
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// DatabasePath resolves where the event store's database file lives:
// the --db flag if given, else config/env, else a default under the
// current project's .evstore directory.
func DatabasePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := GetString("db"); p != "" {
		return p
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return filepath.Join(cwd, ".evstore", "store.db")
}

// LogLevel resolves the configured minimum log level name.
func LogLevel() string {
	if lvl := GetString("log-level"); lvl != "" {
		return lvl
	}
	return "info"
}

// SearchDefaultLimit and SearchMaxLimit bound result counts for
// search(); both are overridable in config.yaml.
func SearchDefaultLimit() int {
	if n := GetInt("search.default-limit"); n > 0 {
		return n
	}
	return 50
}

func SearchMaxLimit() int {
	if n := GetInt("search.max-limit"); n > 0 {
		return n
	}
	return 500
}
