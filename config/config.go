// Package config resolves runtime settings from defaults, TOML files,
// environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultDataFile  = "users.json"
	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"

	UILine = "line"
	UITUI  = "tui"

	appDirName     = "usertasks"
	userConfigName = "config.toml"
)

// Config holds all runtime settings.
type Config struct {
	DataFile  string `toml:"data_file"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	UI        string `toml:"ui"`
	Backups   bool   `toml:"backups"`
	Seed      bool   `toml:"seed"`

	// ConfigFile is the explicit file passed with --config, if any.
	ConfigFile string `toml:"-"`
}

func setDefaults(cfg *Config) {
	cfg.DataFile = DefaultDataFile
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
	cfg.UI = UILine
	cfg.Backups = true
	cfg.Seed = true
}

// Defaults returns a config with every field at its default value.
func Defaults() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Validate rejects values no component can act on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataFile) == "" {
		return fmt.Errorf("data file must not be empty")
	}
	switch c.UI {
	case UILine, UITUI:
	default:
		return fmt.Errorf("unknown ui %q (want %q or %q)", c.UI, UILine, UITUI)
	}
	return nil
}

var userConfigDir = os.UserConfigDir

// findUserConfigFile returns $XDG_CONFIG_HOME/usertasks/config.toml (or the OS equivalent) if present.
func findUserConfigFile() string {
	dir, err := userConfigDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(dir, appDirName, userConfigName)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

func findProjectConfigFile() string {
	names := []string{"usertasks.toml", ".usertasks.toml"}
	for _, name := range names {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

func expandPath(p string) string {
	if p == "" {
		return p
	}
	expanded := os.ExpandEnv(p)
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return expanded
		}
		return filepath.Join(home, strings.TrimPrefix(expanded[1:], "/"))
	}
	return expanded
}

func boolFromString(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
