package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
)

// Flag names shared with the command line.
const (
	FlagConfig    = "config"
	FlagData      = "data"
	FlagLogLevel  = "log-level"
	FlagLogFormat = "log-format"
	FlagUI        = "ui"
	FlagNoBackups = "no-backups"
	FlagNoSeed    = "no-seed"
)

// RegisterFlags adds the config flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagConfig, "", "path to a TOML config file")
	fs.String(FlagData, DefaultDataFile, "path to the JSON data file")
	fs.String(FlagLogLevel, DefaultLogLevel, "diagnostic log level (debug, info, warn, error)")
	fs.String(FlagLogFormat, DefaultLogFormat, "diagnostic log format (text, json, logfmt)")
	fs.String(FlagUI, UILine, "front-end: line or tui")
	fs.Bool(FlagNoBackups, false, "do not keep .bak copies of the data file")
	fs.Bool(FlagNoSeed, false, "do not create demo accounts on first run")
}

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. User config file, or the file named by --config
// 3. Project config file (usertasks.toml or .usertasks.toml in current directory)
// 4. Environment variables
// 5. CLI flags
// fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := Defaults()

	explicit := ""
	if fs != nil {
		explicit, _ = fs.GetString(FlagConfig)
	}

	if explicit != "" {
		if err := loadConfigFile(cfg, expandPath(explicit)); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", explicit, err)
		}
		cfg.ConfigFile = explicit
	} else {
		if userConfigFile := findUserConfigFile(); userConfigFile != "" {
			if err := loadConfigFile(cfg, userConfigFile); err != nil {
				return nil, fmt.Errorf("loading user config file %s: %w", userConfigFile, err)
			}
		}
		if projectConfigFile := findProjectConfigFile(); projectConfigFile != "" {
			if err := loadConfigFile(cfg, projectConfigFile); err != nil {
				return nil, fmt.Errorf("loading project config file %s: %w", projectConfigFile, err)
			}
		}
	}

	loadFromEnv(cfg)

	if fs != nil {
		if err := applyFlags(cfg, fs); err != nil {
			return nil, fmt.Errorf("parsing flags: %w", err)
		}
	}

	cfg.DataFile = expandPath(cfg.DataFile)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFile loads TOML config from the given file. Keys absent from the file keep their current values.
func loadConfigFile(cfg *Config, path string) error {
	_, err := toml.DecodeFile(path, cfg)
	return err
}

// loadFromEnv overrides config from environment variables.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("USERTASKS_DATA_FILE"); v != "" {
		cfg.DataFile = v
	}
	if v := os.Getenv("USERTASKS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("USERTASKS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("USERTASKS_UI"); v != "" {
		cfg.UI = v
	}
	if v := os.Getenv("USERTASKS_BACKUPS"); v != "" {
		cfg.Backups = boolFromString(v)
	}
	if v := os.Getenv("USERTASKS_SEED"); v != "" {
		cfg.Seed = boolFromString(v)
	}
}

// applyFlags copies only the flags the user actually set.
func applyFlags(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	str := func(name string, dst *string) {
		if err != nil || !fs.Changed(name) {
			return
		}
		*dst, err = fs.GetString(name)
	}
	off := func(name string, dst *bool) {
		if err != nil || !fs.Changed(name) {
			return
		}
		var v bool
		v, err = fs.GetBool(name)
		if v {
			*dst = false
		}
	}

	str(FlagData, &cfg.DataFile)
	str(FlagLogLevel, &cfg.LogLevel)
	str(FlagLogFormat, &cfg.LogFormat)
	str(FlagUI, &cfg.UI)
	off(FlagNoBackups, &cfg.Backups)
	off(FlagNoSeed, &cfg.Seed)
	return err
}
