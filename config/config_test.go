package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

// isolate points every config source at empty temp locations.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev := userConfigDir
	userConfigDir = func() (string, error) { return filepath.Join(dir, "xdg"), nil }
	t.Cleanup(func() { userConfigDir = prev })
	for _, k := range []string{
		"USERTASKS_DATA_FILE", "USERTASKS_LOG_LEVEL", "USERTASKS_LOG_FORMAT",
		"USERTASKS_UI", "USERTASKS_BACKUPS", "USERTASKS_SEED",
	} {
		t.Setenv(k, "")
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags failed: %v", err)
	}
	return fs
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.DataFile != DefaultDataFile {
		t.Errorf("DataFile: got %q, want %q", cfg.DataFile, DefaultDataFile)
	}
	if cfg.UI != UILine {
		t.Errorf("UI: got %q, want %q", cfg.UI, UILine)
	}
	if !cfg.Backups || !cfg.Seed {
		t.Errorf("expected backups and seed on by default, got %+v", cfg)
	}
}

func TestLoadWithoutSourcesKeepsDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(newFlags(t))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	want := Defaults()
	if *cfg != *want {
		t.Fatalf("expected defaults\nwant=%+v\ngot=%+v", want, cfg)
	}
}

func TestLoadNilFlagSet(t *testing.T) {
	isolate(t)
	if _, err := Load(nil); err != nil {
		t.Fatalf("load with nil flags failed: %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "usertasks.toml")

	content := []byte(`data_file = "custom.json"
ui = "tui"
backups = false
`)
	if err := os.WriteFile(configFile, content, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadConfigFile(cfg, configFile); err != nil {
		t.Fatalf("loadConfigFile: %v", err)
	}

	if cfg.DataFile != "custom.json" {
		t.Errorf("DataFile: got %q, want custom.json", cfg.DataFile)
	}
	if cfg.UI != UITUI {
		t.Errorf("UI: got %q, want tui", cfg.UI)
	}
	if cfg.Backups {
		t.Errorf("Backups: got true, want false")
	}
	if !cfg.Seed {
		t.Errorf("Seed: keys missing from the file must keep their value")
	}
}

func TestPrecedenceProjectFileEnvFlags(t *testing.T) {
	dir := isolate(t)

	userDir := filepath.Join(dir, "xdg", appDirName)
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(userDir, userConfigName), []byte("data_file = \"user.json\"\nlog_level = \"info\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "usertasks.toml"), []byte("data_file = \"project.json\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(newFlags(t))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DataFile != "project.json" {
		t.Errorf("project file should override user file, got %q", cfg.DataFile)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("user file value should survive, got %q", cfg.LogLevel)
	}

	t.Setenv("USERTASKS_DATA_FILE", "env.json")
	t.Setenv("USERTASKS_SEED", "no")
	cfg, err = Load(newFlags(t))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DataFile != "env.json" {
		t.Errorf("env should override files, got %q", cfg.DataFile)
	}
	if cfg.Seed {
		t.Errorf("USERTASKS_SEED=no should disable seeding")
	}

	cfg, err = Load(newFlags(t, "--data", "flag.json", "--no-backups"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DataFile != "flag.json" {
		t.Errorf("flags should override env, got %q", cfg.DataFile)
	}
	if cfg.Backups {
		t.Errorf("--no-backups should disable backups")
	}
}

func TestExplicitConfigSkipsDiscovery(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, "usertasks.toml"), []byte("data_file = \"project.json\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	explicit := filepath.Join(dir, "other.toml")
	if err := os.WriteFile(explicit, []byte("data_file = \"explicit.json\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(newFlags(t, "--config", explicit))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DataFile != "explicit.json" {
		t.Errorf("DataFile: got %q, want explicit.json", cfg.DataFile)
	}
	if cfg.ConfigFile != explicit {
		t.Errorf("ConfigFile: got %q, want %q", cfg.ConfigFile, explicit)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	isolate(t)

	if _, err := Load(newFlags(t, "--ui", "gui")); err == nil {
		t.Fatalf("expected error for unknown ui")
	}
	if _, err := Load(newFlags(t, "--data", "")); err == nil {
		t.Fatalf("expected error for empty data file")
	}
	if _, err := Load(newFlags(t, "--config", "missing.toml")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	t.Setenv("USERTASKS_TEST_DIR", "/tmp/ut")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"users.json", "users.json"},
		{"~", home},
		{"~/users.json", filepath.Join(home, "users.json")},
		{"$USERTASKS_TEST_DIR/users.json", "/tmp/ut/users.json"},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBoolFromString(t *testing.T) {
	for _, s := range []string{"1", "true", "YES", " on "} {
		if !boolFromString(s) {
			t.Errorf("boolFromString(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"0", "false", "no", "off", "maybe"} {
		if boolFromString(s) {
			t.Errorf("boolFromString(%q) = true, want false", s)
		}
	}
}
