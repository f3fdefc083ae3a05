package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Sync.Interval != "5s" {
		t.Errorf("Sync.Interval = %q, want %q", cfg.Sync.Interval, "5s")
	}
	if cfg.Reset.Interval != "1m" {
		t.Errorf("Reset.Interval = %q, want %q", cfg.Reset.Interval, "1m")
	}
	if cfg.Reset.Timezone != "America/Los_Angeles" {
		t.Errorf("Reset.Timezone = %q", cfg.Reset.Timezone)
	}
	if cfg.Server.Listen != "0.0.0.0:3001" {
		t.Errorf("Server.Listen = %q, want %q", cfg.Server.Listen, "0.0.0.0:3001")
	}
	if cfg.SyncEnabled() {
		t.Error("sync should be off without a remote URL")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadMissingDefaultFile(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("missing default file should not fail: %v", err)
	}
	if cfg.Server.Listen != DefaultConfig().Server.Listen {
		t.Error("expected defaults")
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	isolate(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("explicit missing file should fail")
	}
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[sync]
remote_url = "http://192.168.1.10:3001"
interval = "10s"

[reset]
timezone = "America/New_York"

[metrics]
listen = "127.0.0.1:9464"

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.SyncEnabled() || cfg.Sync.RemoteURL != "http://192.168.1.10:3001" {
		t.Errorf("unexpected remote %q", cfg.Sync.RemoteURL)
	}
	if d, _ := cfg.SyncInterval(); d != 10*time.Second {
		t.Errorf("SyncInterval = %v", d)
	}
	// Keys absent from the file keep their defaults.
	if d, _ := cfg.ResetInterval(); d != time.Minute {
		t.Errorf("ResetInterval = %v", d)
	}
	if cfg.Reset.Timezone != "America/New_York" {
		t.Errorf("Timezone = %q", cfg.Reset.Timezone)
	}
	if lvl, _ := cfg.LogLevel(); lvl != slog.LevelDebug {
		t.Errorf("LogLevel = %v", lvl)
	}
	if cfg.Metrics.Listen != "127.0.0.1:9464" {
		t.Errorf("Metrics.Listen = %q", cfg.Metrics.Listen)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("CHORECHART_REMOTE_URL", "http://server:3001")
	t.Setenv("CHORECHART_SYNC_INTERVAL", "30s")
	t.Setenv("CHORECHART_METRICS", "false")
	t.Setenv("CHORECHART_DB", "/tmp/chores.db")
	t.Setenv("CHORECHART_METRICS_LISTEN", ":9464")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sync.RemoteURL != "http://server:3001" {
		t.Errorf("RemoteURL = %q", cfg.Sync.RemoteURL)
	}
	if cfg.Sync.Interval != "30s" {
		t.Errorf("Interval = %q", cfg.Sync.Interval)
	}
	if cfg.Server.Metrics {
		t.Error("metrics should be disabled by env")
	}
	if cfg.Store.Path != "/tmp/chores.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Metrics.Listen != ":9464" {
		t.Errorf("Metrics.Listen = %q", cfg.Metrics.Listen)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad sync interval", func(c *Config) { c.Sync.Interval = "soon" }},
		{"zero reset interval", func(c *Config) { c.Reset.Interval = "0s" }},
		{"bad timezone", func(c *Config) { c.Reset.Timezone = "Mars/Olympus" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestBadMetricsEnv(t *testing.T) {
	isolate(t)
	t.Setenv("CHORECHART_METRICS", "maybe")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unparseable bool")
	}
}

func TestLogPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.File = "/var/log/chores.log"
	if p, _ := cfg.LogPath(); p != "/var/log/chores.log" {
		t.Errorf("LogPath = %q", p)
	}
}
