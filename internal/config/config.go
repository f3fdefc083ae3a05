// Package config loads chorechart settings: a TOML file over built-in
// defaults, then .env and CHORECHART_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/sadopc/chorechart/internal/clock"
)

const envPrefix = "CHORECHART_"

type Config struct {
	Store   StoreConfig   `toml:"store"`
	Sync    SyncConfig    `toml:"sync"`
	Reset   ResetConfig   `toml:"reset"`
	Server  ServerConfig  `toml:"server"`
	Metrics MetricsConfig `toml:"metrics"`
	Log     LogConfig     `toml:"log"`
}

type StoreConfig struct {
	// Path is the local database. Empty means the per-user default.
	Path string `toml:"path"`
}

type SyncConfig struct {
	// RemoteURL is the merge server base URL. Empty disables sync.
	RemoteURL string `toml:"remote_url"`
	Interval  string `toml:"interval"`
}

type ResetConfig struct {
	Interval string `toml:"interval"`
	Timezone string `toml:"timezone"`
}

type ServerConfig struct {
	Listen  string `toml:"listen"`
	DBPath  string `toml:"db_path"`
	Metrics bool   `toml:"metrics"`
}

type MetricsConfig struct {
	// Listen is where the board serves /metrics. Empty disables it.
	Listen string `toml:"listen"`
}

type LogConfig struct {
	Level string `toml:"level"`
	// File receives logs while the board is on screen. Empty means
	// chorechart.log next to the config file.
	File string `toml:"file"`
}

func DefaultConfig() Config {
	return Config{
		Sync: SyncConfig{
			Interval: "5s",
		},
		Reset: ResetConfig{
			Interval: "1m",
			Timezone: clock.DefaultTimezone,
		},
		Server: ServerConfig{
			Listen:  "0.0.0.0:3001",
			DBPath:  "chorechart-server.db",
			Metrics: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.config/chorechart/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "chorechart", "config.toml"), nil
}

// Load builds the configuration. A missing config file or .env is not an
// error; an explicitly named file that cannot be read is.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DB":             &c.Store.Path,
		"REMOTE_URL":     &c.Sync.RemoteURL,
		"SYNC_INTERVAL":  &c.Sync.Interval,
		"RESET_INTERVAL": &c.Reset.Interval,
		"TIMEZONE":       &c.Reset.Timezone,
		"LISTEN":         &c.Server.Listen,
		"SERVER_DB":      &c.Server.DBPath,
		"METRICS_LISTEN": &c.Metrics.Listen,
		"LOG_LEVEL":      &c.Log.Level,
		"LOG_FILE":       &c.Log.File,
	}
	for name, dst := range strs {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}

	if v, ok := lookup(envPrefix + "METRICS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sMETRICS %q: %w", envPrefix, v, err)
		}
		c.Server.Metrics = b
	}
	return nil
}

// Validate checks durations, timezone and log level.
func (c Config) Validate() error {
	if _, err := c.SyncInterval(); err != nil {
		return err
	}
	if _, err := c.ResetInterval(); err != nil {
		return err
	}
	if _, err := clock.New(c.Reset.Timezone); err != nil {
		return err
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

func (c Config) SyncInterval() (time.Duration, error) {
	return parseInterval("sync.interval", c.Sync.Interval)
}

func (c Config) ResetInterval() (time.Duration, error) {
	return parseInterval("reset.interval", c.Reset.Interval)
}

func parseInterval(name, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", name, s)
	}
	return d, nil
}

func (c Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.Log.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log.level %q: %w", c.Log.Level, err)
	}
	return lvl, nil
}

// SyncEnabled reports whether a merge server is configured.
func (c Config) SyncEnabled() bool {
	return strings.TrimSpace(c.Sync.RemoteURL) != ""
}

// LogPath resolves where board-mode logs go.
func (c Config) LogPath() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	p, err := DefaultPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(p), "chorechart.log"), nil
}
