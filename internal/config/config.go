// Package config loads champ settings from an optional TOML file and the
// environment. Environment variables win over the file, the file wins over
// defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"

	"github.com/balkashynov/champ/internal/db"
	"github.com/balkashynov/champ/internal/feed"
)

type Config struct {
	DatabasePath string     `toml:"database_path" env:"CHAMP_DB_PATH"`
	User         string     `toml:"user" env:"CHAMP_USER"`         // id or name of the local user
	Timezone     string     `toml:"timezone" env:"CHAMP_TIMEZONE"` // IANA name or "Local"
	CatalogPath  string     `toml:"catalog_path" env:"CHAMP_CATALOG"`
	Log          LogConfig  `toml:"log"`
	Feed         FeedConfig `toml:"feed"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level" env:"CHAMP_LOG_LEVEL"`
	Format    string     `toml:"format" env:"CHAMP_LOG_FORMAT"` // text or json
	AddSource bool       `toml:"add_source" env:"CHAMP_LOG_SOURCE"`
}

type FeedConfig struct {
	Buffer     int `toml:"buffer" env:"CHAMP_FEED_BUFFER"`
	PollMillis int `toml:"poll_ms" env:"CHAMP_FEED_POLL_MS"` // how often watch looks for other processes' writes, 0 disables
}

// PollInterval returns PollMillis as a duration
func (f FeedConfig) PollInterval() time.Duration {
	return time.Duration(f.PollMillis) * time.Millisecond
}

// Default returns the configuration used when nothing is set
func Default() Config {
	dbPath, err := db.DefaultPath()
	if err != nil {
		dbPath = filepath.Join(".champ", "champ.db")
	}
	return Config{
		DatabasePath: dbPath,
		Timezone:     "Local",
		Log: LogConfig{
			Level:  slog.LevelWarn,
			Format: "text",
		},
		Feed: FeedConfig{Buffer: feed.DefaultBuffer, PollMillis: 1000},
	}
}

// DefaultPath returns the path of the config file read when none is given
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".champ", "config.toml"), nil
}

// Load reads the config file at path, then applies environment overrides.
// An empty path means the default location, which may be absent; an
// explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	if err := toml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	return nil
}

// Validate checks values that would otherwise fail later and less clearly
func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return errors.New("database_path must not be empty")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", c.Log.Format)
	}
	if c.Feed.Buffer < 0 {
		return fmt.Errorf("feed buffer must not be negative, got %d", c.Feed.Buffer)
	}
	if c.Feed.PollMillis < 0 {
		return fmt.Errorf("feed poll_ms must not be negative, got %d", c.Feed.PollMillis)
	}
	return nil
}

// Location resolves the reference timezone used for hours, weekdays and
// week boundaries
func (c Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
