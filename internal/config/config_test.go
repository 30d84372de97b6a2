package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database_path = "/tmp/champ-test.db"
user = "alice"
timezone = "Europe/Berlin"

[log]
level = "debug"
format = "json"

[feed]
buffer = 8
poll_ms = 250
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabasePath != "/tmp/champ-test.db" || cfg.User != "alice" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Log.Level != slog.LevelDebug || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log config %+v", cfg.Log)
	}
	if cfg.Feed.Buffer != 8 {
		t.Fatalf("expected buffer 8, got %d", cfg.Feed.Buffer)
	}
	if cfg.Feed.PollInterval() != 250*time.Millisecond {
		t.Fatalf("expected poll 250ms, got %s", cfg.Feed.PollInterval())
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc.String() != "Europe/Berlin" {
		t.Fatalf("expected Europe/Berlin, got %s", loc)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
user = "alice"

[log]
level = "info"
`)
	t.Setenv("CHAMP_USER", "bob")
	t.Setenv("CHAMP_LOG_LEVEL", "error")
	t.Setenv("CHAMP_FEED_BUFFER", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.User != "bob" {
		t.Fatalf("expected env user bob, got %s", cfg.User)
	}
	if cfg.Log.Level != slog.LevelError {
		t.Fatalf("expected error level, got %s", cfg.Log.Level)
	}
	if cfg.Feed.Buffer != 3 {
		t.Fatalf("expected buffer 3, got %d", cfg.Feed.Buffer)
	}
	// Unset keys keep their defaults
	if cfg.Log.Format != "text" {
		t.Fatalf("expected default format text, got %s", cfg.Log.Format)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}

	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected defaults when default file is absent, got %v", err)
	}
	if cfg.Timezone != "Local" {
		t.Fatalf("expected default timezone, got %s", cfg.Timezone)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"negative buffer", func(c *Config) { c.Feed.Buffer = -1 }},
		{"negative poll", func(c *Config) { c.Feed.PollMillis = -1 }},
		{"empty database", func(c *Config) { c.DatabasePath = " " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
