// Package config loads brainboard.toml and applies environment overrides.
// Environment variables win over the file so deployments can configure the
// server without touching disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the application configuration.
type Config struct {
	// DatabaseURL is the Postgres connection string for the remote row
	// store. Empty runs the app in local-only mode (cache file only).
	DatabaseURL string `toml:"database-url"`

	// Port is the HTTP API port.
	Port string `toml:"port"`

	// CachePath is the local persistent cache slot.
	CachePath string `toml:"cache-path"`

	// TranscribeEndpoint is the speech-to-text service URL.
	TranscribeEndpoint string `toml:"transcribe-endpoint"`

	Google Google `toml:"google"`
}

// Google configures the calendar import source.
type Google struct {
	// ConfigDir holds credentials.json and token.json.
	ConfigDir string `toml:"config-dir"`
	// CalendarID selects the calendar; empty means "primary".
	CalendarID string `toml:"calendar-id"`
}

// Load reads the config file (explicit path, or ./brainboard.toml, or
// ~/.config/brainboard/brainboard.toml, first hit wins) and applies defaults
// and environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	for _, candidate := range candidates(path) {
		if candidate == "" {
			continue
		}
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if _, err := toml.DecodeFile(candidate, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", candidate, err)
		}
		break
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("BRAINBOARD_CACHE"); v != "" {
		cfg.CachePath = v
	}
	if v := os.Getenv("TRANSCRIBE_ENDPOINT"); v != "" {
		cfg.TranscribeEndpoint = v
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.CachePath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.CachePath = filepath.Join(home, ".local", "state", "brainboard", "tasks.json")
		} else {
			cfg.CachePath = "tasks.json"
		}
	}
	if cfg.Google.ConfigDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Google.ConfigDir = filepath.Join(home, ".config", "brainboard")
		}
	}
	return cfg, nil
}

func candidates(explicit string) []string {
	out := []string{explicit, "brainboard.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		out = append(out, filepath.Join(home, ".config", "brainboard", "brainboard.toml"))
	}
	return out
}
