// Package config loads the client configuration by merging, in order of
// precedence: built-in defaults, a YAML config file, FISZKI_-prefixed
// environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config is the validated client configuration.
type Config struct {
	// ServerURL is the base URL of the catalog service.
	ServerURL string `koanf:"server_url" validate:"required,url"`
	// APIToken, when set, is forwarded as a bearer token on catalog calls.
	APIToken string `koanf:"api_token"`
	// UserID identifies whose catalog and progress to pull.
	UserID int64 `koanf:"user_id" validate:"required,gt=0"`
	// DBPath is the SQLite file backing the local store.
	DBPath string `koanf:"db_path" validate:"required"`
	// Listen is the address of the local review UI.
	Listen string `koanf:"listen" validate:"required,hostname_port"`
	// DeckID preselects a deck in the review UI. Zero means the deck list.
	DeckID int64 `koanf:"deck_id" validate:"gte=0"`
	// SyncIntervalSeconds is the outbox drain cadence.
	SyncIntervalSeconds int `koanf:"sync_interval_seconds" validate:"required,gte=1"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`
}

// SyncInterval returns the outbox drain cadence as a duration.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}

func defaults(k *koanf.Koanf) {
	k.Set("db_path", "fiszki.db")
	k.Set("listen", "127.0.0.1:8484")
	k.Set("sync_interval_seconds", 5)
	k.Set("log_level", "info")
}

// Load merges defaults, the YAML file at path (skipped when empty or
// absent), FISZKI_ environment variables and the given flag set, then
// validates the result.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	defaults(k)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("FISZKI_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "FISZKI_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
