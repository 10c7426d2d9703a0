// Package config loads granomail's configuration file and applies
// environment overrides.
//
// Both JSON and YAML files are accepted; YAML is coerced to JSON so one
// strict decoder (DisallowUnknownFields) covers both formats.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Config is the on-disk configuration.
//
// All durations are Go duration strings (e.g. "30m", "10s").
type Config struct {
	Email    EmailConfig    `json:"email"`
	Cache    CacheConfig    `json:"cache"`
	Ledger   LedgerConfig   `json:"ledger"`
	Schedule ScheduleConfig `json:"schedule"`
	Notify   NotifyConfig   `json:"notify"`
	Logging  LoggingConfig  `json:"logging"`
}

// EmailConfig carries the delivery envelope. To and From are required in
// live mode; dry-run works without them.
type EmailConfig struct {
	Enabled bool   `json:"enabled"`
	To      string `json:"to"`
	From    string `json:"from"`
}

// CacheConfig points at the Granola cache document.
type CacheConfig struct {
	Path string `json:"path"`
}

// LedgerConfig controls the notified-ids ledger persistence.
//
// Driver values:
//   - "file": JSON document (default)
//   - "sqlite": SQLite database file
//
// Retention bounds how long a notified id is remembered; "0s" keeps
// entries forever.
type LedgerConfig struct {
	Driver    string `json:"driver,omitempty"`
	Path      string `json:"path,omitempty"`
	Retention string `json:"retention,omitempty"`
	// BusyTimeout is sqlite-only; "0s" means driver default.
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// ScheduleConfig controls eligibility windowing.
type ScheduleConfig struct {
	// Lookback is the trailing window within which a finished meeting is
	// still notified. Default "30m".
	Lookback string `json:"lookback,omitempty"`
	// Timezone is the IANA zone assumed for cache timestamps that carry no
	// UTC offset. Empty means the system's local timezone.
	Timezone string `json:"timezone,omitempty"`
}

// NotifyConfig selects and tunes the delivery driver.
//
// Driver values: "ses" (default) or "telegram".
type NotifyConfig struct {
	Driver string `json:"driver,omitempty"`

	// SES settings.
	Region   string `json:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`

	// RatePerSec caps delivery attempts per second (SES enforces a
	// max send rate per account). 0 means 1/s.
	RatePerSec int `json:"rate_per_sec,omitempty"`
	// Timeout bounds a single delivery call. Default "10s".
	Timeout string `json:"timeout,omitempty"`

	Telegram TelegramConfig `json:"telegram,omitempty"`
}

// TelegramConfig configures the alternate Telegram delivery driver.
type TelegramConfig struct {
	Token  string `json:"token,omitempty"`
	ChatID int64  `json:"chat_id,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console *bool       `json:"console,omitempty"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".granomail", "config.yaml")
}

// Load reads the config file at path and applies environment overrides.
//
// A missing file is not an error: defaults plus environment are enough to
// run dry-run mode, and the original deployment configured everything via
// environment. Parse errors are fatal.
func Load(path string) (*Config, error) {
	cfg := defaults()

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := parseInto(path, b, cfg); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		// fall through to env
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	console := true
	return &Config{
		Cache: CacheConfig{
			Path: filepath.Join(homeDir(), "Library", "Application Support", "Granola", "cache-v3.json"),
		},
		Ledger: LedgerConfig{
			Driver:    "file",
			Path:      filepath.Join(homeDir(), ".granomail", "state.json"),
			Retention: "168h",
		},
		Schedule: ScheduleConfig{Lookback: "30m"},
		Notify: NotifyConfig{
			Driver:     "ses",
			Region:     "us-east-1",
			RatePerSec: 1,
			Timeout:    "10s",
		},
		Logging: LoggingConfig{Level: "info", Console: &console},
	}
}

func parseInto(path string, data []byte, cfg *Config) error {
	jb, _, err := coerceToJSONBytes(path, data)
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("parse config %s: trailing data", path)
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv layers environment variables over the file. The names match the
// original automation so existing deployments keep working.
func applyEnv(cfg *Config) {
	if v, ok := lookupEnv("EMAIL_ENABLED"); ok {
		cfg.Email.Enabled = strings.EqualFold(v, "true")
	}
	if v, ok := lookupEnv("EMAIL_TO"); ok {
		cfg.Email.To = v
	}
	if v, ok := lookupEnv("EMAIL_FROM"); ok {
		cfg.Email.From = v
	}
	if v, ok := lookupEnv("AWS_REGION"); ok {
		cfg.Notify.Region = v
	}
	if v, ok := lookupEnv("GRANOLA_CACHE_PATH"); ok {
		cfg.Cache.Path = v
	}
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

func homeDir() string {
	h, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return h
}
