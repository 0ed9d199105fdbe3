// Package config loads the core's environment-variable configuration
// surface. Reading the .env file, if one exists, is a
// convenience for local development; authoring that file is the
// out-of-scope bootstrap wizard's job, not this package's.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DestinationKind selects the Sync Projector's external sink.
type DestinationKind string

const (
	DestinationSheets DestinationKind = "sheets"
	DestinationCSV    DestinationKind = "csv"
	DestinationNone   DestinationKind = "none"
)

// LogLevel mirrors the LOG_LEVEL environment variable.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// Config is the fully parsed, validated configuration for one core
// process.
type Config struct {
	TelegramAPIID   int
	TelegramAPIHash string
	TelegramPhone   string

	FernetKey string

	DataDir   string
	SyncTime  string // HH:MM local
	SyncLimit int

	DestinationKind       DestinationKind
	DestinationID         string
	ServiceAccountFile    string

	LogLevel LogLevel
}

// ErrMissingCredentials is a configuration error: fatal at startup,
// never during steady state.
type ErrMissingCredentials struct {
	Field string
}

func (e *ErrMissingCredentials) Error() string {
	return fmt.Sprintf("configuration error: missing required value for %s", e.Field)
}

// Load reads the process environment (after optionally loading a
// .env file at envFile, if non-empty and present) into a Config,
// applying the documented defaults and validating that
// Telegram credentials are present.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
			}
		}
	}

	cfg := &Config{
		DataDir:   getenvDefault("DATA_DIR", "./data"),
		SyncTime:  getenvDefault("SYNC_TIME", "03:00"),
		SyncLimit: getenvIntDefault("SYNC_LIMIT", 100000),

		DestinationKind:    DestinationKind(getenvDefault("DESTINATION_KIND", string(DestinationNone))),
		DestinationID:      os.Getenv("DESTINATION_ID"),
		ServiceAccountFile: os.Getenv("SERVICE_ACCOUNT_FILE"),

		FernetKey: os.Getenv("FERNET_KEY"),

		LogLevel: LogLevel(getenvDefault("LOG_LEVEL", string(LogInfo))),

		TelegramAPIHash: os.Getenv("TELEGRAM_API_HASH"),
		TelegramPhone:   os.Getenv("TELEGRAM_PHONE"),
	}

	if v := os.Getenv("TELEGRAM_API_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("configuration error: TELEGRAM_API_ID must be an integer: %w", err)
		}
		cfg.TelegramAPIID = id
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.TelegramAPIID == 0 {
		return &ErrMissingCredentials{Field: "TELEGRAM_API_ID"}
	}
	if c.TelegramAPIHash == "" {
		return &ErrMissingCredentials{Field: "TELEGRAM_API_HASH"}
	}
	if c.TelegramPhone == "" {
		return &ErrMissingCredentials{Field: "TELEGRAM_PHONE"}
	}
	return nil
}

// ParseSyncTime parses the HH:MM SYNC_TIME value into an hour/minute pair.
func (c *Config) ParseSyncTime() (hour, minute int, err error) {
	t, err := time.Parse("15:04", c.SyncTime)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid SYNC_TIME %q: %w", c.SyncTime, err)
	}
	return t.Hour(), t.Minute(), nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
