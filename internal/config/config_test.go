package config

import (
	"errors"
	"testing"
)

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_API_ID", "12345")
	t.Setenv("TELEGRAM_API_HASH", "abcdef")
	t.Setenv("TELEGRAM_PHONE", "+15550000000")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setCredentials(t)
	t.Setenv("DATA_DIR", "")
	t.Setenv("SYNC_TIME", "")
	t.Setenv("SYNC_LIMIT", "")
	t.Setenv("DESTINATION_KIND", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "./data" {
		t.Errorf("DataDir = %q, want ./data", cfg.DataDir)
	}
	if cfg.SyncTime != "03:00" {
		t.Errorf("SyncTime = %q, want 03:00", cfg.SyncTime)
	}
	if cfg.SyncLimit != 100000 {
		t.Errorf("SyncLimit = %d, want 100000", cfg.SyncLimit)
	}
	if cfg.DestinationKind != DestinationNone {
		t.Errorf("DestinationKind = %q, want none", cfg.DestinationKind)
	}
	if cfg.LogLevel != LogInfo {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	t.Setenv("TELEGRAM_API_ID", "")
	t.Setenv("TELEGRAM_API_HASH", "")
	t.Setenv("TELEGRAM_PHONE", "")

	_, err := Load("")
	var missing *ErrMissingCredentials
	if !errors.As(err, &missing) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if missing.Field != "TELEGRAM_API_ID" {
		t.Errorf("missing field = %s, want TELEGRAM_API_ID", missing.Field)
	}
}

func TestLoadRejectsBadAPIID(t *testing.T) {
	setCredentials(t)
	t.Setenv("TELEGRAM_API_ID", "not-a-number")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-integer TELEGRAM_API_ID")
	}
}

func TestParseSyncTime(t *testing.T) {
	setCredentials(t)
	t.Setenv("SYNC_TIME", "14:30")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	h, m, err := cfg.ParseSyncTime()
	if err != nil || h != 14 || m != 30 {
		t.Fatalf("ParseSyncTime = (%d, %d, %v), want (14, 30, nil)", h, m, err)
	}
}
