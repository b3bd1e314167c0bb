package config

import (
	"testing"
	"time"
)

func TestLoadAppliesPollOverrides(t *testing.T) {
	t.Setenv("POLL_MAX_ATTEMPTS", "3")
	t.Setenv("POLL_INTERVAL_MS", "250")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")

	cfg := Load()

	if cfg.PollMaxAttempts != 3 {
		t.Fatalf("expected 3 poll attempts, got %d", cfg.PollMaxAttempts)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Fatalf("expected 250ms interval, got %v", cfg.PollInterval)
	}
	if cfg.MaxUploadBytes != 1024 {
		t.Fatalf("expected 1024 byte limit, got %d", cfg.MaxUploadBytes)
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("POLL_MAX_ATTEMPTS", "not-a-number")

	if got := getEnvInt("POLL_MAX_ATTEMPTS", 15); got != 15 {
		t.Fatalf("expected fallback 15, got %d", got)
	}
}
