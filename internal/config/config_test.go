package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.ParticipantTTL != 24*time.Hour {
		t.Fatalf("ParticipantTTL = %v, want 24h", cfg.ParticipantTTL)
	}
	if cfg.PhaseTimerTTL != 2*time.Hour {
		t.Fatalf("PhaseTimerTTL = %v, want 2h", cfg.PhaseTimerTTL)
	}
	if cfg.StickerPositionTTL != time.Hour {
		t.Fatalf("StickerPositionTTL = %v, want 1h", cfg.StickerPositionTTL)
	}
	if cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin = true, want false default")
	}
	if cfg.DatabaseURL != "" || cfg.RedisURL != "" {
		t.Fatalf("store URLs should default empty, got %q / %q", cfg.DatabaseURL, cfg.RedisURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")
	t.Setenv("APP_STICKER_POSITION_TTL", "90s")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.StickerPositionTTL != 90*time.Second {
		t.Fatalf("StickerPositionTTL = %v, want 90s", cfg.StickerPositionTTL)
	}
	if !cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin = false, want true")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_PARTICIPANT_TTL", "5s")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for too-small participant TTL")
	}

	setCoreEnvEmpty(t)
	t.Setenv("APP_WS_OUTBOX_SIZE", "nope")
	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error for outbox size")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_PARTICIPANT_TTL",
		"APP_PHASE_TIMER_TTL",
		"APP_STICKER_POSITION_TTL",
		"APP_DEFAULT_SESSION_MINUTES",
		"APP_WS_OUTBOX_SIZE",
		"DATABASE_URL",
		"REDIS_URL",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
