package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the canvas sync service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	DatabaseURL string
	RedisURL    string

	// TTLs for ephemeral state. These are blunt expirations, not
	// activity-based renewals.
	ParticipantTTL     time.Duration
	PhaseTimerTTL      time.Duration
	StickerPositionTTL time.Duration

	DefaultSessionMinutes int

	WSReadLimit    int64
	WSWriteTimeout time.Duration
	OutboxSize     int
}

// Load reads environment variables and applies safe defaults. A .env file
// in the working directory is honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BindAddr:              envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:      envOrDefault("APP_METRICS_NAMESPACE", "stormboard"),
		AllowAnyOrigin:        false,
		DatabaseURL:           trimEnv("DATABASE_URL"),
		RedisURL:              trimEnv("REDIS_URL"),
		ShutdownTimeout:       15 * time.Second,
		ParticipantTTL:        24 * time.Hour,
		PhaseTimerTTL:         2 * time.Hour,
		StickerPositionTTL:    time.Hour,
		DefaultSessionMinutes: 60,
		WSReadLimit:           1 << 20,
		WSWriteTimeout:        10 * time.Second,
		OutboxSize:            256,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ParticipantTTL, err = durationFromEnv("APP_PARTICIPANT_TTL", cfg.ParticipantTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.PhaseTimerTTL, err = durationFromEnv("APP_PHASE_TIMER_TTL", cfg.PhaseTimerTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.StickerPositionTTL, err = durationFromEnv("APP_STICKER_POSITION_TTL", cfg.StickerPositionTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.DefaultSessionMinutes, err = intFromEnv("APP_DEFAULT_SESSION_MINUTES", cfg.DefaultSessionMinutes)
	if err != nil {
		return Config{}, err
	}
	cfg.OutboxSize, err = intFromEnv("APP_WS_OUTBOX_SIZE", cfg.OutboxSize)
	if err != nil {
		return Config{}, err
	}

	if cfg.ParticipantTTL < time.Minute {
		return Config{}, fmt.Errorf("APP_PARTICIPANT_TTL must be at least 1m")
	}
	if cfg.PhaseTimerTTL < time.Minute {
		return Config{}, fmt.Errorf("APP_PHASE_TIMER_TTL must be at least 1m")
	}
	if cfg.StickerPositionTTL < time.Second {
		return Config{}, fmt.Errorf("APP_STICKER_POSITION_TTL must be at least 1s")
	}
	if cfg.DefaultSessionMinutes <= 0 {
		return Config{}, fmt.Errorf("APP_DEFAULT_SESSION_MINUTES must be positive")
	}
	if cfg.OutboxSize <= 0 {
		return Config{}, fmt.Errorf("APP_WS_OUTBOX_SIZE must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
