package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds every setting the server reads from its environment.
type Config struct {
	HTTPAddr          string        `validate:"required"`
	RedisConnString   string        `validate:"required"`
	SQLitePath        string        `validate:"required"`
	OtelCollectorAddr string        `validate:"omitempty,hostname_port"`
	OtelStdout        bool
	JWTSecret         string        `validate:"required,min=8"`
	BotThinkDelay     time.Duration `validate:"min=0"`
	LogLevel          slog.Level
	GameTTL           time.Duration `validate:"gt=0"`
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		HTTPAddr:          ":8080",
		RedisConnString:   "localhost:6379",
		SQLitePath:        "./master.db",
		OtelCollectorAddr: "otel-collector:4317",
		JWTSecret:         "your_secret_key",
		BotThinkDelay:     500 * time.Millisecond,
		LogLevel:          slog.LevelInfo,
		GameTTL:           time.Hour,
	}
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, falling back to Default for unset keys.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("HTTP_ADDR", &cfg.HTTPAddr)
	str("REDIS_CONNSTRING", &cfg.RedisConnString)
	str("SQLITE_PATH", &cfg.SQLitePath)
	str("JWT_SECRET", &cfg.JWTSecret)
	if v, ok := lookup("OTEL_COLLECTOR_ADDR"); ok {
		// An explicitly empty address disables the OTLP exporters.
		cfg.OtelCollectorAddr = v
	}

	if v, ok := lookup("OTEL_STDOUT"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid OTEL_STDOUT %q: %w", v, err)
		}
		cfg.OtelStdout = b
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"BOT_THINK_DELAY", &cfg.BotThinkDelay},
		{"GAME_TTL", &cfg.GameTTL},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", d.key, v, err)
		}
		*d.dst = parsed
	}

	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.ToUpper(v))); err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
		}
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
