package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the daemon and the CLI.
type Config struct {
	DatabaseURL string
	JWTSecret   string
	// Token is the CLI access token.
	Token    string
	Location *time.Location

	TelegramToken       string
	FirebaseCredentials string
	ResendAPIKey        string
	MailFrom            string

	AIGatewayURL  string
	AIGatewayKey  string
	AIModel       string
	FunctionsAddr string
	FunctionsURL  string

	SweepInterval time.Duration
	DigestTime    string
}

var ErrMissingSecret = errors.New("TASKHIVE_JWT_SECRET is required")

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is loaded first when present.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		DatabaseURL:         env("DATABASE_URL", "taskhive.db"),
		JWTSecret:           env("TASKHIVE_JWT_SECRET", ""),
		Token:               env("TASKHIVE_TOKEN", ""),
		TelegramToken:       env("TELEGRAM_TOKEN", ""),
		FirebaseCredentials: env("FIREBASE_CREDENTIALS", ""),
		ResendAPIKey:        env("RESEND_API_KEY", ""),
		MailFrom:            env("MAIL_FROM", "TaskHive <onboarding@resend.dev>"),
		AIGatewayURL:        env("AI_GATEWAY_URL", "https://ai.gateway.lovable.dev/v1/chat/completions"),
		AIGatewayKey:        env("AI_GATEWAY_KEY", ""),
		AIModel:             env("AI_MODEL", "google/gemini-2.5-flash"),
		FunctionsAddr:       env("FUNCTIONS_ADDR", ":8080"),
		FunctionsURL:        env("FUNCTIONS_URL", "http://localhost:8080"),
		DigestTime:          env("DIGEST_TIME", "08:00"),
	}

	loc, err := time.LoadLocation(env("TIMEZONE", "Local"))
	if err != nil {
		return cfg, fmt.Errorf("TIMEZONE: %w", err)
	}
	cfg.Location = loc

	cfg.SweepInterval, err = time.ParseDuration(env("REMINDER_SWEEP_INTERVAL", "1m"))
	if err != nil || cfg.SweepInterval < time.Second {
		return cfg, fmt.Errorf("REMINDER_SWEEP_INTERVAL must be a duration of at least 1s")
	}

	if _, err := time.Parse("15:04", cfg.DigestTime); err != nil {
		return cfg, fmt.Errorf("DIGEST_TIME must be HH:MM, got %q", cfg.DigestTime)
	}

	return cfg, nil
}

// RequireSecret fails when no JWT secret is configured.
func (c Config) RequireSecret() error {
	if c.JWTSecret == "" {
		return ErrMissingSecret
	}
	return nil
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
