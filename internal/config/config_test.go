package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "TASKHIVE_JWT_SECRET", "TIMEZONE", "REMINDER_SWEEP_INTERVAL", "DIGEST_TIME", "FUNCTIONS_ADDR"} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "taskhive.db" || cfg.SweepInterval != time.Minute || cfg.DigestTime != "08:00" || cfg.FunctionsAddr != ":8080" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !errors.Is(cfg.RequireSecret(), ErrMissingSecret) {
		t.Fatal("missing secret not reported")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TIMEZONE", "Europe/Berlin")
	t.Setenv("REMINDER_SWEEP_INTERVAL", "5m")
	t.Setenv("DIGEST_TIME", "07:15")
	t.Setenv("TASKHIVE_JWT_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Location.String() != "Europe/Berlin" || cfg.SweepInterval != 5*time.Minute || cfg.DigestTime != "07:15" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if err := cfg.RequireSecret(); err != nil {
		t.Fatalf("RequireSecret: %v", err)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{name: "timezone", key: "TIMEZONE", value: "Mars/Olympus"},
		{name: "interval", key: "REMINDER_SWEEP_INTERVAL", value: "soon"},
		{name: "tiny interval", key: "REMINDER_SWEEP_INTERVAL", value: "10ms"},
		{name: "digest", key: "DIGEST_TIME", value: "8am"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%q accepted", tt.key, tt.value)
			}
		})
	}
}
