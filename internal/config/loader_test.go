package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "3001" {
		t.Errorf("expected port 3001, got %s", cfg.Server.Port)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("expected memory backend, got %s", cfg.Store.Backend)
	}
	if cfg.HITL.ThresholdHigh != 0.80 {
		t.Errorf("expected threshold_high 0.80, got %v", cfg.HITL.ThresholdHigh)
	}
	if cfg.HITL.ThresholdLow != 0.95 {
		t.Errorf("expected threshold_low 0.95, got %v", cfg.HITL.ThresholdLow)
	}
	if cfg.HITL.RequestTTL != 7*24*time.Hour {
		t.Errorf("expected request ttl 168h, got %v", cfg.HITL.RequestTTL)
	}
	if cfg.Agents.ExecutionLogTTL != 24*time.Hour {
		t.Errorf("expected execution log ttl 24h, got %v", cfg.Agents.ExecutionLogTTL)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
  cors_origin: "http://example.com"
store:
  backend: "postgres"
postgres:
  max_conns: 20
hitl:
  threshold_high: 0.7
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Store.Backend != BackendPostgres {
		t.Errorf("expected postgres backend, got %s", cfg.Store.Backend)
	}
	if cfg.Postgres.MaxConns != 20 {
		t.Errorf("expected max_conns 20, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.HITL.ThresholdHigh != 0.7 {
		t.Errorf("expected threshold_high 0.7, got %v", cfg.HITL.ThresholdHigh)
	}
	// Unchanged fields keep defaults
	if cfg.HITL.ThresholdLow != 0.95 {
		t.Errorf("expected default threshold_low, got %v", cfg.HITL.ThresholdLow)
	}
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
}

func TestLoadYAMLMissingFile(t *testing.T) {
	cfg := Defaults()
	if err := loadYAML(&cfg, filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Defaults()
	if err := loadYAML(&cfg, path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("HITL_THRESHOLD_HIGH", "0.6")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("BUILDFLOW_API_KEY_HASHES", "hash-a, hash-b,")
	t.Setenv("BUILDFLOW_HITL_REQUEST_TTL", "1h")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")

	cfg := Defaults()
	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.HITL.ThresholdHigh != 0.6 {
		t.Errorf("expected threshold 0.6, got %v", cfg.HITL.ThresholdHigh)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("expected jwt secret, got %q", cfg.Auth.JWTSecret)
	}
	if len(cfg.Auth.APIKeyHashes) != 2 || cfg.Auth.APIKeyHashes[1] != "hash-b" {
		t.Errorf("unexpected api key hashes: %v", cfg.Auth.APIKeyHashes)
	}
	if cfg.HITL.RequestTTL != time.Hour {
		t.Errorf("expected 1h ttl, got %v", cfg.HITL.RequestTTL)
	}
	// Unparseable values leave the default in place.
	if cfg.Rate.Burst != 100 {
		t.Errorf("expected default burst 100, got %d", cfg.Rate.Burst)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) { c.Auth.JWTSecret = "x" }, ""},
		{"missing port", func(c *Config) { c.Auth.JWTSecret = "x"; c.Server.Port = "" }, "server.port"},
		{"unknown backend", func(c *Config) { c.Auth.JWTSecret = "x"; c.Store.Backend = "redis" }, "store.backend"},
		{"nats without url", func(c *Config) {
			c.Auth.JWTSecret = "x"
			c.Store.Backend = BackendNATS
			c.NATS.URL = ""
		}, "nats.url"},
		{"postgres without dsn", func(c *Config) {
			c.Auth.JWTSecret = "x"
			c.Store.Backend = BackendPostgres
			c.Postgres.DSN = ""
		}, "postgres.dsn"},
		{"threshold out of range", func(c *Config) { c.Auth.JWTSecret = "x"; c.HITL.ThresholdHigh = 1.5 }, "threshold_high"},
		{"auth without credentials", func(*Config) {}, "auth.jwt_secret"},
		{"auth disabled", func(c *Config) { c.Auth.Enabled = false }, ""},
		{"api keys only", func(c *Config) { c.Auth.APIKeyHashes = []string{"h"} }, ""},
		{"zero burst", func(c *Config) { c.Auth.JWTSecret = "x"; c.Rate.Burst = 0 }, "rate.burst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := validate(&cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadFrom(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	path := filepath.Join(t.TempDir(), "buildflow.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"4000\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Port != "4000" {
		t.Errorf("expected port 4000, got %s", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Errorf("expected env secret, got %q", cfg.Auth.JWTSecret)
	}
}
