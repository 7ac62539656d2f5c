package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "buildflow.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv("BUILDFLOW_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.CORSOrigin, "CORS_ORIGIN")
	setDuration(&cfg.Server.RequestTimeout, "BUILDFLOW_REQUEST_TIMEOUT")
	setString(&cfg.Store.Backend, "BUILDFLOW_STORE")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "BUILDFLOW_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "BUILDFLOW_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "BUILDFLOW_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "BUILDFLOW_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "BUILDFLOW_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.KVBucket, "BUILDFLOW_NATS_KV_BUCKET")
	setBool(&cfg.NATS.Publish, "BUILDFLOW_NATS_PUBLISH")
	setString(&cfg.NATS.CacheKV, "BUILDFLOW_NATS_CACHE_KV")

	setInt64(&cfg.Cache.L1MaxBytes, "BUILDFLOW_CACHE_L1_MAX_BYTES")
	setDuration(&cfg.Cache.TTL, "BUILDFLOW_CACHE_TTL")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Service, "BUILDFLOW_SERVICE_NAME")
	setBool(&cfg.Logging.Async, "BUILDFLOW_LOG_ASYNC")

	// Auth
	setBool(&cfg.Auth.Enabled, "BUILDFLOW_AUTH_ENABLED")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Auth.JWTIssuer, "BUILDFLOW_JWT_ISSUER")
	setDuration(&cfg.Auth.TokenTTL, "BUILDFLOW_TOKEN_TTL")
	setStringSlice(&cfg.Auth.APIKeyHashes, "BUILDFLOW_API_KEY_HASHES")

	// HITL gate
	setFloat64(&cfg.HITL.ThresholdLow, "HITL_THRESHOLD_LOW")
	setFloat64(&cfg.HITL.ThresholdHigh, "HITL_THRESHOLD_HIGH")
	setDuration(&cfg.HITL.RequestTTL, "BUILDFLOW_HITL_REQUEST_TTL")
	setDuration(&cfg.Agents.ExecutionLogTTL, "BUILDFLOW_AGENT_LOG_TTL")

	setInt(&cfg.Breaker.MaxFailures, "BUILDFLOW_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "BUILDFLOW_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "RATE_LIMIT_RPS")
	setInt(&cfg.Rate.Burst, "RATE_LIMIT_BURST")

	// Webhook
	setString(&cfg.Webhook.PaymentSecret, "PAYMENT_WEBHOOK_SECRET")

	setBool(&cfg.OTEL.Enabled, "BUILDFLOW_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "BUILDFLOW_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "BUILDFLOW_OTEL_SAMPLE_RATE")

	setBool(&cfg.MCP.Enabled, "BUILDFLOW_MCP_ENABLED")
	setString(&cfg.MCP.Addr, "BUILDFLOW_MCP_ADDR")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Store.Backend {
	case BackendMemory:
	case BackendNATS:
		if cfg.NATS.URL == "" {
			return errors.New("nats.url is required for the nats store backend")
		}
		if cfg.NATS.KVBucket == "" {
			return errors.New("nats.kv_bucket is required for the nats store backend")
		}
	case BackendPostgres:
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres store backend")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	default:
		return fmt.Errorf("store.backend %q is not one of memory, nats, postgres", cfg.Store.Backend)
	}
	if (cfg.NATS.Publish || cfg.NATS.CacheKV != "") && cfg.NATS.URL == "" {
		return errors.New("nats.url is required when publishing or using the nats cache")
	}
	if cfg.HITL.ThresholdHigh < 0 || cfg.HITL.ThresholdHigh > 1 {
		return errors.New("hitl.threshold_high must be in [0,1]")
	}
	if cfg.HITL.ThresholdLow < 0 || cfg.HITL.ThresholdLow > 1 {
		return errors.New("hitl.threshold_low must be in [0,1]")
	}
	if cfg.Auth.Enabled && cfg.Auth.JWTSecret == "" && len(cfg.Auth.APIKeyHashes) == 0 {
		return errors.New("auth.jwt_secret or auth.api_key_hashes is required when auth is enabled")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setStringSlice(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
