// Package config loads engine configuration from defaults, an optional
// YAML file and TIERMEM_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tiermem/tiermem/internal/memerr"
	"github.com/tiermem/tiermem/internal/tenant"
)

// Limits for the bounded working-memory tier.
const (
	MinConsciousLimit = 1
	MaxConsciousLimit = 2000
)

// Config holds every tunable of the engine. Validation fails fast;
// out-of-range values are rejected, never clamped.
type Config struct {
	DatabaseURL string `yaml:"database_url"`

	// Default tenant scope, overridable per call.
	UserID      string `yaml:"user_id"`
	AssistantID string `yaml:"assistant_id"`
	SessionID   string `yaml:"session_id"`
	Namespace   string `yaml:"namespace"`

	// Ingestion modes, immutable for an engine instance's lifetime.
	ConsciousIngest bool `yaml:"conscious_ingest"`
	AutoIngest      bool `yaml:"auto_ingest"`

	ConsciousMemoryLimit int `yaml:"conscious_memory_limit"`

	// ContextLimit caps the rows injected from the working set;
	// ContextBudget (chars, 0 = unlimited) bounds assembled context.
	ContextLimit  int `yaml:"context_limit"`
	ContextBudget int `yaml:"context_budget"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		DatabaseURL:          "sqlite://tiermem.db",
		Namespace:            tenant.DefaultNamespace,
		ConsciousMemoryLimit: 10,
		ContextLimit:         10,
		LogLevel:             "info",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped
// when path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg, err := FromEnv(cfg)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// FromEnv overlays TIERMEM_* environment variables on cfg.
func FromEnv(cfg Config) (Config, error) {
	cfg.DatabaseURL = getEnv("TIERMEM_DATABASE_URL", cfg.DatabaseURL)
	cfg.UserID = getEnv("TIERMEM_USER_ID", cfg.UserID)
	cfg.AssistantID = getEnv("TIERMEM_ASSISTANT_ID", cfg.AssistantID)
	cfg.SessionID = getEnv("TIERMEM_SESSION_ID", cfg.SessionID)
	cfg.Namespace = getEnv("TIERMEM_NAMESPACE", cfg.Namespace)
	cfg.LogLevel = getEnv("TIERMEM_LOG_LEVEL", cfg.LogLevel)

	var err error
	if cfg.ConsciousIngest, err = getEnvBool("TIERMEM_CONSCIOUS_INGEST", cfg.ConsciousIngest); err != nil {
		return cfg, err
	}
	if cfg.AutoIngest, err = getEnvBool("TIERMEM_AUTO_INGEST", cfg.AutoIngest); err != nil {
		return cfg, err
	}
	if cfg.ConsciousMemoryLimit, err = getEnvInt("TIERMEM_CONSCIOUS_MEMORY_LIMIT", cfg.ConsciousMemoryLimit); err != nil {
		return cfg, err
	}
	if cfg.ContextLimit, err = getEnvInt("TIERMEM_CONTEXT_LIMIT", cfg.ContextLimit); err != nil {
		return cfg, err
	}
	if cfg.ContextBudget, err = getEnvInt("TIERMEM_CONTEXT_BUDGET", cfg.ContextBudget); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks ranges and the namespace. Called by Load; call it
// directly when building a Config by hand.
func (c Config) Validate() error {
	if _, err := ParseConsciousLimit(c.ConsciousMemoryLimit); err != nil {
		return err
	}
	if _, err := tenant.NewKey(c.UserID, c.AssistantID, c.SessionID, c.Namespace); err != nil {
		return err
	}
	if c.ContextLimit < 1 {
		return memerr.Validationf("context_limit", memerr.KindRange,
			"must be at least 1, got %d", c.ContextLimit)
	}
	if c.ContextBudget < 0 {
		return memerr.Validationf("context_budget", memerr.KindRange,
			"must not be negative, got %d", c.ContextBudget)
	}
	return nil
}

// TenantKey returns the configured default scope.
func (c Config) TenantKey() (tenant.Key, error) {
	return tenant.NewKey(c.UserID, c.AssistantID, c.SessionID, c.Namespace)
}

// ParseConsciousLimit validates a conscious_memory_limit from loosely
// typed input (YAML, JSON). Booleans, floats, strings and nil are type
// errors even when they look numeric; integers outside
// [MinConsciousLimit, MaxConsciousLimit] are range errors.
func ParseConsciousLimit(v any) (int, error) {
	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int8:
		n = int(t)
	case int16:
		n = int(t)
	case int32:
		n = int(t)
	case int64:
		n = int(t)
	case uint:
		n = int(t)
	case uint8:
		n = int(t)
	case uint16:
		n = int(t)
	case uint32:
		n = int(t)
	case uint64:
		n = int(t)
	default:
		return 0, memerr.Validationf("conscious_memory_limit", memerr.KindType,
			"must be an integer, got %T", v)
	}

	if n < MinConsciousLimit || n > MaxConsciousLimit {
		return 0, memerr.Validationf("conscious_memory_limit", memerr.KindRange,
			"must be between %d and %d, got %d", MinConsciousLimit, MaxConsciousLimit, n)
	}
	return n, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, memerr.Validationf(key, memerr.KindType, "must be a boolean, got %q", v)
	}
	return b, nil
}

func getEnvInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, memerr.Validationf(key, memerr.KindType, "must be an integer, got %q", v)
	}
	return n, nil
}
