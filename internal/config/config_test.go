package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tiermem/tiermem/internal/memerr"
)

func kindOf(t *testing.T, err error) memerr.Kind {
	t.Helper()
	var ve *memerr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	return ve.Kind
}

func TestParseConsciousLimitValid(t *testing.T) {
	for _, v := range []any{1, 10, 2000, int64(500), uint(77)} {
		n, err := ParseConsciousLimit(v)
		if err != nil {
			t.Errorf("ParseConsciousLimit(%v): %v", v, err)
		}
		if n < MinConsciousLimit || n > MaxConsciousLimit {
			t.Errorf("ParseConsciousLimit(%v) = %d out of range", v, n)
		}
	}
}

func TestParseConsciousLimitRange(t *testing.T) {
	for _, v := range []any{0, -1, 2001, 100000} {
		_, err := ParseConsciousLimit(v)
		if kindOf(t, err) != memerr.KindRange {
			t.Errorf("ParseConsciousLimit(%v): expected range error", v)
		}
	}
}

func TestParseConsciousLimitType(t *testing.T) {
	for _, v := range []any{true, false, 5.0, 3.14, "10", nil} {
		_, err := ParseConsciousLimit(v)
		if kindOf(t, err) != memerr.KindType {
			t.Errorf("ParseConsciousLimit(%#v): expected type error", v)
		}
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejectsBadLimit(t *testing.T) {
	cfg := Default()
	cfg.ConsciousMemoryLimit = 5000
	if kindOf(t, cfg.Validate()) != memerr.KindRange {
		t.Error("expected range error for limit 5000")
	}
}

func TestEnvOverlay(t *testing.T) {
	t.Setenv("TIERMEM_DATABASE_URL", "postgres://u:p@localhost/mem")
	t.Setenv("TIERMEM_USER_ID", "alice")
	t.Setenv("TIERMEM_AUTO_INGEST", "true")
	t.Setenv("TIERMEM_CONSCIOUS_MEMORY_LIMIT", "42")

	cfg, err := FromEnv(Default())
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.DatabaseURL != "postgres://u:p@localhost/mem" {
		t.Errorf("database url not overlaid: %q", cfg.DatabaseURL)
	}
	if cfg.UserID != "alice" || !cfg.AutoIngest || cfg.ConsciousMemoryLimit != 42 {
		t.Errorf("env overlay incomplete: %+v", cfg)
	}
	if cfg.ConsciousIngest {
		t.Error("unset env must keep default")
	}
}

func TestEnvBadIntIsTypeError(t *testing.T) {
	t.Setenv("TIERMEM_CONSCIOUS_MEMORY_LIMIT", "ten")
	_, err := FromEnv(Default())
	if kindOf(t, err) != memerr.KindType {
		t.Error("expected type error for non-numeric env value")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiermem.yaml")
	body := []byte("database_url: sqlite://test.db\nuser_id: carol\nconscious_ingest: true\nconscious_memory_limit: 100\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.UserID != "carol" || !cfg.ConsciousIngest || cfg.ConsciousMemoryLimit != 100 {
		t.Errorf("yaml not applied: %+v", cfg)
	}
	if cfg.Namespace != "default" {
		t.Errorf("defaults must survive partial yaml: %q", cfg.Namespace)
	}
}

func TestLoadYAMLOutOfRangeLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiermem.yaml")
	if err := os.WriteFile(path, []byte("conscious_memory_limit: 9999\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if kindOf(t, err) != memerr.KindRange {
		t.Error("expected range error from yaml limit")
	}
}
