package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CARDIOAI_AUTH_SECRET", "test-secret")
	t.Setenv("CARDIOAI_PHI_MASTER_KEY", "test-master-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Addr)
	}
	if cfg.TokenTTL != 15*time.Minute {
		t.Fatalf("unexpected token ttl %s", cfg.TokenTTL)
	}
	if cfg.LoginMaxAttempts != 5 {
		t.Fatalf("unexpected max attempts %d", cfg.LoginMaxAttempts)
	}
	if cfg.LockWindow != 30*time.Minute {
		t.Fatalf("unexpected lock window %s", cfg.LockWindow)
	}
	if cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("unexpected max body %d", cfg.MaxBodyBytes)
	}
	if cfg.PGDSN != "" {
		t.Fatalf("expected empty DSN by default, got %q", cfg.PGDSN)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CARDIOAI_ADDR", ":9999")
	t.Setenv("CARDIOAI_TOKEN_TTL", "1h")
	t.Setenv("CARDIOAI_LOGIN_MAX_ATTEMPTS", "3")
	t.Setenv("CARDIOAI_RATE_BURST", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("unexpected addr %q", cfg.Addr)
	}
	if cfg.TokenTTL != time.Hour {
		t.Fatalf("unexpected token ttl %s", cfg.TokenTTL)
	}
	if cfg.LoginMaxAttempts != 3 {
		t.Fatalf("unexpected max attempts %d", cfg.LoginMaxAttempts)
	}
	if cfg.RateBurst != 50 {
		t.Fatalf("unexpected rate burst %d", cfg.RateBurst)
	}
}

func TestLoadRequiresKeyMaterial(t *testing.T) {
	t.Setenv("CARDIOAI_AUTH_SECRET", "")
	t.Setenv("CARDIOAI_PHI_MASTER_KEY", "k")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "CARDIOAI_AUTH_SECRET") {
		t.Fatalf("expected missing auth secret error, got %v", err)
	}

	t.Setenv("CARDIOAI_AUTH_SECRET", "s")
	t.Setenv("CARDIOAI_PHI_MASTER_KEY", "")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "CARDIOAI_PHI_MASTER_KEY") {
		t.Fatalf("expected missing master key error, got %v", err)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	setRequired(t)
	t.Setenv("CARDIOAI_TOKEN_TTL", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed duration")
	}

	t.Setenv("CARDIOAI_TOKEN_TTL", "15m")
	t.Setenv("CARDIOAI_LOGIN_MAX_ATTEMPTS", "five")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed integer")
	}
}
