package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "REDIS_ADDR", "DIALOGUE_STORE", "TIMEZONE", "LOCK_TTL", "RATE_LIMIT_RPS", "AUDIT_ENABLED"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.DialogueStore != StoreMemory {
		t.Fatalf("expected memory store without backends, got %s", cfg.DialogueStore)
	}
	if cfg.Timezone != "Asia/Singapore" {
		t.Fatalf("expected default timezone, got %s", cfg.Timezone)
	}
	if cfg.LockTTL != 10*time.Second {
		t.Fatalf("expected default lock ttl, got %s", cfg.LockTTL)
	}
	if cfg.RateLimitRPS != 5 || cfg.RateLimitBurst != 10 {
		t.Fatalf("unexpected rate limit defaults %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if !cfg.AuditEnabled {
		t.Fatalf("expected audit enabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("LOCK_TTL", "3s")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("AUDIT_ENABLED", "false")

	cfg := Load()
	if cfg.Port != "9090" || cfg.LogLevel != "debug" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.DialogueStore != StorePostgres {
		t.Fatalf("expected postgres store with DATABASE_URL, got %s", cfg.DialogueStore)
	}
	if cfg.LockTTL != 3*time.Second {
		t.Fatalf("expected lock ttl override, got %s", cfg.LockTTL)
	}
	if cfg.RateLimitRPS != 0.5 {
		t.Fatalf("expected rps override, got %v", cfg.RateLimitRPS)
	}
	if cfg.AuditEnabled {
		t.Fatalf("expected audit disabled")
	}
}

func TestLoadPrefersRedisStore(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	if got := Load().DialogueStore; got != StoreRedis {
		t.Fatalf("expected redis store, got %s", got)
	}

	t.Setenv("DIALOGUE_STORE", "Postgres")
	if got := Load().DialogueStore; got != StorePostgres {
		t.Fatalf("expected explicit store to win, got %s", got)
	}
}

func TestGetEnvAsDurationFallsBack(t *testing.T) {
	t.Setenv("LOCK_TTL", "not-a-duration")
	if got := getEnvAsDuration("LOCK_TTL", time.Second); got != time.Second {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestCORSOriginsList(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://chat.example.com, ,https://ops.example.com ")
	cfg := Load()
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://ops.example.com" {
		t.Fatalf("unexpected origins %#v", cfg.CORSAllowedOrigins)
	}
}
