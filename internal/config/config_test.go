package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("PORT", "")
	t.Setenv("STORE", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("APP_TIMEZONE", "")

	cfg := Load()

	if cfg.Env != "dev" || cfg.Port != 8080 || cfg.Store != StorePostgres {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Timezone != time.UTC {
		t.Fatalf("timezone = %v, want UTC", cfg.Timezone)
	}
	if cfg.AnalyticsCacheTTL != 30*time.Second {
		t.Fatalf("cache ttl = %v, want 30s", cfg.AnalyticsCacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORE", "MEMORY")
	t.Setenv("APP_TIMEZONE", "Europe/London")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("AUTO_MIGRATE", "true")
	t.Setenv("STALE_SHIFT_HOURS", "not-a-number")

	cfg := Load()

	if cfg.Port != 9000 {
		t.Fatalf("port = %d, want 9000", cfg.Port)
	}
	if cfg.Store != StoreMemory {
		t.Fatalf("store = %q, want memory", cfg.Store)
	}
	if cfg.Timezone.String() != "Europe/London" {
		t.Fatalf("timezone = %v", cfg.Timezone)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins = %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.AutoMigrate {
		t.Fatal("AUTO_MIGRATE not applied")
	}
	if cfg.StaleShiftAfter != 16*time.Hour {
		t.Fatalf("invalid integer must fall back to default, got %v", cfg.StaleShiftAfter)
	}
}

func TestValidate(t *testing.T) {
	base := Config{Env: "dev", Store: StoreMemory, IdPSecret: "s"}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	noSecret := base
	noSecret.IdPSecret = ""
	if noSecret.Validate() == nil {
		t.Fatal("missing secret accepted")
	}

	prodMemory := base
	prodMemory.Env = "prod"
	if prodMemory.Validate() == nil {
		t.Fatal("memory store accepted in prod")
	}

	badStore := base
	badStore.Store = "sqlite"
	if badStore.Validate() == nil {
		t.Fatal("unknown store accepted")
	}
}

func TestValidateStoreIgnoresIdentitySettings(t *testing.T) {
	cfg := Config{Env: "dev", Store: StorePostgres}
	if err := cfg.ValidateStore(); err != nil {
		t.Fatalf("worker config rejected: %v", err)
	}
	if cfg.Validate() == nil {
		t.Fatal("API config without secret accepted")
	}
}

func TestLoadSampleRatio(t *testing.T) {
	t.Setenv("OTEL_SAMPLE_RATIO", "0.1")
	if got := Load().OTelSampleRatio; got != 0.1 {
		t.Fatalf("sample ratio = %v, want 0.1", got)
	}

	t.Setenv("OTEL_SAMPLE_RATIO", "lots")
	if got := Load().OTelSampleRatio; got != 1 {
		t.Fatalf("invalid ratio must fall back to 1, got %v", got)
	}
}
