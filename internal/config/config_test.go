package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DOCUMENT_STORE", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("PERSIST_WORKERS", "")
	t.Setenv("ALLOW_ANONYMOUS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DocumentStore != StorePostgres {
		t.Fatalf("DocumentStore = %q, want %q", cfg.DocumentStore, StorePostgres)
	}
	if cfg.ServerPort != "5000" {
		t.Fatalf("ServerPort = %q, want 5000", cfg.ServerPort)
	}
	if cfg.PersistWorkers != 4 {
		t.Fatalf("PersistWorkers = %d, want 4", cfg.PersistWorkers)
	}
	if cfg.AllowAnonymous {
		t.Fatal("AllowAnonymous should default to false")
	}
	if cfg.InstanceID == "" {
		t.Fatal("InstanceID should be generated")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DOCUMENT_STORE", "SQLite")
	t.Setenv("TOKEN_TTL_MINUTES", "15")
	t.Setenv("STORE_TIMEOUT_SECONDS", "2")
	t.Setenv("ALLOW_ANONYMOUS", "true")
	t.Setenv("PERSIST_WORKERS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DocumentStore != StoreSQLite {
		t.Fatalf("DocumentStore = %q, want %q", cfg.DocumentStore, StoreSQLite)
	}
	if cfg.TokenTTL != 15*time.Minute {
		t.Fatalf("TokenTTL = %v", cfg.TokenTTL)
	}
	if cfg.StoreTimeout != 2*time.Second {
		t.Fatalf("StoreTimeout = %v", cfg.StoreTimeout)
	}
	if !cfg.AllowAnonymous {
		t.Fatal("AllowAnonymous should be true")
	}
	if cfg.PersistWorkers != 4 {
		t.Fatalf("invalid int should fall back to default, got %d", cfg.PersistWorkers)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("Load() error = %v, want JWT_SECRET error", err)
	}
}

func TestValidateRejectsUnknownStore(t *testing.T) {
	cfg := &Config{JWTSecret: "s", DocumentStore: "cassandra", PersistWorkers: 1, PersistQueueSize: 1, SendBufferSize: 1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate() to reject unknown store")
	}
}
