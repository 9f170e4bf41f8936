package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StoreDriver != "postgres" || cfg.AccessTTL != 15*time.Minute || cfg.ScopeCacheTTL != 30*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.InsertMaxTries != 5 || cfg.BackfillConcurrency != 4 {
		t.Fatalf("unexpected retry defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SNIPSHELF_SCOPE_CACHE_TTL", "2m")
	t.Setenv("SNIPSHELF_INSERT_MAX_TRIES", "0")
	t.Setenv("SNIPSHELF_BACKFILL_CONCURRENCY", "-3")
	t.Setenv("EXPORT_USE_SSL", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StoreDriver != "sqlite" || cfg.ScopeCacheTTL != 2*time.Minute || !cfg.ExportUseSSL {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.InsertMaxTries != 1 || cfg.BackfillConcurrency != 1 {
		t.Fatalf("expected lower bounds of 1, got %+v", cfg)
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("SNIPSHELF_ACCESS_TTL", "forever")
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
