package session

import (
	"context"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "42"); err != nil || ok {
		t.Fatalf("expected absent value, got ok=%v err=%v", ok, err)
	}

	if err := store.Set(ctx, "42", "MENU"); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := store.Get(ctx, "42")
	if err != nil || !ok {
		t.Fatalf("expected value, got ok=%v err=%v", ok, err)
	}
	if value != "MENU" {
		t.Fatalf("value = %q, want MENU", value)
	}

	if err := store.Set(ctx, "42", "CART"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, _, _ = store.Get(ctx, "42")
	if value != "CART" {
		t.Fatalf("value = %q, want CART", value)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Backend != BackendRedis {
		t.Fatalf("backend = %q, want redis", cfg.Backend)
	}
	if cfg.Redis.Addr == "" {
		t.Fatal("expected default redis addr")
	}
}

func TestNormalizeRejectsUnknownBackend(t *testing.T) {
	cfg := &Config{Backend: "etcd"}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
