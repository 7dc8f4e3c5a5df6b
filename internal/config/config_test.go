package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: "9090"
store:
  backend: redis
redis:
  addr: localhost:6379
  ttl: 5m
session:
  duration: 60
  tick: 500ms
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("STORE_BACKEND", "bolt")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port from yaml, got %q", cfg.Server.Port)
	}
	if cfg.Store.Backend != BackendBolt {
		t.Fatalf("expected env to override backend, got %q", cfg.Store.Backend)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Fatalf("unexpected log config %+v", cfg.Log)
	}
	if cfg.Session.Duration != 60 || TTLDuration(cfg.Session.Tick, time.Second) != 500*time.Millisecond {
		t.Fatalf("unexpected session config %+v", cfg.Session)
	}
	if TTLDuration(cfg.Redis.TTL, time.Minute) != 5*time.Minute {
		t.Fatalf("unexpected redis ttl %q", cfg.Redis.TTL)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Backend != BackendMemory || cfg.Session.Duration != 120 || cfg.Leaderboard.Top != 5 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("empty: got %v", got)
	}
	if got := TTLDuration("bogus", time.Minute); got != time.Minute {
		t.Fatalf("invalid: got %v", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("valid: got %v", got)
	}
}
