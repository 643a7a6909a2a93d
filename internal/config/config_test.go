package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
tick_rate_hz: 10
auth:
  token_ttl: 90m
seed_tiles:
  - kind: Sign
    pos: [1, 64, -3]
    text: ["a", "b"]
    creator: alice
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TickRateHz != 10 {
		t.Fatalf("tick_rate_hz=%d", cfg.TickRateHz)
	}
	if cfg.ViewRadius != Defaults().ViewRadius || cfg.Auth.Issuer != "tilesync" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if cfg.Auth.TokenTTL != 90*time.Minute {
		t.Fatalf("token_ttl=%s", cfg.Auth.TokenTTL)
	}
	if len(cfg.SeedTiles) != 1 || cfg.SeedTiles[0].Pos != [3]int32{1, 64, -3} || cfg.SeedTiles[0].Creator != "alice" {
		t.Fatalf("seed_tiles=%+v", cfg.SeedTiles)
	}
}

func TestLoad_RepoConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "server.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.SeedTiles) == 0 {
		t.Fatalf("expected seed tiles in configs/server.yaml")
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := writeFile(t, `
tick_rate_hz: 0
view_radius: 99
log:
  format: xml
auth:
  admin_password_hash: hunter2
seed_tiles:
  - pos: [0, 0, 0]
`)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"tick_rate_hz", "view_radius", "log.format", "admin_password_hash", "seed_tiles[0]"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestLoad_SpawnBudgetBelowQueue(t *testing.T) {
	path := writeFile(t, `
max_queue: 32
spawn_budget: 32
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "spawn_budget") {
		t.Fatalf("err=%v want spawn_budget error", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeFile(t, "tick_rate_hz: [")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
