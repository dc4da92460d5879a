package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenSeedFileMissing(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RELAY_SEED_FILE", filepath.Join(dir, "does-not-exist.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.RelaySeeds) == 0 {
		t.Fatal("expected built-in default relay seeds")
	}
}

func TestLoadRelaySeedsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relays.yaml")
	yamlContent := "relays:\n  - url: wss://relay.example.com\n    read: true\n    write: true\n"
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("RELAY_SEED_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.RelaySeeds) != 1 || cfg.RelaySeeds[0].URL != "wss://relay.example.com" {
		t.Fatalf("got %+v", cfg.RelaySeeds)
	}
}

func TestGetEnvBoolInvalidFallsBackToDefault(t *testing.T) {
	t.Setenv("GZIP_ENABLED", "maybe")
	if got := getEnvBool("GZIP_ENABLED", true); got != true {
		t.Fatalf("got %v, want true", got)
	}
}
