package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file not written: %v", err)
	}
	if cfg.General.MaxTurns != 20 {
		t.Errorf("MaxTurns = %d, want 20", cfg.General.MaxTurns)
	}
	if _, err := cfg.Model(cfg.General.DefaultModel); err != nil {
		t.Errorf("default model not resolvable: %v", err)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[general]
max_turns = 5

[models.custom]
id = "my/model"
base_url = "http://localhost:9999/v1/chat/completions"
context_size = 8000
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.General.MaxTurns != 5 {
		t.Errorf("MaxTurns = %d, want 5", cfg.General.MaxTurns)
	}
	// Defaults the file does not mention survive.
	if cfg.General.SessionCompactionStrategy != "summaries" {
		t.Errorf("strategy = %q, want summaries", cfg.General.SessionCompactionStrategy)
	}
	m, err := cfg.Model("custom")
	if err != nil {
		t.Fatalf("Model(custom): %v", err)
	}
	if m.Alias != "custom" || m.ID != "my/model" {
		t.Errorf("model = %+v", m)
	}
	if _, err := cfg.Model("gf"); err != nil {
		t.Errorf("built-in model lost in merge: %v", err)
	}
}

func TestLoadRejectsBadStrategy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[general]
session_compaction_strategy = "telepathy"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for bad compaction strategy")
	}
}

func TestResolveDBPath(t *testing.T) {
	cfg := Default()
	cfg.General.DBPathEnvVar = "ASKY_TEST_DB_PATH"

	t.Setenv("ASKY_TEST_DB_PATH", "/tmp/env.db")
	if got := cfg.ResolveDBPath(); got != "/tmp/env.db" {
		t.Errorf("env path = %q", got)
	}

	t.Setenv("ASKY_TEST_DB_PATH", "")
	cfg.General.DBPath = "/tmp/configured.db"
	if got := cfg.ResolveDBPath(); got != "/tmp/configured.db" {
		t.Errorf("configured path = %q", got)
	}

	cfg.General.DBPath = ""
	if got := cfg.ResolveDBPath(); filepath.Base(got) != "history.db" {
		t.Errorf("fallback path = %q", got)
	}
}

func TestResolveAPIKey(t *testing.T) {
	m := Model{APIKey: "literal"}
	if key, err := m.ResolveAPIKey(); err != nil || key != "literal" {
		t.Errorf("literal key: %q, %v", key, err)
	}

	m = Model{APIKeyEnv: "ASKY_TEST_API_KEY"}
	t.Setenv("ASKY_TEST_API_KEY", "from-env")
	if key, err := m.ResolveAPIKey(); err != nil || key != "from-env" {
		t.Errorf("env key: %q, %v", key, err)
	}

	t.Setenv("ASKY_TEST_API_KEY", "")
	if _, err := m.ResolveAPIKey(); err == nil {
		t.Error("expected error for unset api_key_env")
	}

	m = Model{}
	if key, err := m.ResolveAPIKey(); err != nil || key != "" {
		t.Errorf("no key configured: %q, %v", key, err)
	}
}
