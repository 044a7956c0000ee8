package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Log.Format != "auto" {
		t.Errorf("Log.Format = %q, want auto", cfg.Log.Format)
	}
	if cfg.Worker.PollInterval != 5*time.Second {
		t.Errorf("Worker.PollInterval = %v, want 5s", cfg.Worker.PollInterval)
	}
	if cfg.Worker.ToolTimeout != 5*time.Minute {
		t.Errorf("Worker.ToolTimeout = %v, want 5m", cfg.Worker.ToolTimeout)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.OpenAI.Model != "gpt-3.5-turbo" {
		t.Errorf("OpenAI.Model = %q, want gpt-3.5-turbo", cfg.OpenAI.Model)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("WORKBENCH_WORKER_POLL_INTERVAL", "500ms")
	t.Setenv("WORKBENCH_GITHUB_TOKEN", "ghp_test")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Worker.PollInterval != 500*time.Millisecond {
		t.Errorf("Worker.PollInterval = %v, want 500ms", cfg.Worker.PollInterval)
	}
	if cfg.GitHub.Token != "ghp_test" {
		t.Errorf("GitHub.Token = %q, want ghp_test", cfg.GitHub.Token)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
log:
  level: debug
store:
  path: /tmp/wb.db
worker:
  poll_interval: 2s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := NewLoader().WithConfigFile(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Store.Path != "/tmp/wb.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Worker.PollInterval != 2*time.Second {
		t.Errorf("Worker.PollInterval = %v, want 2s", cfg.Worker.PollInterval)
	}
}

func TestLoadMalformedConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("log: [unclosed"), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	if _, err := NewLoader().WithConfigFile(path).Load(); err == nil {
		t.Error("expected error for malformed config file")
	}
}
