package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loom/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[engine]
base_url = "http://localhost:9999/"
timeout_seconds = 5

[workflow]
queue_poll_interval = 1

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be detected")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Engine.BaseURL != "http://localhost:9999" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Engine.BaseURL)
	}
	if cfg.Engine.TimeoutSeconds != 5 {
		t.Fatalf("expected timeout 5, got %d", cfg.Engine.TimeoutSeconds)
	}
	if cfg.Workflow.QueuePollInterval != 1 {
		t.Fatalf("expected poll interval 1, got %d", cfg.Workflow.QueuePollInterval)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized log format, got %q", cfg.Logging.Format)
	}
	if cfg.Engine.ClientID == "" {
		t.Fatal("expected client id to be generated")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantSub string
	}{
		{
			name: "bad engine url",
			content: `
[engine]
base_url = "not a url"
`,
			wantSub: "engine.base_url",
		},
		{
			name: "zero poll interval",
			content: `
[workflow]
queue_poll_interval = 0
`,
			wantSub: "queue_poll_interval",
		},
		{
			name: "empty placeholder",
			content: `
[generation]
placeholder_image = ""
`,
			wantSub: "placeholder_image",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("expected error mentioning %q, got %v", tc.wantSub, err)
			}
		})
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = "/tmp/loom-test"
	if got := cfg.SocketPath(); got != "/tmp/loom-test/loomd.sock" {
		t.Fatalf("unexpected socket path %q", got)
	}
	if got := cfg.HistoryDBPath(); got != "/tmp/loom-test/history.db" {
		t.Fatalf("unexpected history db path %q", got)
	}
	if got := cfg.LockPath(); got != "/tmp/loom-test/loomd.lock" {
		t.Fatalf("unexpected lock path %q", got)
	}
}
