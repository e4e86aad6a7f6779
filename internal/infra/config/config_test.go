package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Tools.MaxConcurrency != 4 {
		t.Errorf("expected default max_concurrency 4, got %d", cfg.Tools.MaxConcurrency)
	}
	if cfg.Tools.CallTimeout.Std() != 30*time.Second {
		t.Errorf("expected default call_timeout 30s, got %v", cfg.Tools.CallTimeout)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("expected default provider ollama, got %q", cfg.LLM.Provider)
	}
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Fatalf("missing file should not fail Load: %v", err)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buster.yaml")
	content := `
server:
  port: 9090
tools:
  max_concurrency: 2
  call_timeout: 5s
llm:
  chat_model: qwen2.5:7b
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Tools.MaxConcurrency != 2 {
		t.Errorf("expected max_concurrency 2, got %d", cfg.Tools.MaxConcurrency)
	}
	if cfg.Tools.CallTimeout.Std() != 5*time.Second {
		t.Errorf("expected call_timeout 5s, got %v", cfg.Tools.CallTimeout)
	}
	if cfg.LLM.ChatModel != "qwen2.5:7b" {
		t.Errorf("expected chat_model override, got %q", cfg.LLM.ChatModel)
	}
	// Unset fields keep defaults.
	if cfg.DB.Path != "buster.db" {
		t.Errorf("expected default db path, got %q", cfg.DB.Path)
	}
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [not: a mapping"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error for malformed YAML")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BUSTER_PORT", "7070")
	t.Setenv("LLM_CHAT_MODEL", "llama3.1:8b")
	t.Setenv("BUSTER_DB_PATH", "/tmp/override.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("expected env port 7070, got %d", cfg.Server.Port)
	}
	if cfg.LLM.ChatModel != "llama3.1:8b" {
		t.Errorf("expected env chat model, got %q", cfg.LLM.ChatModel)
	}
	if cfg.DB.Path != "/tmp/override.db" {
		t.Errorf("expected env db path, got %q", cfg.DB.Path)
	}
}

func TestLoad_ClampsBadBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buster.yaml")
	content := `
server:
  port: -1
tools:
  max_concurrency: 0
  call_timeout: -3s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	def := Default()
	if cfg.Tools.MaxConcurrency != def.Tools.MaxConcurrency {
		t.Errorf("zero max_concurrency should clamp to default, got %d", cfg.Tools.MaxConcurrency)
	}
	if cfg.Tools.CallTimeout != def.Tools.CallTimeout {
		t.Errorf("negative call_timeout should clamp to default, got %v", cfg.Tools.CallTimeout)
	}
	if cfg.Server.Port != def.Server.Port {
		t.Errorf("invalid port should clamp to default, got %d", cfg.Server.Port)
	}
}
