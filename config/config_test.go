package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.Workflow.DefaultK != 5 {
		t.Fatalf("expected default k 5, got %d", cfg.Workflow.DefaultK)
	}
	if cfg.Workflow.PerTaskLimit != 10 {
		t.Fatalf("expected per-task limit 10, got %d", cfg.Workflow.PerTaskLimit)
	}
	if cfg.Workflow.Retry.MaxRetries != 0 {
		t.Fatalf("retries must be off by default, got %d", cfg.Workflow.Retry.MaxRetries)
	}
	if cfg.Workflow.PlanningTimeout != 30*time.Second {
		t.Fatalf("unexpected planning timeout %v", cfg.Workflow.PlanningTimeout)
	}
	if cfg.LLM.Provider != "gemini" || cfg.LLM.Model == "" {
		t.Fatalf("unexpected llm defaults: %+v", cfg.LLM)
	}
	if cfg.Storage.Redis.Enabled {
		t.Fatalf("redis cache must be disabled by default")
	}
}

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bookrec.json")
	body := `{
  "workflow": {"default_k": 3, "per_task_limit": 20, "catalog_timeout": "2s"},
  "llm": {"provider": "openai", "model": "gpt-4o-mini"}
}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BOOKREC_WORKFLOW_CONCURRENCY", "4")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Workflow.DefaultK != 3 || cfg.Workflow.PerTaskLimit != 20 {
		t.Fatalf("file values not applied: %+v", cfg.Workflow)
	}
	if cfg.Workflow.CatalogTimeout != 2*time.Second {
		t.Fatalf("expected catalog timeout 2s, got %v", cfg.Workflow.CatalogTimeout)
	}
	if cfg.Workflow.Concurrency != 4 {
		t.Fatalf("env override not applied, concurrency=%d", cfg.Workflow.Concurrency)
	}
	if cfg.LLM.Provider != "openai" {
		t.Fatalf("expected openai provider, got %s", cfg.LLM.Provider)
	}
	if cfg.Workflow.MaxSubTasks != 5 {
		t.Fatalf("expected default max subtasks, got %d", cfg.Workflow.MaxSubTasks)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`{"workflow": {"per_task_limit": 100}}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error for per_task_limit > 40")
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestWorkflowNormalize(t *testing.T) {
	c := WorkflowConfig{Retry: RetryConfig{MaxRetries: -2}}.Normalize()
	if c.DefaultK != 5 || c.PerTaskLimit != 10 || c.MaxSubTasks != 5 || c.Concurrency != 1 {
		t.Fatalf("unexpected normalized workflow: %+v", c)
	}
	if c.Retry.MaxRetries != 0 {
		t.Fatalf("negative retries must clamp to zero")
	}
}

func TestRedisValidate(t *testing.T) {
	if err := (RedisConfig{}).Validate(); err != nil {
		t.Fatalf("disabled redis must validate: %v", err)
	}
	if err := (RedisConfig{Enabled: true, Host: "localhost", Port: "6379"}).Validate(); err == nil {
		t.Fatalf("expected error for missing cache ttl")
	}
	r := RedisConfig{Enabled: true, Host: "localhost", Port: "6379", CacheTTL: time.Minute}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Addr() != "localhost:6379" {
		t.Fatalf("unexpected addr %s", r.Addr())
	}
}
