package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestInitializeUsesBuiltinDefaultsWhenNoFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Initialize(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Research.DefaultMaxIterations != 3 {
		t.Fatalf("expected built-in default of 3, got %d", cfg.Research.DefaultMaxIterations)
	}
}

func TestInitializeMergesUserOverrides(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
research:
  default_max_iterations: 5
llm:
  model: "gpt-4o"
  base_url: "https://example.test/v1"
`
	if err := os.WriteFile(filepath.Join(dir, "deepresearch.yaml"), []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Initialize(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Research.DefaultMaxIterations != 5 {
		t.Fatalf("expected overridden max_iterations=5, got %d", cfg.Research.DefaultMaxIterations)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Fatalf("expected overridden model, got %s", cfg.LLM.Model)
	}
	// untouched defaults should survive the merge
	if cfg.Sandbox.MaxRetries != 3 {
		t.Fatalf("expected untouched sandbox default to survive merge, got %d", cfg.Sandbox.MaxRetries)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("DR_TEST_VAR", "resolved")
	out := expandEnv("value: ${DR_TEST_VAR}")
	if out != "value: resolved" {
		t.Fatalf("expected env var expansion, got %q", out)
	}
	out = expandEnv("value: ${DR_TEST_UNSET_VAR}")
	if out != "value: ${DR_TEST_UNSET_VAR}" {
		t.Fatalf("expected unset var left untouched, got %q", out)
	}
}
