package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Safety.Tier != TierRestricted {
		t.Errorf("expected default safety tier restricted, got %s", cfg.Safety.Tier)
	}
	if cfg.Reasoning.MaxToolDepth == 0 {
		t.Error("expected default max tool depth to be set")
	}
}

func TestLoadOverlaysYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mneme.yaml")
	yamlContent := `
llm:
  provider: anthropic
  base_temperature: 0.5
safety:
  tier: full
reasoning:
  max_tool_depth: 2
`
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("expected provider anthropic, got %s", cfg.LLM.Provider)
	}
	if cfg.Safety.Tier != TierFull {
		t.Errorf("expected tier full, got %s", cfg.Safety.Tier)
	}
	if cfg.Reasoning.MaxToolDepth != 2 {
		t.Errorf("expected max_tool_depth 2, got %d", cfg.Reasoning.MaxToolDepth)
	}
	// Fields untouched by the override file retain defaults.
	if cfg.Memory.RecallK != 8 {
		t.Errorf("expected default recall_k 8, got %d", cfg.Memory.RecallK)
	}
}

func TestValidateRejectsBadTier(t *testing.T) {
	cfg := Default()
	cfg.Safety.Tier = "dangerous"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for bad safety tier")
	}
}

func TestSecretsNeverFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mneme.yaml")
	// Even if a secret-looking key appeared in YAML, Config has no yaml tag
	// for Secrets, so it cannot be populated from the file.
	if err := os.WriteFile(path, []byte("secrets:\n  anthropic_api_key: leaked\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	os.Unsetenv("ANTHROPIC_API_KEY")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Secrets.AnthropicAPIKey == "leaked" {
		t.Error("secret must not be populated from YAML file")
	}
}
