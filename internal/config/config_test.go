package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault_HasGeneralSource(t *testing.T) {
	cfg := Default()
	if !cfg.KnownSource(GeneralSource) {
		t.Error("default config should include the GENERAL source")
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("expected default top_k 5, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.HistoryLimit != 10 {
		t.Errorf("expected default history_limit 10, got %d", cfg.Retrieval.HistoryLimit)
	}
}

func TestSourceKeys_Deterministic(t *testing.T) {
	cfg := Default()
	first := cfg.SourceKeys()
	for i := 0; i < 10; i++ {
		got := cfg.SourceKeys()
		if len(got) != len(first) {
			t.Fatalf("key count changed: %v vs %v", got, first)
		}
		for j := range got {
			if got[j] != first[j] {
				t.Fatalf("key order changed: %v vs %v", got, first)
			}
		}
	}
	for i := 1; i < len(first); i++ {
		if first[i-1] >= first[i] {
			t.Errorf("keys not sorted: %v", first)
		}
	}
}

func TestValidate_Warnings(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
		want string
	}{
		{"missing_api_key", func(c *Config) { c.LLM.APIKey = "" }, "api_key"},
		{"bad_top_k", func(c *Config) { c.Retrieval.TopK = 0 }, "top_k"},
		{"overlap_too_big", func(c *Config) { c.Retrieval.ChunkOverlap = c.Retrieval.ChunkSize }, "chunk_overlap"},
		{"bad_dimension", func(c *Config) { c.Vector.Dimension = -1 }, "dimension"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.LLM.APIKey = "key"
			tt.mut(cfg)
			found := false
			for _, w := range cfg.Validate() {
				if strings.Contains(w, tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected warning mentioning %q, got %v", tt.want, cfg.Validate())
			}
		})
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ragline.yaml")
	data := `
llm:
  provider: openai
  api_key: test-key
retrieval:
  top_k: 3
  sources:
    CODES: Electrical Codes
vector:
  backend: qdrant
  dimension: 1536
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected provider openai, got %q", cfg.LLM.Provider)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("expected top_k 3, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Vector.Dimension != 1536 {
		t.Errorf("expected dimension 1536, got %d", cfg.Vector.Dimension)
	}
	if !cfg.KnownSource("CODES") {
		t.Error("expected CODES source to be known")
	}
	// GENERAL is always re-added even when the file narrows the source set.
	if !cfg.KnownSource(GeneralSource) {
		t.Error("expected GENERAL source to be present after load")
	}
	// Unset file sections keep defaults.
	if cfg.Server.Addr != ":8000" {
		t.Errorf("expected default server addr, got %q", cfg.Server.Addr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
