package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Analysis.StrictJSONAfterTurns != 6 || cfg.Analysis.DefaultEstimateHours != 40 {
		t.Fatalf("unexpected analysis defaults: %+v", cfg.Analysis)
	}
	if cfg.LLM.Model != "gpt-4o-mini" || cfg.LLM.MaxTokens != 1500 {
		t.Fatalf("unexpected llm defaults: %+v", cfg.LLM)
	}
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("analysis:\n  strict_json_after_turns: 8\nllm:\n  provider: echo\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Analysis.StrictJSONAfterTurns != 8 {
		t.Fatalf("override not applied")
	}
	if cfg.Analysis.FallbackSpecialty != "DESARROLLO_MEDIDA" {
		t.Fatalf("defaults lost: %q", cfg.Analysis.FallbackSpecialty)
	}
}

func TestValidateRejects(t *testing.T) {
	for name, body := range map[string]string{
		"low threshold":    "analysis:\n  strict_json_after_turns: 3\n",
		"unknown fallback": "analysis:\n  fallback_specialty: ASTROLOGIA\n",
		"zero estimate":    "analysis:\n  default_estimate_hours: 0\n",
		"bad base path":    "server:\n  base_path: api\n",
		"bad provider":     "llm:\n  provider: carrier-pigeon\n",
	} {
		if _, err := FromYAML([]byte(body)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.BasePath != "/api" {
		t.Fatalf("base path %q", cfg.Server.BasePath)
	}
	if err := os.WriteFile(filepath.Join(dir, "conecta.yml"), []byte("server:\n  base_path: /v1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(dir)
	if err != nil || cfg.Server.BasePath != "/v1" {
		t.Fatalf("load file: %v %+v", err, cfg.Server)
	}
}
