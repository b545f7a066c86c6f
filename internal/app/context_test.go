package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"conecta/internal/config"
	"conecta/internal/llm"
)

func TestNewLLMSelectsProvider(t *testing.T) {
	cfg := config.Default().LLM
	cfg.Provider = "echo"
	client, err := NewLLM(cfg)
	if err != nil {
		t.Fatalf("echo: %v", err)
	}
	if _, ok := client.(llm.Echo); !ok {
		t.Fatalf("expected echo client, got %T", client)
	}

	cfg.Provider = "openai"
	cfg.APIKeyEnv = "CONECTA_TEST_MISSING_KEY"
	if _, err := NewLLM(cfg); err == nil {
		t.Fatalf("expected missing key error")
	}
	t.Setenv("CONECTA_TEST_MISSING_KEY", "sk-test")
	if _, err := NewLLM(cfg); err != nil {
		t.Fatalf("openai with key: %v", err)
	}
}

func TestOpenWithoutKeyDegrades(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "custom.yml")
	body := "llm:\n  api_key_env: CONECTA_TEST_NO_SUCH_KEY\nlog:\n  mode: prod\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(Options{Workspace: dir, ConfigPath: cfgPath, RequireLLM: true}); err == nil {
		t.Fatalf("expected provider error when the model is required")
	}
	rt, err := Open(Options{Workspace: dir, ConfigPath: cfgPath})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	if _, err := rt.Engine.StartAnalysis(context.Background(), 1, "Necesito una tienda"); err == nil {
		t.Fatalf("expected the unavailable client to fail the call")
	}
	vendors, err := rt.Engine.ListVendors(context.Background())
	if err != nil || len(vendors) != 0 {
		t.Fatalf("storage should work offline: %v %v", err, vendors)
	}
}

func TestOpenProviderOverride(t *testing.T) {
	dir := t.TempDir()
	rt, err := Open(Options{Workspace: dir, Provider: "echo", RequireLLM: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	res, err := rt.Engine.StartAnalysis(context.Background(), 1, "Necesito una tienda")
	if err != nil || res.Reply == "" {
		t.Fatalf("echo start: %v %+v", err, res)
	}
	if _, err := Open(Options{Workspace: dir, Provider: "carrier-pigeon"}); err == nil {
		t.Fatalf("expected invalid provider")
	}
}
