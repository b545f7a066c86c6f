package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedactsCredentialKeys(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}
	l.Info("llm call", "api_key", "sk-123", "tokens_used", 42, "jwt_secret", "s")
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["api_key"] != "[REDACTED]" || fields["jwt_secret"] != "[REDACTED]" {
		t.Fatalf("credentials leaked: %v", fields)
	}
	if fields["tokens_used"] != int64(42) {
		t.Fatalf("token counts must stay visible: %v", fields["tokens_used"])
	}
}

func TestWithKeepsContext(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := (&Logger{SugaredLogger: zap.New(core).Sugar()}).With("proyecto_id", 7)
	l.Warn("fallback specialty")
	if got := logs.All()[0].ContextMap()["proyecto_id"]; got != int64(7) {
		t.Fatalf("context lost: %v", got)
	}
}

func TestNopAndDanglingKey(t *testing.T) {
	Nop().Error("ignored", "dangling")
}
