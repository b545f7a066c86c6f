package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestCounters(t *testing.T) {
	m := New()
	m.LLMCall(nil, 120)
	m.LLMCall(errors.New("boom"), 0)
	m.WorkRequest("auto_rejected", 2)
	m.Assigned("self")
	m.HTTPRequest(http.MethodGet, "/api/health", http.StatusOK)
	body := scrape(t, m)
	for _, want := range []string{
		"conecta_llm_tokens_total 120",
		`conecta_llm_requests_total{result="error"} 1`,
		`conecta_llm_requests_total{result="ok"} 1`,
		`conecta_work_requests_total{event="auto_rejected"} 2`,
		`conecta_subtask_assignments_total{path="self"} 1`,
		`conecta_http_requests_total{method="GET",route="/api/health",status="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in scrape:\n%s", want, body)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.AnalysisTurn("terminal")
	m.LLMCall(nil, 1)
	m.Phase("PUBLICADO")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
}
