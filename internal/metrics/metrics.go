// Package metrics exposes Prometheus counters for the marketplace workflow.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	// AnalysisTurns counts continuar outcomes: continuing, terminal, malformed.
	AnalysisTurns *prometheus.CounterVec
	// LLMRequests counts completion calls by result (ok, error).
	LLMRequests *prometheus.CounterVec
	// LLMTokens accumulates the tokens reported by the provider.
	LLMTokens prometheus.Counter
	// Assignments counts sub-task assignments by path (request, self).
	Assignments *prometheus.CounterVec
	// WorkRequests counts request events: sent, accepted, rejected, auto_rejected.
	WorkRequests *prometheus.CounterVec
	// ProjectPhases counts phase transitions by target phase.
	ProjectPhases *prometheus.CounterVec
	// HTTPRequests counts API requests by method, route pattern and status.
	HTTPRequests *prometheus.CounterVec
}

// New registers every collector on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		AnalysisTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conecta_analysis_turns_total",
			Help: "Analysis conversation turns by outcome",
		}, []string{"outcome"}),
		LLMRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conecta_llm_requests_total",
			Help: "LLM completion requests by result",
		}, []string{"result"}),
		LLMTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conecta_llm_tokens_total",
			Help: "Tokens consumed by LLM completions",
		}),
		Assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conecta_subtask_assignments_total",
			Help: "Sub-task assignments by path",
		}, []string{"path"}),
		WorkRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conecta_work_requests_total",
			Help: "Work request events",
		}, []string{"event"}),
		ProjectPhases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conecta_projects_phase_total",
			Help: "Project phase transitions by target phase",
		}, []string{"phase"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conecta_http_requests_total",
			Help: "HTTP API requests by method, route and status",
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.AnalysisTurns, m.LLMRequests, m.LLMTokens, m.Assignments, m.WorkRequests, m.ProjectPhases, m.HTTPRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AnalysisTurn(outcome string) {
	if m == nil {
		return
	}
	m.AnalysisTurns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LLMCall(err error, tokens int) {
	if m == nil {
		return
	}
	if err != nil {
		m.LLMRequests.WithLabelValues("error").Inc()
		return
	}
	m.LLMRequests.WithLabelValues("ok").Inc()
	if tokens > 0 {
		m.LLMTokens.Add(float64(tokens))
	}
}

func (m *Metrics) Assigned(path string) {
	if m == nil {
		return
	}
	m.Assignments.WithLabelValues(path).Inc()
}

func (m *Metrics) WorkRequest(event string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.WorkRequests.WithLabelValues(event).Add(float64(n))
}

func (m *Metrics) Phase(phase string) {
	if m == nil {
		return
	}
	m.ProjectPhases.WithLabelValues(phase).Inc()
}

func (m *Metrics) HTTPRequest(method, route string, status int) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
