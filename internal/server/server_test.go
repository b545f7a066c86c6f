package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"conecta/internal/config"
	"conecta/internal/db"
	"conecta/internal/engine"
	"conecta/internal/llm/llmtest"
	"conecta/internal/metrics"
	"conecta/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	LLM    *llmtest.Scripted
	client *http.Client
}

func newTestServer(t *testing.T, auth AuthConfig) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	script := llmtest.New()
	e := engine.New(conn, config.Default(), script)
	e.Metrics = metrics.New()
	handler, err := New(Config{Engine: e, BasePath: "/api", Auth: auth})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		conn.Close()
	})
	return &testServer{URL: srv.URL, Engine: e, LLM: script, client: srv.Client()}
}

func doJSON(t *testing.T, s *testServer, method, path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	out := map[string]any{}
	if len(data) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
	}
	return resp, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func bearer(t *testing.T, role string, id int64) map[string]string {
	t.Helper()
	token, err := SignToken(testSecret, role, id, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

const decomposition = `{
  "finalizado": true,
  "proyecto": {
    "titulo": "Tienda online",
    "descripcion_completa": "Catálogo y pagos.",
    "presupuesto_estimado": 3000,
    "tiempo_estimado_dias": 30,
    "subtareas": [
      {"codigo": "TASK-001", "titulo": "Catálogo", "especialidad": "DESARROLLO_MEDIDA", "prioridad": "ALTA"},
      {"codigo": "TASK-002", "titulo": "Servidor", "especialidad": "HOSTING", "dependencias": ["TASK-001"]}
    ]
  }
}`

// publishedOverHTTP runs iniciar, continuar and publicar and returns the project id.
func publishedOverHTTP(t *testing.T, s *testServer, headers map[string]string) int64 {
	t.Helper()
	s.LLM.Push(llmtest.Reply("¿Qué productos venderás?"), llmtest.Reply(decomposition))
	resp, body := doJSON(t, s, http.MethodPost, "/api/chat-analisis/iniciar", map[string]any{"cliente_id": 1, "mensaje": "Necesito una tienda online"}, headers)
	if resp.StatusCode != http.StatusOK || body["exito"] != true || body["finalizado"] != false {
		t.Fatalf("iniciar: %d %v", resp.StatusCode, body)
	}
	projectID := int64(body["proyecto_id"].(float64))
	resp, body = doJSON(t, s, http.MethodPost, "/api/chat-analisis/continuar", map[string]any{"proyecto_id": projectID, "mensaje": "Ropa"}, headers)
	if resp.StatusCode != http.StatusOK || body["finalizado"] != true {
		t.Fatalf("continuar: %d %v", resp.StatusCode, body)
	}
	if subs, _ := body["subtareas"].([]any); len(subs) != 2 {
		t.Fatalf("expected 2 sub-tasks, got %v", body["subtareas"])
	}
	if !strings.Contains(fmt.Sprint(body["resumen"]), "Tienda online") {
		t.Fatalf("summary missing title: %v", body["resumen"])
	}
	resp, body = doJSON(t, s, http.MethodPost, "/api/chat-analisis/publicar", map[string]any{"proyecto_id": projectID}, headers)
	if resp.StatusCode != http.StatusOK || body["subtareas_publicadas"] != float64(2) {
		t.Fatalf("publicar: %d %v", resp.StatusCode, body)
	}
	return projectID
}

func TestHealthAndSpecialties(t *testing.T) {
	s := newTestServer(t, AuthConfig{})
	resp, body := doJSON(t, s, http.MethodGet, "/api/health", nil, nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health: %d %v", resp.StatusCode, body)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatalf("missing request id header")
	}
	resp, body = doJSON(t, s, http.MethodGet, "/api/chat-analisis/especialidades", nil, map[string]string{requestIDHeader: "abc"})
	if resp.StatusCode != http.StatusOK || resp.Header.Get(requestIDHeader) != "abc" {
		t.Fatalf("especialidades: %d %v", resp.StatusCode, resp.Header)
	}
	if list, _ := body["especialidades"].([]any); len(list) == 0 {
		t.Fatalf("empty catalog: %v", body)
	}
}

func TestAnalysisAndMarketplaceFlow(t *testing.T) {
	s := newTestServer(t, AuthConfig{})
	projectID := publishedOverHTTP(t, s, nil)

	resp, body := doJSON(t, s, http.MethodGet, "/api/subtareas/disponibles?especialidad=hosting", nil, nil)
	if resp.StatusCode != http.StatusOK || body["total"] != float64(1) {
		t.Fatalf("disponibles: %d %v", resp.StatusCode, body)
	}
	hosting := body["subtareas"].([]any)[0].(map[string]any)
	subtaskID := int64(hosting["id"].(float64))
	if hosting["codigo"] != fmt.Sprintf("P%d-TASK-002", projectID) {
		t.Fatalf("unexpected code %v", hosting["codigo"])
	}

	a, err := s.Engine.RegisterVendor(context.Background(), "Ana", "ana@example.com", []string{"HOSTING"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Engine.RegisterVendor(context.Background(), "Beto", "beto@example.com", []string{"HOSTING"})
	if err != nil {
		t.Fatal(err)
	}
	send := func(vendorID int64) (*http.Response, map[string]any) {
		return doJSON(t, s, http.MethodPost, "/api/solicitudes/enviar", map[string]any{"subtarea_id": subtaskID, "vendedor_id": vendorID, "mensaje": "Tengo experiencia"}, nil)
	}
	resp, body = send(a.ID)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("enviar: %d %v", resp.StatusCode, body)
	}
	requestA := int64(body["solicitud"].(map[string]any)["id"].(float64))
	if resp, body = send(a.ID); resp.StatusCode != http.StatusConflict || errorCode(body) != "duplicate_request" {
		t.Fatalf("duplicate: %d %v", resp.StatusCode, body)
	}
	if resp, body = send(b.ID); resp.StatusCode != http.StatusCreated {
		t.Fatalf("second vendor: %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/solicitudes/proyecto/%d", projectID), nil, nil)
	if resp.StatusCode != http.StatusOK || body["total"] != float64(2) {
		t.Fatalf("pending list: %d %v", resp.StatusCode, body)
	}

	respond := fmt.Sprintf("/api/solicitudes/%d/responder", requestA)
	if resp, body = doJSON(t, s, http.MethodPut, respond, map[string]any{"accion": "QUIZAS"}, nil); resp.StatusCode != http.StatusBadRequest || errorCode(body) != "invalid_action" {
		t.Fatalf("invalid action: %d %v", resp.StatusCode, body)
	}
	resp, body = doJSON(t, s, http.MethodPut, respond, map[string]any{"accion": "aceptar"}, nil)
	if resp.StatusCode != http.StatusOK || body["solicitudes_rechazadas"] != float64(1) {
		t.Fatalf("accept: %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, s, http.MethodPost, "/api/subtareas/aceptar", map[string]any{"subtarea_id": subtaskID, "vendedor_id": b.ID}, nil)
	if resp.StatusCode != http.StatusConflict || errorCode(body) != "no_longer_available" {
		t.Fatalf("late accept: %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, s, http.MethodPut, "/api/subtareas/actualizar-progreso", map[string]any{"subtarea_id": subtaskID, "vendedor_id": a.ID, "estado": "EN_PROGRESO", "notas": "Arrancando"}, nil)
	if resp.StatusCode != http.StatusOK || body["subtarea"].(map[string]any)["estado"] != "EN_PROGRESO" {
		t.Fatalf("progress: %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/subtareas/proyecto/%d", projectID), nil, nil)
	if resp.StatusCode != http.StatusOK || body["proyecto"].(map[string]any)["fase"] != "EN_PROGRESO" {
		t.Fatalf("board: %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/proyectos/%d/eventos?limit=2", projectID), nil, nil)
	if resp.StatusCode != http.StatusOK || body["next_cursor"] == nil {
		t.Fatalf("events page: %d %v", resp.StatusCode, body)
	}
	if events, _ := body["eventos"].([]any); len(events) != 2 {
		t.Fatalf("expected 2 events, got %v", body["eventos"])
	}
}

func TestErrorEnvelope(t *testing.T) {
	s := newTestServer(t, AuthConfig{})

	resp, body := doJSON(t, s, http.MethodPost, "/api/chat-analisis/continuar", map[string]any{"proyecto_id": 999, "mensaje": "hola"}, nil)
	if resp.StatusCode != http.StatusNotFound || body["exito"] != false || errorCode(body) != "not_found" {
		t.Fatalf("not found: %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, s, http.MethodPost, "/api/chat-analisis/iniciar", map[string]any{"cliente_id": 1}, nil)
	if resp.StatusCode != http.StatusBadRequest || errorCode(body) != "bad_request" {
		t.Fatalf("validation: %d %v", resp.StatusCode, body)
	}

	s.LLM.Push(llmtest.Fail(errors.New("upstream 500: secret detail")))
	resp, body = doJSON(t, s, http.MethodPost, "/api/chat-analisis/iniciar", map[string]any{"cliente_id": 1, "mensaje": "hola"}, nil)
	if resp.StatusCode != http.StatusBadGateway || errorCode(body) != "external_service_error" {
		t.Fatalf("llm failure: %d %v", resp.StatusCode, body)
	}
	if strings.Contains(fmt.Sprint(body), "secret detail") {
		t.Fatalf("upstream detail leaked: %v", body)
	}

	projectID := publishedOverHTTP(t, s, nil)
	resp, body = doJSON(t, s, http.MethodPost, "/api/chat-analisis/publicar", map[string]any{"proyecto_id": projectID}, nil)
	if resp.StatusCode != http.StatusConflict || errorCode(body) != "invalid_state" {
		t.Fatalf("publish twice: %d %v", resp.StatusCode, body)
	}
}

func TestAuthRequiresMatchingPrincipal(t *testing.T) {
	s := newTestServer(t, AuthConfig{JWTSecret: testSecret})

	if resp, _ := doJSON(t, s, http.MethodGet, "/api/health", nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("health must stay public: %d", resp.StatusCode)
	}
	if resp, _ := doJSON(t, s, http.MethodGet, "/api/chat-analisis/especialidades", nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("catalog must stay public: %d", resp.StatusCode)
	}
	resp, body := doJSON(t, s, http.MethodGet, "/api/subtareas/disponibles", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized || errorCode(body) != "unauthorized" {
		t.Fatalf("missing token: %d %v", resp.StatusCode, body)
	}
	resp, body = doJSON(t, s, http.MethodGet, "/api/subtareas/disponibles", nil, map[string]string{"Authorization": "Bearer nope"})
	if resp.StatusCode != http.StatusUnauthorized || errorCode(body) != "invalid_credentials" {
		t.Fatalf("bad token: %d %v", resp.StatusCode, body)
	}

	client := bearer(t, RoleClient, 1)
	projectID := publishedOverHTTP(t, s, client)

	resp, body = doJSON(t, s, http.MethodPost, "/api/chat-analisis/iniciar", map[string]any{"cliente_id": 2, "mensaje": "hola"}, client)
	if resp.StatusCode != http.StatusForbidden || errorCode(body) != "forbidden" {
		t.Fatalf("client impersonation: %d %v", resp.StatusCode, body)
	}
	other := bearer(t, RoleClient, 2)
	if resp, _ = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/chat-analisis/historial/%d", projectID), nil, other); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign history: %d", resp.StatusCode)
	}
	resp, body = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/chat-analisis/historial/%d", projectID), nil, client)
	if resp.StatusCode != http.StatusOK || body["total_mensajes"] != float64(4) {
		t.Fatalf("own history: %d %v", resp.StatusCode, body)
	}

	v, err := s.Engine.RegisterVendor(context.Background(), "Ana", "ana@example.com", []string{"HOSTING"})
	if err != nil {
		t.Fatal(err)
	}
	path := fmt.Sprintf("/api/subtareas/mis-subtareas/%d", v.ID)
	if resp, _ = doJSON(t, s, http.MethodGet, path, nil, bearer(t, RoleVendor, v.ID+1)); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("other vendor: %d", resp.StatusCode)
	}
	if resp, _ = doJSON(t, s, http.MethodGet, path, nil, client); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("client on vendor route: %d", resp.StatusCode)
	}
	if resp, body = doJSON(t, s, http.MethodGet, path, nil, bearer(t, RoleVendor, v.ID)); resp.StatusCode != http.StatusOK || body["total"] != float64(0) {
		t.Fatalf("own sub-tasks: %d %v", resp.StatusCode, body)
	}
}

func TestMetricsAndOpenAPI(t *testing.T) {
	s := newTestServer(t, AuthConfig{})
	doJSON(t, s, http.MethodGet, "/api/health", nil, nil)

	resp, err := s.client.Get(s.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(data), `conecta_http_requests_total{method="GET",route="/api/health",status="200"}`) {
		t.Fatalf("http counter missing:\n%s", data)
	}

	resp, body := doJSON(t, s, http.MethodGet, "/api/openapi.json", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("openapi: %d", resp.StatusCode)
	}
	paths, _ := body["paths"].(map[string]any)
	for _, p := range []string{"/api/chat-analisis/iniciar", "/api/subtareas/{subtarea_id}", "/api/solicitudes/{solicitud_id}/responder"} {
		if _, ok := paths[p]; !ok {
			t.Fatalf("openapi missing %s", p)
		}
	}
}

func TestOpenAPIConcurrentFirstFetch(t *testing.T) {
	s := newTestServer(t, AuthConfig{JWTSecret: testSecret})
	var wg sync.WaitGroup
	bodies := make([]string, 8)
	for i := range bodies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := s.client.Get(s.URL + "/api/openapi.json")
			if err != nil {
				t.Error(err)
				return
			}
			defer resp.Body.Close()
			data, _ := io.ReadAll(resp.Body)
			bodies[i] = string(data)
		}(i)
	}
	wg.Wait()
	for i, b := range bodies {
		if b != bodies[0] || !strings.Contains(b, "bearerAuth") {
			t.Fatalf("response %d differs or lacks security scheme", i)
		}
	}
}
