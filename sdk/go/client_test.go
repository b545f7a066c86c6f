package conectasdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientCallsEndpoints(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.RequestURI())
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/chat-analisis/iniciar":
			if body["cliente_id"] != float64(7) {
				t.Errorf("cliente_id = %v", body["cliente_id"])
			}
			_, _ = w.Write([]byte(`{"exito":true,"proyecto_id":3,"respuesta_ia":"hola","finalizado":false}`))
		case "/api/subtareas/disponibles":
			_, _ = w.Write([]byte(`{"exito":true,"total":1,"subtareas":[{"id":9,"codigo":"ST-001","estado":"PENDIENTE"}]}`))
		case "/api/solicitudes/4/responder":
			if body["accion"] != "ACEPTAR" {
				t.Errorf("accion = %v", body["accion"])
			}
			_, _ = w.Write([]byte(`{"exito":true,"mensaje":"ok","solicitud":{"id":4,"estado":"ACEPTADA"},"subtarea":{"id":9,"estado":"ASIGNADA"},"solicitudes_rechazadas":2}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"exito":false,"error":{"code":"not_found","message":"proyecto 99 not found"}}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL + "/api/")
	c.BearerToken = "tok"
	ctx := context.Background()

	a, err := c.StartAnalysis(ctx, 7, "Necesito una tienda")
	if err != nil || a.ProjectID != 3 || a.Reply != "hola" {
		t.Fatalf("start: %+v %v", a, err)
	}
	items, err := c.Available(ctx, "Hosting", "")
	if err != nil || len(items) != 1 || items[0].Code != "ST-001" {
		t.Fatalf("available: %+v %v", items, err)
	}
	res, err := c.RespondRequest(ctx, 4, "ACEPTAR", "")
	if err != nil || res.Subtask.Status != "ASIGNADA" || res.AutoRejected != 2 {
		t.Fatalf("respond: %+v %v", res, err)
	}
	_, err = c.Publish(ctx, 99)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "not_found" {
		t.Fatalf("expected not_found api error, got %v", err)
	}
	if seen[1] != "GET /api/subtareas/disponibles?especialidad=Hosting" {
		t.Fatalf("unexpected query: %v", seen)
	}
}
