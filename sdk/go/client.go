package conectasdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Conecta HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. baseURL includes the API base
// path, e.g. http://localhost:8080/api.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// Project represents the API project model (partial).
type Project struct {
	ID                int64  `json:"id"`
	ClientID          int64  `json:"cliente_id"`
	Title             string `json:"titulo"`
	Specialty         string `json:"especialidad"`
	Phase             string `json:"fase"`
	TotalSubtasks     int    `json:"total_subtareas"`
	CompletedSubtasks int    `json:"subtareas_completadas"`
	Progress          int    `json:"progreso"`
}

// Subtask represents the API sub-task model (partial).
type Subtask struct {
	ID            int64    `json:"id"`
	ProjectID     int64    `json:"proyecto_id"`
	Code          string   `json:"codigo"`
	Title         string   `json:"titulo"`
	Specialty     string   `json:"especialidad"`
	VendorID      *int64   `json:"vendedor_id,omitempty"`
	Status        string   `json:"estado"`
	Priority      string   `json:"prioridad"`
	EstimateHours int      `json:"estimacion_horas"`
	Dependencies  []string `json:"dependencias"`
}

// WorkRequest is a vendor's request to work on a sub-task.
type WorkRequest struct {
	ID           int64  `json:"id"`
	SubtaskID    int64  `json:"subtarea_id"`
	VendorID     int64  `json:"vendedor_id"`
	Status       string `json:"estado"`
	Message      string `json:"mensaje,omitempty"`
	RejectReason string `json:"motivo_rechazo,omitempty"`
}

// Analysis is the assistant's answer to a start or continue call.
type Analysis struct {
	ProjectID  int64     `json:"proyecto_id"`
	Reply      string    `json:"respuesta_ia"`
	Finished   bool      `json:"finalizado"`
	TokensUsed int       `json:"tokens_usados"`
	Project    *Project  `json:"proyecto,omitempty"`
	Subtasks   []Subtask `json:"subtareas,omitempty"`
	Summary    string    `json:"resumen,omitempty"`
}

// Published reports how many sub-tasks a publish opened.
type Published struct {
	Project   Project `json:"proyecto"`
	Published int     `json:"subtareas_publicadas"`
}

// Response is the outcome of answering a work request.
type Response struct {
	Message      string      `json:"mensaje"`
	Request      WorkRequest `json:"solicitud"`
	Subtask      Subtask     `json:"subtarea"`
	AutoRejected int64       `json:"solicitudes_rechazadas"`
	Pending      int         `json:"solicitudes_pendientes"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// StartAnalysis opens a requirements conversation for a new project.
func (c *Client) StartAnalysis(ctx context.Context, clientID int64, message string) (Analysis, error) {
	body := map[string]any{
		"cliente_id": clientID,
		"mensaje":    message,
	}
	var resp Analysis
	err := c.do(ctx, http.MethodPost, "chat-analisis/iniciar", body, &resp)
	return resp, err
}

// ContinueAnalysis sends the client's next message.
func (c *Client) ContinueAnalysis(ctx context.Context, projectID int64, message string) (Analysis, error) {
	body := map[string]any{
		"proyecto_id": projectID,
		"mensaje":     message,
	}
	var resp Analysis
	err := c.do(ctx, http.MethodPost, "chat-analisis/continuar", body, &resp)
	return resp, err
}

// Publish opens a decomposed project to vendors.
func (c *Client) Publish(ctx context.Context, projectID int64) (Published, error) {
	var resp Published
	err := c.do(ctx, http.MethodPost, "chat-analisis/publicar", map[string]any{"proyecto_id": projectID}, &resp)
	return resp, err
}

// Available lists open sub-tasks. Empty filters are omitted.
func (c *Client) Available(ctx context.Context, specialty, priority string) ([]Subtask, error) {
	q := url.Values{}
	if specialty != "" {
		q.Set("especialidad", specialty)
	}
	if priority != "" {
		q.Set("prioridad", priority)
	}
	endpoint := "subtareas/disponibles"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Subtasks []Subtask `json:"subtareas"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Subtasks, err
}

// SendRequest asks to work on an open sub-task.
func (c *Client) SendRequest(ctx context.Context, subtaskID, vendorID int64, message string) (WorkRequest, error) {
	body := map[string]any{
		"subtarea_id": subtaskID,
		"vendedor_id": vendorID,
		"mensaje":     message,
	}
	var resp struct {
		Request WorkRequest `json:"solicitud"`
	}
	err := c.do(ctx, http.MethodPost, "solicitudes/enviar", body, &resp)
	return resp.Request, err
}

// RespondRequest accepts or rejects a work request. action is ACEPTAR or RECHAZAR.
func (c *Client) RespondRequest(ctx context.Context, requestID int64, action, reason string) (Response, error) {
	body := map[string]any{"accion": action}
	if reason != "" {
		body["motivo_rechazo"] = reason
	}
	var resp Response
	endpoint := fmt.Sprintf("solicitudes/%d/responder", requestID)
	err := c.do(ctx, http.MethodPut, endpoint, body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
