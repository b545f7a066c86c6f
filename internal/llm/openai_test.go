package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestOpenAI(t *testing.T, fn roundTripperFunc) *OpenAI {
	t.Helper()
	c, err := NewOpenAIWithHTTPClient(OpenAIConfig{
		BaseURL:     "http://example.test/",
		APIKey:      "sk-test",
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   1500,
	}, &http.Client{Transport: fn})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestCompleteSendsConversation(t *testing.T) {
	var got chatCompletionRequest
	c := newTestOpenAI(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1/chat/completions" {
			t.Fatalf("path %s", req.URL.Path)
		}
		if req.Header.Get("Authorization") != "Bearer sk-test" {
			t.Fatalf("missing bearer")
		}
		if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return jsonResponse(200, `{"choices":[{"message":{"content":"¿Qué tipo de tienda?"}}],"usage":{"total_tokens":42}}`), nil
	})
	resp, err := c.Complete(context.Background(), Request{
		System:   "eres un analista",
		Messages: []Message{{Role: RoleUser, Content: "quiero una tienda"}},
		JSONMode: true,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != "¿Qué tipo de tienda?" || resp.TokensUsed != 42 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "quiero una tienda" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
	if got.ResponseFormat["type"] != "json_object" || got.MaxTokens != 1500 || got.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestCompleteReturnsHTTPError(t *testing.T) {
	c := newTestOpenAI(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(429, `{"error":"rate limited"}`), nil
	})
	_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hola"}}})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 429 || !strings.Contains(httpErr.Body, "rate limited") {
		t.Fatalf("expected http error, got %v", err)
	}
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	c := newTestOpenAI(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"choices":[{"message":{"content":"  "}}]}`), nil
	})
	_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hola"}}})
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected empty completion, got %v", err)
	}
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	if _, err := NewOpenAI(OpenAIConfig{Model: "m"}); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestEchoAsksForMore(t *testing.T) {
	resp, err := Echo{}.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "una app"}}})
	if err != nil || !strings.Contains(resp.Text, "una app") {
		t.Fatalf("echo: %v %+v", err, resp)
	}
	resp, err = Echo{}.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}, JSONMode: true})
	if err != nil || !json.Valid([]byte(resp.Text)) {
		t.Fatalf("echo json: %v %q", err, resp.Text)
	}
}
