// Package llm is the text-completion contract the analysis engine consumes,
// with an OpenAI-compatible chat-completions implementation.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Roles accepted in a conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	System   string
	Messages []Message
	// JSONMode asks the provider for a response that is a single JSON object.
	JSONMode bool
}

type Response struct {
	Text       string
	TokensUsed int
}

// Client completes a conversation. Implementations never retry on their own.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// HTTPError is a non-2xx answer from the provider.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("llm http error: status=%d body=%s", e.StatusCode, e.Body)
}

var ErrEmptyCompletion = errors.New("empty completion")

// CostUSD estimates the provider cost of a call from its token count.
func CostUSD(tokens int) float64 {
	return float64(tokens) * 0.00015 / 1000
}

// Echo is an offline client for local runs: it asks the client to elaborate on
// their last message and never finishes an analysis.
type Echo struct{}

func (Echo) Complete(_ context.Context, req Request) (Response, error) {
	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			last = strings.TrimSpace(req.Messages[i].Content)
			break
		}
	}
	if last == "" {
		return Response{}, ErrEmptyCompletion
	}
	text := fmt.Sprintf("Entiendo: %q. ¿Qué presupuesto y plazo tienes en mente?", last)
	if req.JSONMode {
		text = fmt.Sprintf(`{"finalizado": false, "pregunta": %q}`, "¿Qué presupuesto y plazo tienes en mente?")
	}
	return Response{Text: text, TokensUsed: len(strings.Fields(last))}, nil
}
