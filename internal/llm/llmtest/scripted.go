// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"conecta/internal/llm"
)

// ErrExhausted is returned once every scripted reply has been consumed.
var ErrExhausted = errors.New("llmtest: script exhausted")

// Step is one scripted reply. A non-nil Err fails the call.
type Step struct {
	Text   string
	Tokens int
	Err    error
}

// Scripted replays steps in order and records every request it receives.
type Scripted struct {
	mu       sync.Mutex
	steps    []Step
	requests []llm.Request
}

func New(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

// Reply is a convenience successful step.
func Reply(text string) Step {
	return Step{Text: text, Tokens: 100}
}

// Fail is a convenience failing step.
func Fail(err error) Step {
	return Step{Err: err}
}

// Push appends more steps.
func (s *Scripted) Push(steps ...Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, steps...)
}

func (s *Scripted) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]llm.Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	s.requests = append(s.requests, req)
	if len(s.steps) == 0 {
		return llm.Response{}, ErrExhausted
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	if step.Err != nil {
		return llm.Response{}, step.Err
	}
	return llm.Response{Text: step.Text, TokensUsed: step.Tokens}, nil
}

// Requests returns a copy of every request seen so far.
func (s *Scripted) Requests() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Last returns the most recent request.
func (s *Scripted) Last() llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return llm.Request{}
	}
	return s.requests[len(s.requests)-1]
}
