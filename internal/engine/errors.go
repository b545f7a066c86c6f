package engine

import (
	"errors"
	"fmt"

	"conecta/internal/repo"
)

// NotFoundError reports an unknown project, sub-task, vendor or request id.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e NotFoundError) Unwrap() error { return repo.ErrNotFound }

// InvalidStateError reports an operation that is not valid in the current phase or state.
type InvalidStateError struct {
	Msg string
}

func (e InvalidStateError) Error() string { return e.Msg }

// ForbiddenError reports a caller that may not perform the operation.
type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string { return "forbidden: " + e.Reason }

// ExternalServiceError wraps a failed LLM call.
type ExternalServiceError struct {
	Err error
}

func (e ExternalServiceError) Error() string {
	return fmt.Sprintf("external service error: %v", e.Err)
}

func (e ExternalServiceError) Unwrap() error { return e.Err }

// MalformedPayloadError describes a terminal reply that cannot be materialized.
// It never reaches callers; the conversation continues instead.
type MalformedPayloadError struct {
	Reason string
}

func (e MalformedPayloadError) Error() string { return "malformed decomposition: " + e.Reason }

// InvalidActionError reports an unknown response to a work request.
type InvalidActionError struct {
	Action string
}

func (e InvalidActionError) Error() string {
	return fmt.Sprintf("invalid action %q: expected ACEPTAR or RECHAZAR", e.Action)
}

// InputError reports a missing or malformed argument.
type InputError struct {
	Field  string
	Reason string
}

func (e InputError) Error() string { return e.Field + ": " + e.Reason }

var (
	ErrDuplicateRequest   = errors.New("vendor already has a pending request for this sub-task")
	ErrEmptyDecomposition = errors.New("project has no sub-tasks")
	ErrNoLongerAvailable  = errors.New("sub-task is no longer available")
)

func notFound(err error, entity string, id int64) error {
	if errors.Is(err, repo.ErrNotFound) {
		return NotFoundError{Entity: entity, ID: id}
	}
	return err
}

func invalidState(format string, args ...any) error {
	return InvalidStateError{Msg: fmt.Sprintf(format, args...)}
}
