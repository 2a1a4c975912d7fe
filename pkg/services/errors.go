// Package services implements the application operations behind the HTTP API.
package services

import (
	"errors"
)

// Validation errors map to HTTP 400.
var (
	ErrWorkflowNil          = errors.New("workflow cannot be nil")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrNodesRequired        = errors.New("workflow must have at least one node")
	ErrInvalidMode          = errors.New("invalid execution mode")
)

// Conflict errors map to HTTP 409.
var (
	// ErrWorkflowNotRunnable is returned when starting a run on a workflow
	// that is not active.
	ErrWorkflowNotRunnable = errors.New("workflow is not active")
	// ErrExecutionFinished is returned when stopping a run that already
	// reached a terminal state.
	ErrExecutionFinished = errors.New("execution already finished")
	// ErrExecutionNotRetryable is returned when retrying a run that did not
	// fail.
	ErrExecutionNotRetryable = errors.New("execution did not fail")
)

// ErrWebhookNotFound is returned when no active workflow listens on a
// webhook path. It maps to HTTP 404.
var ErrWebhookNotFound = errors.New("no webhook registered for path")

// IsValidationError reports whether err should surface as HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrNodesRequired) ||
		errors.Is(err, ErrInvalidMode)
}

// IsConflictError reports whether err should surface as HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowNotRunnable) ||
		errors.Is(err, ErrExecutionFinished) ||
		errors.Is(err, ErrExecutionNotRetryable)
}
