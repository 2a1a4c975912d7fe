package models

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrorKind distinguishes the failure classes a run can surface.
type ErrorKind string

const (
	// ErrorKindNode marks errors raised by a node implementation.
	ErrorKindNode ErrorKind = "node"
	// ErrorKindOperation marks engine-raised errors: cancellation, timeout.
	ErrorKindOperation ErrorKind = "operation"
	// ErrorKindPermission marks pre-execution authorization failures.
	ErrorKindPermission ErrorKind = "permission"
	// ErrorKindTransport marks IPC send failures between worker and coordinator.
	ErrorKindTransport ErrorKind = "transport"
)

// ExecutionError is the JSON-serializable error representation carried in
// run results and across the process boundary.
type ExecutionError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Node    string    `json:"node,omitempty"`
	Stack   string    `json:"stack,omitempty"`
	Timeout bool      `json:"timeout,omitempty"`
}

func (e *ExecutionError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s error in node %q: %s", e.Kind, e.Node, e.Message)
	}

	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// NewNodeError wraps an error raised by a node implementation.
func NewNodeError(node string, err error) *ExecutionError {
	return &ExecutionError{
		Kind:    ErrorKindNode,
		Message: err.Error(),
		Node:    node,
		Stack:   string(debug.Stack()),
	}
}

// NewCancelationError marks a run canceled by an external stop request.
func NewCancelationError() *ExecutionError {
	return &ExecutionError{
		Kind:    ErrorKindOperation,
		Message: "workflow execution has been canceled",
	}
}

// NewTimeoutError marks a run stopped by an expired workflow deadline.
func NewTimeoutError() *ExecutionError {
	return &ExecutionError{
		Kind:    ErrorKindOperation,
		Message: "workflow execution timed out",
		Timeout: true,
	}
}

// NewPermissionError wraps a pre-execution authorization failure.
func NewPermissionError(message string) *ExecutionError {
	return &ExecutionError{
		Kind:    ErrorKindPermission,
		Message: message,
	}
}

// TransportError wraps a failed IPC send. The worker logs it and keeps
// operating; hook forwarding is best effort.
type TransportError struct {
	MessageType string
	Err         error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to send %q message: %v", e.MessageType, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a workflow timeout error.
func IsTimeout(err error) bool {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Timeout
	}

	return false
}
