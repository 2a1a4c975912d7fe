package models

import (
	"time"
)

// ExecutionStatus is the lifecycle state of one run. Transitions are
// monotonic: new -> running -> {success, error, canceled, waiting}; the only
// re-entry is waiting -> running.
type ExecutionStatus string

const (
	ExecutionStatusNew      ExecutionStatus = "new"
	ExecutionStatusRunning  ExecutionStatus = "running"
	ExecutionStatusWaiting  ExecutionStatus = "waiting"
	ExecutionStatusSuccess  ExecutionStatus = "success"
	ExecutionStatusError    ExecutionStatus = "error"
	ExecutionStatusCanceled ExecutionStatus = "canceled"
)

// Terminal reports whether no further transition is allowed from s, except
// for the waiting -> running resume path.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusSuccess || s == ExecutionStatusError || s == ExecutionStatusCanceled
}

// CanTransitionTo reports whether moving from s to next respects the
// monotonic status lifecycle.
func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	switch s {
	case ExecutionStatusNew:
		return next == ExecutionStatusRunning || next == ExecutionStatusCanceled
	case ExecutionStatusRunning:
		return next == ExecutionStatusSuccess || next == ExecutionStatusError ||
			next == ExecutionStatusCanceled || next == ExecutionStatusWaiting
	case ExecutionStatusWaiting:
		return next == ExecutionStatusRunning || next == ExecutionStatusCanceled
	default:
		return false
	}
}

// ExecutionMode records what started the run.
type ExecutionMode string

const (
	ModeManual     ExecutionMode = "manual"
	ModeTrigger    ExecutionMode = "trigger"
	ModeWebhook    ExecutionMode = "webhook"
	ModeRetry      ExecutionMode = "retry"
	ModeIntegrated ExecutionMode = "integrated" // sub-workflow run
)

// ItemSource identifies which upstream output (and which of its invocations)
// fed a node run.
type ItemSource struct {
	PreviousNode       string `json:"previous_node"`
	PreviousNodeOutput int    `json:"previous_node_output,omitempty"`
	PreviousNodeRun    int    `json:"previous_node_run,omitempty"`
}

// TaskData is one node's execution result for one pass. Data is indexed by
// output slot; each slot holds the ordered items emitted on it.
type TaskData struct {
	StartTime     time.Time         `json:"start_time"`
	ExecutionTime time.Duration     `json:"execution_time"`
	Source        []ItemSource      `json:"source,omitempty"`
	Data          [][]ExecutionItem `json:"data,omitempty"`
	Error         *ExecutionError   `json:"error,omitempty"`
}

// RunData maps node name to that node's invocations in temporal order.
type RunData map[string][]*TaskData

// ResultData summarizes the outcome of a run.
type ResultData struct {
	Error            *ExecutionError `json:"error,omitempty"`
	LastNodeExecuted string          `json:"last_node_executed,omitempty"`
}

// PendingNode is one entry of the engine's ready queue, snapshotted when a
// run parks on a wait node so it can resume in a different process.
type PendingNode struct {
	NodeName string            `json:"node_name"`
	Inputs   [][]ExecutionItem `json:"inputs"`
	Source   []ItemSource      `json:"source,omitempty"`
}

// ExecutionData is the mutable per-run ledger the engine works on.
type ExecutionData struct {
	RunData    RunData       `json:"run_data"`
	ResultData ResultData    `json:"result_data"`
	// NodeExecutionStack holds work not yet processed; non-empty only for
	// parked (waiting) executions.
	NodeExecutionStack []PendingNode `json:"node_execution_stack,omitempty"`
	StartNodes         []string      `json:"start_nodes,omitempty"`
	DestinationNode    string        `json:"destination_node,omitempty"`
}

// Execution is the full state of one workflow run.
type Execution struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	Status     ExecutionStatus `json:"status"`
	Mode       ExecutionMode   `json:"mode"`
	StartedAt  time.Time       `json:"started_at"`
	StoppedAt  *time.Time      `json:"stopped_at,omitempty"`
	Data       *ExecutionData  `json:"data"`
	// WaitTill parks the execution until the given instant; presence with a
	// non-terminal status means the run is sleeping.
	WaitTill *time.Time `json:"wait_till,omitempty"`
	// RetryOf references the execution this one retries, if any.
	RetryOf string `json:"retry_of,omitempty"`
}

// NewExecution creates a fresh run for the given workflow.
func NewExecution(id, workflowID string, mode ExecutionMode) *Execution {
	return &Execution{
		ID:         id,
		WorkflowID: workflowID,
		Status:     ExecutionStatusNew,
		Mode:       mode,
		StartedAt:  time.Now().UTC(),
		Data: &ExecutionData{
			RunData: make(RunData),
		},
	}
}

// Transition moves the execution to next when the lifecycle allows it.
func (e *Execution) Transition(next ExecutionStatus) bool {
	if !e.Status.CanTransitionTo(next) {
		return false
	}

	e.Status = next

	if next.Terminal() {
		now := time.Now().UTC()
		e.StoppedAt = &now
	}

	return true
}

// IsSleeping reports whether the execution is parked awaiting a wall-clock
// time. A missing WaitTill with a non-terminal status is treated as "not
// sleeping" (inconsistent but tolerated).
func (e *Execution) IsSleeping() bool {
	return e.Status == ExecutionStatusWaiting && e.WaitTill != nil
}
