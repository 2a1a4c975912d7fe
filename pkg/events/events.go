// Package events defines event types and structures for execution lifecycle notifications.
package events

import (
	"time"

	"github.com/weftlabs/weft/pkg/models"
)

type EventType string

// Kafka topics.
const Topic = "weft.events"                               // Topic for workflow definition events
const WorkflowExecutionTopic = "weft.workflow.executions" // Topic for workflow execution events

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow definition events.
	WorkflowCreatedEvent EventType = "workflow.created"
	WorkflowUpdatedEvent EventType = "workflow.updated"
	WorkflowDeletedEvent EventType = "workflow.deleted"

	// Workflow execution lifecycle events.
	ExecutionStartedEvent   EventType = "workflow.execution.started"
	ExecutionCompletedEvent EventType = "workflow.execution.completed"
	ExecutionFailedEvent    EventType = "workflow.execution.failed"
	ExecutionCanceledEvent  EventType = "workflow.execution.canceled"
	ExecutionTimeoutEvent   EventType = "workflow.execution.timeout"
	ExecutionWaitingEvent   EventType = "workflow.execution.waiting"
	ExecutionResumedEvent   EventType = "workflow.execution.resumed"

	// Node events inside a run.
	NodeStartedEvent  EventType = "node.execution.started"
	NodeFinishedEvent EventType = "node.execution.finished"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Workflow definition events

type WorkflowCreated struct {
	BaseEvent

	Name string `json:"name"`
}

func (w WorkflowCreated) GetType() EventType {
	return WorkflowCreatedEvent
}

type WorkflowUpdated struct {
	BaseEvent

	Name string `json:"name"`
}

func (w WorkflowUpdated) GetType() EventType {
	return WorkflowUpdatedEvent
}

type WorkflowDeleted struct {
	BaseEvent
}

func (w WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}

// Workflow execution lifecycle events

type ExecutionStarted struct {
	BaseEvent

	ExecutionID  string               `json:"execution_id"`
	WorkflowName string               `json:"workflow_name"`
	Mode         models.ExecutionMode `json:"mode"`
	RetryOf      string               `json:"retry_of,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	DurationMs    int64  `json:"duration_ms"`
	NodesExecuted int    `json:"nodes_executed"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string           `json:"execution_id"`
	NodeName    string           `json:"node_name,omitempty"`
	Kind        models.ErrorKind `json:"kind"`
	Error       string           `json:"error"`
	DurationMs  int64            `json:"duration_ms"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCanceled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e ExecutionCanceled) GetType() EventType {
	return ExecutionCanceledEvent
}

type ExecutionTimeout struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e ExecutionTimeout) GetType() EventType {
	return ExecutionTimeoutEvent
}

// ExecutionWaiting marks a run parked by a wait node until WaitTill.
type ExecutionWaiting struct {
	BaseEvent

	ExecutionID string    `json:"execution_id"`
	WaitTill    time.Time `json:"wait_till"`
}

func (e ExecutionWaiting) GetType() EventType {
	return ExecutionWaitingEvent
}

type ExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

// Node events

type NodeStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeName    string `json:"node_name"`
}

func (n NodeStarted) GetType() EventType {
	return NodeStartedEvent
}

type NodeFinished struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeName    string `json:"node_name"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	ItemCounts  []int  `json:"item_counts,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
}

func (n NodeFinished) GetType() EventType {
	return NodeFinishedEvent
}
