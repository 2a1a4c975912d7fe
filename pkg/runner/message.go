// Package runner executes workflow runs in an isolated worker process and
// coordinates it from the parent over a JSON-lines pipe protocol.
package runner

import (
	"encoding/json"
	"fmt"

	"github.com/weftlabs/weft/pkg/models"
)

// Message types sent from the coordinator to the worker.
const (
	// MsgStartWorkflow carries the workflow and execution to run.
	MsgStartWorkflow = "startWorkflow"
	// MsgStopExecution asks the worker to cancel the running execution.
	MsgStopExecution = "stopExecution"
	// MsgTimeout tells the worker the run deadline expired.
	MsgTimeout = "timeout"
	// MsgExecutionID answers a startExecution request with the resolved
	// sub-workflow and the id of its freshly created execution.
	MsgExecutionID = "executionId"
)

// Message types sent from the worker to the coordinator.
const (
	// MsgStart acknowledges the start request.
	MsgStart = "start"
	// MsgStartExecution asks the coordinator to resolve a sub-workflow and
	// open an execution for it. The worker has no store of its own.
	MsgStartExecution = "startExecution"
	// MsgProcessHook forwards a lifecycle hook invocation to the parent.
	MsgProcessHook = "processHook"
	// MsgSendResponse forwards a webhook response payload.
	MsgSendResponse = "sendResponse"
	// MsgSendDataToUI pushes progress data for live display, manual runs only.
	MsgSendDataToUI = "sendDataToUI"
	// MsgFinishExecution carries the final execution state, sent exactly once.
	MsgFinishExecution = "finishExecution"
	// MsgProcessError reports a failure outside normal run completion.
	MsgProcessError = "processError"
	// MsgEnd signals the worker is about to exit.
	MsgEnd = "end"
)

// Message is the envelope every pipe line carries.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the payload into out.
func (m *Message) Decode(out any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("message %q has no payload", m.Type)
	}

	if err := json.Unmarshal(m.Data, out); err != nil {
		return fmt.Errorf("failed to decode %q payload: %w", m.Type, err)
	}

	return nil
}

// StartWorkflowData is the payload of MsgStartWorkflow.
type StartWorkflowData struct {
	Workflow  *models.Workflow       `json:"workflow"`
	Execution *models.Execution      `json:"execution"`
	Input     []models.ExecutionItem `json:"input,omitempty"`
}

// StartExecutionData is the payload of MsgStartExecution.
type StartExecutionData struct {
	WorkflowID string `json:"workflow_id"`
}

// ExecutionIDData is the payload of MsgExecutionID. A set Error means the
// coordinator could not open the requested execution.
type ExecutionIDData struct {
	ExecutionID string           `json:"execution_id,omitempty"`
	Workflow    *models.Workflow `json:"workflow,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Hook names carried by MsgProcessHook.
const (
	HookNodeExecuteBefore     = "nodeExecuteBefore"
	HookNodeExecuteAfter      = "nodeExecuteAfter"
	HookWorkflowExecuteBefore = "workflowExecuteBefore"
	HookWorkflowExecuteAfter  = "workflowExecuteAfter"
)

// HookData is the payload of MsgProcessHook. ExecutionID distinguishes the
// top-level run from nested sub-workflow runs; the other fields are set per
// hook name.
type HookData struct {
	Hook        string            `json:"hook"`
	ExecutionID string            `json:"execution_id,omitempty"`
	NodeName    string            `json:"node_name,omitempty"`
	TaskData    *models.TaskData  `json:"task_data,omitempty"`
	Execution   *models.Execution `json:"execution,omitempty"`
	StaticData  map[string]any    `json:"static_data,omitempty"`
}

// SendResponseData is the payload of MsgSendResponse.
type SendResponseData struct {
	Response map[string]any `json:"response"`
}

// SendDataToUIData is the payload of MsgSendDataToUI.
type SendDataToUIData struct {
	NodeName string           `json:"node_name"`
	TaskData *models.TaskData `json:"task_data"`
}

// FinishExecutionData is the payload of MsgFinishExecution.
type FinishExecutionData struct {
	Execution  *models.Execution `json:"execution"`
	StaticData map[string]any    `json:"static_data,omitempty"`
}

// ProcessErrorData is the payload of MsgProcessError.
type ProcessErrorData struct {
	Error *models.ExecutionError `json:"error"`
}
