// Package hooks provides ordered lifecycle notification for workflow runs.
package hooks

import (
	"context"
	"log/slog"

	"github.com/weftlabs/weft/pkg/models"
)

// Handler signatures for each lifecycle event.
type (
	NodeExecuteBeforeFunc     func(ctx context.Context, nodeName string) error
	NodeExecuteAfterFunc      func(ctx context.Context, nodeName string, data *models.TaskData) error
	WorkflowExecuteBeforeFunc func(ctx context.Context) error
	WorkflowExecuteAfterFunc  func(ctx context.Context, execution *models.Execution, staticData map[string]any) error
	NodeFetchedDataFunc       func(ctx context.Context, workflowID string, node *models.Node) error
	SendResponseFunc          func(ctx context.Context, response map[string]any) error
)

// ExecutionHooks holds the handlers registered for one run. Handlers fire in
// registration order and are awaited sequentially; ordering matters because
// persistence handlers must complete before UI push handlers. The lists are
// append-only during a run and drained by a single goroutine.
type ExecutionHooks struct {
	logger *slog.Logger

	ExecutionID string
	WorkflowID  string
	Mode        models.ExecutionMode
	RetryOf     string

	nodeExecuteBefore     []NodeExecuteBeforeFunc
	nodeExecuteAfter      []NodeExecuteAfterFunc
	workflowExecuteBefore []WorkflowExecuteBeforeFunc
	workflowExecuteAfter  []WorkflowExecuteAfterFunc
	nodeFetchedData       []NodeFetchedDataFunc
	sendResponse          []SendResponseFunc
}

// New creates an empty hook set for one run.
func New(logger *slog.Logger, executionID, workflowID string, mode models.ExecutionMode) *ExecutionHooks {
	return &ExecutionHooks{
		logger:      logger.With("module", "hooks", "execution_id", executionID),
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		Mode:        mode,
	}
}

func (h *ExecutionHooks) AddNodeExecuteBefore(fn NodeExecuteBeforeFunc) {
	h.nodeExecuteBefore = append(h.nodeExecuteBefore, fn)
}

func (h *ExecutionHooks) AddNodeExecuteAfter(fn NodeExecuteAfterFunc) {
	h.nodeExecuteAfter = append(h.nodeExecuteAfter, fn)
}

func (h *ExecutionHooks) AddWorkflowExecuteBefore(fn WorkflowExecuteBeforeFunc) {
	h.workflowExecuteBefore = append(h.workflowExecuteBefore, fn)
}

func (h *ExecutionHooks) AddWorkflowExecuteAfter(fn WorkflowExecuteAfterFunc) {
	h.workflowExecuteAfter = append(h.workflowExecuteAfter, fn)
}

func (h *ExecutionHooks) AddNodeFetchedData(fn NodeFetchedDataFunc) {
	h.nodeFetchedData = append(h.nodeFetchedData, fn)
}

func (h *ExecutionHooks) AddSendResponse(fn SendResponseFunc) {
	h.sendResponse = append(h.sendResponse, fn)
}

// NodeExecuteBefore fires before a node is invoked. A handler error never
// fails the run; it is logged and the remaining handlers still fire.
func (h *ExecutionHooks) NodeExecuteBefore(ctx context.Context, nodeName string) {
	for _, fn := range h.nodeExecuteBefore {
		if err := fn(ctx, nodeName); err != nil {
			h.logger.ErrorContext(ctx, "nodeExecuteBefore hook failed", "node", nodeName, "error", err)
		}
	}
}

// NodeExecuteAfter fires after a node's TaskData has been recorded.
func (h *ExecutionHooks) NodeExecuteAfter(ctx context.Context, nodeName string, data *models.TaskData) {
	for _, fn := range h.nodeExecuteAfter {
		if err := fn(ctx, nodeName, data); err != nil {
			h.logger.ErrorContext(ctx, "nodeExecuteAfter hook failed", "node", nodeName, "error", err)
		}
	}
}

// WorkflowExecuteBefore fires once before the first node runs.
func (h *ExecutionHooks) WorkflowExecuteBefore(ctx context.Context) {
	for _, fn := range h.workflowExecuteBefore {
		if err := fn(ctx); err != nil {
			h.logger.ErrorContext(ctx, "workflowExecuteBefore hook failed", "error", err)
		}
	}
}

// WorkflowExecuteAfter fires once the run reached a terminal or waiting
// state, carrying the full execution and the static data to persist.
func (h *ExecutionHooks) WorkflowExecuteAfter(ctx context.Context, execution *models.Execution, staticData map[string]any) {
	for _, fn := range h.workflowExecuteAfter {
		if err := fn(ctx, execution, staticData); err != nil {
			h.logger.ErrorContext(ctx, "workflowExecuteAfter hook failed", "error", err)
		}
	}
}

// NodeFetchedData fires when a trigger/poll node fetched fresh source data.
func (h *ExecutionHooks) NodeFetchedData(ctx context.Context, workflowID string, node *models.Node) {
	for _, fn := range h.nodeFetchedData {
		if err := fn(ctx, workflowID, node); err != nil {
			h.logger.ErrorContext(ctx, "nodeFetchedData hook failed", "node", node.Name, "error", err)
		}
	}
}

// SendResponse delivers a webhook response payload to whoever is waiting on
// the incoming call.
func (h *ExecutionHooks) SendResponse(ctx context.Context, response map[string]any) {
	for _, fn := range h.sendResponse {
		if err := fn(ctx, response); err != nil {
			h.logger.ErrorContext(ctx, "sendResponse hook failed", "error", err)
		}
	}
}
