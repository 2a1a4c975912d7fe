// Package protocol defines the interfaces and contracts for pluggable node types.
package protocol

import (
	"context"
	"log/slog"
	"time"

	"github.com/weftlabs/weft/pkg/models"
)

// BinaryDataService is the subset of the binary-data service node handlers
// need; items carry "mode:id" references instead of raw bytes.
type BinaryDataService interface {
	Store(ctx context.Context, item *models.BinaryItem, data []byte, executionID string) error
	Retrieve(ctx context.Context, item models.BinaryItem) ([]byte, error)
}

// ExecuteWorkflowFunc runs a sub-workflow with the given input items and
// returns the output of its last executed node. Supplied by the enclosing
// runtime; node handlers must not assume in-process execution.
type ExecuteWorkflowFunc func(ctx context.Context, workflowID string, items []models.ExecutionItem) ([][]models.ExecutionItem, error)

// ExecuteRequest carries everything one node invocation may need. Inputs is
// indexed by input slot; Parameters resolves the node's parameter map for
// one item index.
type ExecuteRequest struct {
	Node       *models.Node
	Inputs     [][]models.ExecutionItem
	Parameters func(itemIndex int) (map[string]any, error)
	Workflow   *models.Workflow
	Execution  *models.Execution
	StaticData map[string]any

	Binary          BinaryDataService
	ExecuteWorkflow ExecuteWorkflowFunc
	Logger          *slog.Logger
}

// AllInputItems returns the items of every input slot concatenated in slot
// order, the most common consumption pattern for single-purpose nodes.
func (r *ExecuteRequest) AllInputItems() []models.ExecutionItem {
	if len(r.Inputs) == 1 {
		return r.Inputs[0]
	}

	items := make([]models.ExecutionItem, 0)
	for _, batch := range r.Inputs {
		items = append(items, batch...)
	}

	return items
}

// ExecuteResult is what one node invocation produced: one ordered item
// sequence per declared output slot. A non-nil WaitTill parks the execution
// until the given instant instead of routing outputs downstream.
type ExecuteResult struct {
	Outputs  [][]models.ExecutionItem
	WaitTill *time.Time
}

// NodeHandler executes a node once per input batch.
type NodeHandler interface {
	Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResult, error)
}

// InputSpec describes one input slot of a node type.
type InputSpec struct {
	Name string
	// Optional inputs do not gate readiness; loop-back connections must
	// target an optional input so cycles stay bounded by data availability.
	Optional bool
}

// MultiInputNode is implemented by handlers with more than one input slot.
// Handlers without it get a single required "main" input.
type MultiInputNode interface {
	Inputs() []InputSpec
}

// OutputCountNode is implemented by handlers with more than one output slot.
type OutputCountNode interface {
	OutputCount() int
}

// PollHandler is the capability of trigger node types that poll an external
// source, using workflow static data to keep their cursor.
type PollHandler interface {
	Poll(ctx context.Context, req *ExecuteRequest) (*ExecuteResult, error)
}

// WebhookHandler is the capability of trigger node types activated by an
// incoming webhook call.
type WebhookHandler interface {
	Webhook(ctx context.Context, req *ExecuteRequest, payload map[string]any) (*ExecuteResult, error)
	// Path is the webhook path this trigger listens on.
	Path() string
}

// TriggerHandler is the capability of trigger node types that compute their
// own activation schedule.
type TriggerHandler interface {
	NextActivation(after time.Time, parameters map[string]any) (time.Time, error)
}

// NodeFactory creates node handler instances and provides metadata about the
// node type.
type NodeFactory interface {
	// Create builds a handler for one node instance.
	Create(ctx context.Context, node *models.Node) (NodeHandler, error)

	// Type returns the unique type name for this node type.
	Type() string

	// Version returns the node type version this factory builds.
	Version() int

	// Description returns a description of what this node does.
	Description() string

	// Schema returns the JSON schema for this node type's parameters.
	Schema() map[string]any
}
