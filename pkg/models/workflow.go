// Package models defines the core domain models for graph-based workflow execution
package models

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft     WorkflowStatus = "draft"     // Editable, not executable
	WorkflowStatusActive    WorkflowStatus = "active"    // Executable
	WorkflowStatusInactive  WorkflowStatus = "inactive"  // Historical, not executable
)

// Node represents a single unit of work in a workflow graph.
type Node struct {
	Name        string         `json:"name"         validate:"required,min=1"`
	Type        string         `json:"type"         validate:"required"`
	TypeVersion int            `json:"type_version"`
	Parameters  map[string]any `json:"parameters"`
	Disabled    bool           `json:"disabled"`
	// ContinueOnFail converts node errors into error-carrying output items
	// instead of aborting the run.
	ContinueOnFail bool `json:"continue_on_fail"`
}

// Connection links one output of a source node to one input of a target node.
type Connection struct {
	Node  string `json:"node"  validate:"required"` // Target node name
	Index int    `json:"index"`                     // Target input index
}

// Connections maps a source node name to its outputs; the outer slice is
// indexed by output index, the inner slice lists targets in declaration order.
type Connections map[string][][]Connection

// WorkflowSettings carries run-level policy for a workflow.
type WorkflowSettings struct {
	// Timeout bounds the whole run; zero means no workflow-level timeout.
	Timeout time.Duration `json:"timeout,omitempty"`
	// ErrorWorkflowID optionally names a workflow to run when this one fails.
	ErrorWorkflowID string `json:"error_workflow_id,omitempty"`
}

// Workflow is the immutable-per-run graph of nodes and connections.
type Workflow struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"        validate:"required,min=3"`
	Status      WorkflowStatus    `json:"status"`
	Nodes       []*Node           `json:"nodes"       validate:"dive"`
	Connections Connections       `json:"connections"`
	Settings    WorkflowSettings  `json:"settings"`
	// StaticData is a workflow-scoped mutable key/value store (polling
	// cursors and the like), persisted at the end of a successful run.
	StaticData map[string]any `json:"static_data,omitempty"`
	// PinData overrides live execution output per node name.
	PinData   map[string][]ExecutionItem `json:"pin_data,omitempty"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints plus graph-level invariants: node names
// are unique and every connection endpoint references an existing node.
func (w *Workflow) Validate() error {
	if err := validate.Struct(w); err != nil {
		return fmt.Errorf("workflow %s failed validation: %w", w.ID, err)
	}

	names := make(map[string]bool, len(w.Nodes))
	for _, node := range w.Nodes {
		if names[node.Name] {
			return fmt.Errorf("workflow %s: duplicate node name %q", w.ID, node.Name)
		}

		names[node.Name] = true
	}

	for source, outputs := range w.Connections {
		if !names[source] {
			return fmt.Errorf("workflow %s: connection source %q is not a node", w.ID, source)
		}

		for _, targets := range outputs {
			for _, conn := range targets {
				if !names[conn.Node] {
					return fmt.Errorf("workflow %s: connection target %q is not a node", w.ID, conn.Node)
				}
			}
		}
	}

	return nil
}

// NodeByName returns the named node, or nil when absent.
func (w *Workflow) NodeByName(name string) *Node {
	for _, node := range w.Nodes {
		if node.Name == name {
			return node
		}
	}

	return nil
}

// StartNodes returns the nodes with no incoming connections, in declaration
// order. Disabled nodes are skipped.
func (w *Workflow) StartNodes() []*Node {
	hasIncoming := make(map[string]bool)

	for _, outputs := range w.Connections {
		for _, targets := range outputs {
			for _, conn := range targets {
				hasIncoming[conn.Node] = true
			}
		}
	}

	starts := make([]*Node, 0)

	for _, node := range w.Nodes {
		if !hasIncoming[node.Name] && !node.Disabled {
			starts = append(starts, node)
		}
	}

	return starts
}
