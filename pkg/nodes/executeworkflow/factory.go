// Package executeworkflow provides the sub-workflow node factory for registry integration.
package executeworkflow

import (
	"context"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// Factory creates ExecuteWorkflowNode instances.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

// Create creates a new ExecuteWorkflowNode instance.
func (f *Factory) Create(_ context.Context, node *models.Node) (protocol.NodeHandler, error) {
	return &ExecuteWorkflowNode{name: node.Name}, nil
}

// Type returns the node type name.
func (f *Factory) Type() string {
	return "executeworkflow"
}

// Version returns the node type version.
func (f *Factory) Version() int {
	return 1
}

// Description returns the factory description.
func (f *Factory) Description() string {
	return "Runs another workflow with the current items as input and emits the sub-workflow's final output."
}

// Schema returns the JSON schema for execute workflow node parameters.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"workflow_id": map[string]any{
				"type":        "string",
				"description": "Identifier of the workflow to run.",
			},
		},
		"required": []string{"workflow_id"},
	}
}
