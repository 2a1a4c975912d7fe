// Package ifnode provides the two-way branching node factory for registry integration.
package ifnode

import (
	"context"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// Factory creates IfNode instances.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

// Create creates a new IfNode instance.
func (f *Factory) Create(_ context.Context, node *models.Node) (protocol.NodeHandler, error) {
	return &IfNode{name: node.Name}, nil
}

// Type returns the node type name.
func (f *Factory) Type() string {
	return "if"
}

// Version returns the node type version.
func (f *Factory) Version() int {
	return 1
}

// Description returns the factory description.
func (f *Factory) Description() string {
	return "Routes each item to the true output (0) or the false output (1) based on a per-item condition."
}

// Schema returns the JSON schema for if node parameters.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"condition": map[string]any{
				"description": "Condition evaluated per item. Non-boolean values are coerced: non-zero numbers, non-empty strings, non-empty collections are true.",
				"examples": []any{
					"={{ item.json.status == \"active\" }}",
					"={{ item.json.count > 10 }}",
					true,
				},
			},
		},
		"required": []string{"condition"},
	}
}
