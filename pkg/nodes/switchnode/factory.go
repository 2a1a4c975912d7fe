// Package switchnode provides the n-way routing node factory for registry integration.
package switchnode

import (
	"context"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// Factory creates SwitchNode instances.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

// Create creates a new SwitchNode instance.
func (f *Factory) Create(_ context.Context, node *models.Node) (protocol.NodeHandler, error) {
	outputs := 4

	if raw, ok := node.Parameters["outputs"]; ok {
		switch v := raw.(type) {
		case int:
			outputs = v
		case float64:
			outputs = int(v)
		}
	}

	if outputs < 1 {
		outputs = 1
	}

	return &SwitchNode{name: node.Name, outputs: outputs}, nil
}

// Type returns the node type name.
func (f *Factory) Type() string {
	return "switch"
}

// Version returns the node type version.
func (f *Factory) Version() int {
	return 1
}

// Description returns the factory description.
func (f *Factory) Description() string {
	return "Routes each item to one of several outputs based on a per-item expression that yields the output index."
}

// Schema returns the JSON schema for switch node parameters.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"outputs": map[string]any{
				"type":        "integer",
				"description": "Number of output slots.",
				"minimum":     1,
				"default":     4,
			},
			"output_index": map[string]any{
				"description": "Expression yielding the zero-based output index per item. Out-of-range indexes use the fallback.",
				"examples":    []any{"={{ item.json.priority }}"},
			},
			"fallback_output": map[string]any{
				"type":        "integer",
				"description": "Output for items whose index is out of range; -1 drops them.",
				"default":     -1,
			},
		},
		"required": []string{"output_index"},
	}
}
