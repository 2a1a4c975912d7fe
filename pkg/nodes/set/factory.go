// Package set provides the field-assignment node factory for registry integration.
package set

import (
	"context"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// Factory creates SetNode instances.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

// Create creates a new SetNode instance.
func (f *Factory) Create(_ context.Context, node *models.Node) (protocol.NodeHandler, error) {
	return &SetNode{name: node.Name}, nil
}

// Type returns the node type name.
func (f *Factory) Type() string {
	return "set"
}

// Version returns the node type version.
func (f *Factory) Version() int {
	return 1
}

// Description returns the factory description.
func (f *Factory) Description() string {
	return "Assigns values to fields of each item. Values support expressions evaluated per item."
}

// Schema returns the JSON schema for set node parameters.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"fields": map[string]any{
				"type":        "object",
				"description": "Field name to value. Values may be expressions.",
			},
			"keep_only_set": map[string]any{
				"type":        "boolean",
				"description": "Drop every field not assigned here.",
				"default":     false,
			},
		},
		"required": []string{"fields"},
		"examples": []map[string]any{
			{"fields": map[string]any{"status": "processed"}},
			{"fields": map[string]any{"total": "={{ item.json.price * item.json.quantity }}"}, "keep_only_set": true},
		},
	}
}
