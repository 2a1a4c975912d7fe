// Package merge provides the two-input merge node factory for registry integration.
package merge

import (
	"context"
	"fmt"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// Factory creates MergeNode instances.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

// Create creates a new MergeNode instance.
func (f *Factory) Create(_ context.Context, node *models.Node) (protocol.NodeHandler, error) {
	mode := ModeAppend

	if raw, ok := node.Parameters["mode"].(string); ok && raw != "" {
		switch raw {
		case ModeAppend, ModeCombine:
			mode = raw
		default:
			return nil, fmt.Errorf("unknown merge mode %q", raw)
		}
	}

	requireAll := true
	if raw, ok := node.Parameters["require_all"].(bool); ok {
		requireAll = raw
	}

	return &MergeNode{name: node.Name, mode: mode, requireAll: requireAll}, nil
}

// Type returns the node type name.
func (f *Factory) Type() string {
	return "merge"
}

// Version returns the node type version.
func (f *Factory) Version() int {
	return 1
}

// Description returns the factory description.
func (f *Factory) Description() string {
	return "Joins the items of two inputs into one stream, by appending or by index-wise combination."
}

// Schema returns the JSON schema for merge node parameters.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mode": map[string]any{
				"type":        "string",
				"enum":        []string{ModeAppend, ModeCombine},
				"description": "append concatenates both inputs; combine merges items pairwise by index.",
				"default":     ModeAppend,
			},
			"require_all": map[string]any{
				"type":        "boolean",
				"description": "When false the second input does not gate execution, which allows loop-back connections.",
				"default":     true,
			},
		},
	}
}
