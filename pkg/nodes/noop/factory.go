// Package noop provides the pass-through node factory for registry integration.
package noop

import (
	"context"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// Factory creates NoOpNode instances.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

// Create creates a new NoOpNode instance.
func (f *Factory) Create(_ context.Context, _ *models.Node) (protocol.NodeHandler, error) {
	return &NoOpNode{}, nil
}

// Type returns the node type name.
func (f *Factory) Type() string {
	return "noop"
}

// Version returns the node type version.
func (f *Factory) Version() int {
	return 1
}

// Description returns the factory description.
func (f *Factory) Description() string {
	return "Passes input items through unchanged. Useful as a junction point in a graph."
}

// Schema returns the JSON schema for noop node parameters.
func (f *Factory) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
