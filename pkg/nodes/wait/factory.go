// Package wait provides the sleep/resume node factory for registry integration.
package wait

import (
	"context"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// Factory creates WaitNode instances.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

// Create creates a new WaitNode instance.
func (f *Factory) Create(_ context.Context, node *models.Node) (protocol.NodeHandler, error) {
	return &WaitNode{name: node.Name}, nil
}

// Type returns the node type name.
func (f *Factory) Type() string {
	return "wait"
}

// Version returns the node type version.
func (f *Factory) Version() int {
	return 1
}

// Description returns the factory description.
func (f *Factory) Description() string {
	return "Parks the execution until a relative duration elapsed or an absolute instant passed, then passes its input through."
}

// Schema returns the JSON schema for wait node parameters.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"amount": map[string]any{
				"type":        "number",
				"description": "How long to wait, in the configured unit.",
				"minimum":     0,
			},
			"unit": map[string]any{
				"type":        "string",
				"enum":        []string{"seconds", "minutes", "hours", "days"},
				"default":     "seconds",
				"description": "Unit for amount.",
			},
			"until": map[string]any{
				"type":        "string",
				"format":      "date-time",
				"description": "Absolute RFC 3339 instant to wait for; takes precedence over amount.",
			},
		},
	}
}
