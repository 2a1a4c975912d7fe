package trigger

import (
	"context"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// WebhookFactory creates WebhookTriggerNode instances.
type WebhookFactory struct{}

// NewWebhookFactory creates a new webhook trigger factory.
func NewWebhookFactory() protocol.NodeFactory {
	return &WebhookFactory{}
}

// Create creates a new WebhookTriggerNode instance.
func (f *WebhookFactory) Create(_ context.Context, node *models.Node) (protocol.NodeHandler, error) {
	path, _ := node.Parameters["path"].(string)

	return &WebhookTriggerNode{name: node.Name, path: path}, nil
}

// Type returns the node type name.
func (f *WebhookFactory) Type() string {
	return "webhooktrigger"
}

// Version returns the node type version.
func (f *WebhookFactory) Version() int {
	return 1
}

// Description returns the factory description.
func (f *WebhookFactory) Description() string {
	return "Starts the workflow from an incoming webhook call."
}

// Schema returns the JSON schema for webhook trigger node parameters.
func (f *WebhookFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Webhook path this trigger listens on.",
			},
		},
		"required": []string{"path"},
	}
}
