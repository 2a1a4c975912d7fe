// Package httprequest provides the HTTP request node factory for registry integration.
package httprequest

import (
	"context"
	"net/http"
	"time"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// Factory creates HTTPRequestNode instances.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

// Create creates a new HTTPRequestNode instance.
func (f *Factory) Create(_ context.Context, node *models.Node) (protocol.NodeHandler, error) {
	timeout := 30 * time.Second

	if raw, ok := node.Parameters["timeout"]; ok {
		switch v := raw.(type) {
		case int:
			timeout = time.Duration(v) * time.Second
		case float64:
			timeout = time.Duration(v) * time.Second
		}
	}

	return &HTTPRequestNode{
		name:   node.Name,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Type returns the node type name.
func (f *Factory) Type() string {
	return "httprequest"
}

// Version returns the node type version.
func (f *Factory) Version() int {
	return 1
}

// Description returns the factory description.
func (f *Factory) Description() string {
	return "Performs one HTTP request per input item. URL, headers and body support per-item expressions."
}

// Schema returns the JSON schema for HTTP request node parameters.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Request URL. Supports expressions.",
				"examples":    []any{"https://api.example.com/orders", "={{ item.json.url }}"},
			},
			"method": map[string]any{
				"type":    "string",
				"enum":    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"},
				"default": "GET",
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Request headers. Values support expressions.",
			},
			"body": map[string]any{
				"description": "Request body. Objects are sent as JSON, strings as-is.",
			},
			"timeout": map[string]any{
				"type":        "number",
				"description": "Per-request timeout in seconds.",
				"default":     30,
			},
			"binary_response": map[string]any{
				"type":        "boolean",
				"description": "Store the response body as a binary attachment instead of parsing JSON.",
				"default":     false,
			},
		},
		"required": []string{"url"},
	}
}
