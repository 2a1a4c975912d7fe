package trigger

import (
	"context"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// WebhookTriggerNode starts runs from incoming webhook calls. The payload of
// the call becomes the first item of the run.
type WebhookTriggerNode struct {
	name string
	path string
}

// Execute passes the seeded trigger items through, so the payload built by
// the Webhook capability reaches the downstream nodes. Without seed items it
// emits one empty activation item.
func (n *WebhookTriggerNode) Execute(_ context.Context, req *protocol.ExecuteRequest) (*protocol.ExecuteResult, error) {
	items := req.AllInputItems()
	if len(items) == 0 {
		items = []models.ExecutionItem{models.NewItem(nil)}
	}

	return &protocol.ExecuteResult{
		Outputs: [][]models.ExecutionItem{items},
	}, nil
}

// Webhook turns the incoming call payload into the run's first item.
func (n *WebhookTriggerNode) Webhook(_ context.Context, _ *protocol.ExecuteRequest, payload map[string]any) (*protocol.ExecuteResult, error) {
	item := models.NewItem(map[string]any{"body": payload})

	return &protocol.ExecuteResult{Outputs: [][]models.ExecutionItem{{item}}}, nil
}

// Path returns the webhook path this trigger listens on.
func (n *WebhookTriggerNode) Path() string {
	return n.path
}
