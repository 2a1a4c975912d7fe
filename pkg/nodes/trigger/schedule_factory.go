package trigger

import (
	"context"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// ScheduleFactory creates ScheduleTriggerNode instances.
type ScheduleFactory struct{}

// NewScheduleFactory creates a new schedule trigger factory.
func NewScheduleFactory() protocol.NodeFactory {
	return &ScheduleFactory{}
}

// Create creates a new ScheduleTriggerNode instance.
func (f *ScheduleFactory) Create(_ context.Context, node *models.Node) (protocol.NodeHandler, error) {
	return NewScheduleTriggerNode(node)
}

// Type returns the node type name.
func (f *ScheduleFactory) Type() string {
	return "scheduletrigger"
}

// Version returns the node type version.
func (f *ScheduleFactory) Version() int {
	return 1
}

// Description returns the factory description.
func (f *ScheduleFactory) Description() string {
	return "Starts the workflow on a cron schedule."
}

// Schema returns the JSON schema for schedule trigger node parameters.
func (f *ScheduleFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"cron_expression": map[string]any{
				"type":        "string",
				"description": "Five-field cron expression defining when the workflow starts.",
				"examples": []string{
					"0 9 * * MON-FRI",
					"*/15 * * * *",
					"0 0 1 * *",
				},
			},
			"timezone": map[string]any{
				"type":        "string",
				"description": "IANA timezone for the schedule.",
				"default":     "UTC",
			},
		},
		"required": []string{"cron_expression"},
	}
}
