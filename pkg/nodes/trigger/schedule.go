// Package trigger provides the trigger node implementations that start runs.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// ScheduleTriggerNode starts runs on a cron schedule. When executed as the
// first node of a run it emits one item describing the activation.
type ScheduleTriggerNode struct {
	name     string
	schedule cron.Schedule
	timezone *time.Location
}

// NewScheduleTriggerNode parses the cron expression up front so invalid
// schedules fail at activation, not at fire time.
func NewScheduleTriggerNode(node *models.Node) (*ScheduleTriggerNode, error) {
	expression, ok := node.Parameters["cron_expression"].(string)
	if !ok || expression == "" {
		return nil, errors.New("cron_expression is required")
	}

	timezone := time.UTC

	if raw, ok := node.Parameters["timezone"].(string); ok && raw != "" {
		location, err := time.LoadLocation(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", raw, err)
		}

		timezone = location
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	schedule, err := parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}

	return &ScheduleTriggerNode{name: node.Name, schedule: schedule, timezone: timezone}, nil
}

// Execute emits the activation item.
func (n *ScheduleTriggerNode) Execute(_ context.Context, _ *protocol.ExecuteRequest) (*protocol.ExecuteResult, error) {
	now := time.Now().In(n.timezone)

	item := models.NewItem(map[string]any{
		"triggered_at": now.Format(time.RFC3339),
		"timezone":     n.timezone.String(),
	})

	return &protocol.ExecuteResult{Outputs: [][]models.ExecutionItem{{item}}}, nil
}

// NextActivation returns the first fire time strictly after the given instant.
func (n *ScheduleTriggerNode) NextActivation(after time.Time, _ map[string]any) (time.Time, error) {
	return n.schedule.Next(after.In(n.timezone)), nil
}
