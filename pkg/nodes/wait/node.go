// Package wait provides the sleep/resume node implementation.
package wait

import (
	"context"
	"fmt"
	"time"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// WaitNode computes the wake-up instant and asks the runtime to park the
// execution. Input items pass through unchanged; an instant already in the
// past passes through without parking.
type WaitNode struct {
	name string

	// now is replaceable for tests.
	now func() time.Time
}

// Execute returns the pass-through output together with the wake-up time.
func (n *WaitNode) Execute(_ context.Context, req *protocol.ExecuteRequest) (*protocol.ExecuteResult, error) {
	parameters, err := req.Parameters(0)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve parameters: %w", err)
	}

	now := time.Now().UTC()
	if n.now != nil {
		now = n.now()
	}

	waitTill, err := wakeUpTime(parameters, now)
	if err != nil {
		return nil, err
	}

	result := &protocol.ExecuteResult{
		Outputs: [][]models.ExecutionItem{req.AllInputItems()},
	}

	if waitTill.After(now) {
		result.WaitTill = &waitTill
	}

	return result, nil
}

func wakeUpTime(parameters map[string]any, now time.Time) (time.Time, error) {
	if raw, ok := parameters["until"].(string); ok && raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid until instant %q: %w", raw, err)
		}

		return until, nil
	}

	amount, err := numeric(parameters["amount"])
	if err != nil {
		return time.Time{}, err
	}

	unit := time.Second

	switch parameters["unit"] {
	case "minutes":
		unit = time.Minute
	case "hours":
		unit = time.Hour
	case "days":
		unit = 24 * time.Hour
	case "seconds", nil, "":
	default:
		return time.Time{}, fmt.Errorf("unknown wait unit %q", parameters["unit"])
	}

	return now.Add(time.Duration(amount * float64(unit))), nil
}

func numeric(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("wait amount %v is not a number", value)
	}
}
