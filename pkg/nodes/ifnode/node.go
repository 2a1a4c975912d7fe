// Package ifnode provides the two-way branching node implementation.
package ifnode

import (
	"context"
	"fmt"
	"strconv"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// IfNode splits its input across two outputs: items for which the condition
// holds go to output 0, the rest to output 1. Item order within each output
// follows input order.
type IfNode struct {
	name string
}

// OutputCount declares the true and false outputs.
func (n *IfNode) OutputCount() int {
	return 2
}

// Execute evaluates the condition once per item and partitions the input.
func (n *IfNode) Execute(_ context.Context, req *protocol.ExecuteRequest) (*protocol.ExecuteResult, error) {
	input := req.AllInputItems()

	trueItems := make([]models.ExecutionItem, 0, len(input))
	falseItems := make([]models.ExecutionItem, 0)

	for index, item := range input {
		parameters, err := req.Parameters(index)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve condition for item %d: %w", index, err)
		}

		routed := item
		routed.PairedItem = []models.PairedItem{{Item: index}}

		if truthy(parameters["condition"]) {
			trueItems = append(trueItems, routed)
		} else {
			falseItems = append(falseItems, routed)
		}
	}

	return &protocol.ExecuteResult{
		Outputs: [][]models.ExecutionItem{trueItems, falseItems},
	}, nil
}

// truthy coerces a condition result to a boolean.
func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}

		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	case nil:
		return false
	default:
		return false
	}
}
