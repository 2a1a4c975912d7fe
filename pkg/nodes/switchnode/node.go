// Package switchnode provides the n-way routing node implementation.
package switchnode

import (
	"context"
	"fmt"
	"strconv"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// SwitchNode routes each input item to one of a fixed number of outputs. The
// target is computed per item; out-of-range targets go to the fallback output
// or are dropped when none is configured.
type SwitchNode struct {
	name    string
	outputs int
}

// OutputCount declares the configured number of outputs.
func (n *SwitchNode) OutputCount() int {
	return n.outputs
}

// Execute routes every item by its computed output index.
func (n *SwitchNode) Execute(_ context.Context, req *protocol.ExecuteRequest) (*protocol.ExecuteResult, error) {
	outputs := make([][]models.ExecutionItem, n.outputs)

	for index, item := range req.AllInputItems() {
		parameters, err := req.Parameters(index)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve output index for item %d: %w", index, err)
		}

		target, err := outputIndex(parameters["output_index"])
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", index, err)
		}

		if target < 0 || target >= n.outputs {
			fallback := -1
			if raw, ok := parameters["fallback_output"]; ok {
				fallback, _ = outputIndexLenient(raw)
			}

			if fallback < 0 || fallback >= n.outputs {
				continue
			}

			target = fallback
		}

		routed := item
		routed.PairedItem = []models.PairedItem{{Item: index}}
		outputs[target] = append(outputs[target], routed)
	}

	return &protocol.ExecuteResult{Outputs: outputs}, nil
}

func outputIndex(value any) (int, error) {
	index, ok := outputIndexLenient(value)
	if !ok {
		return 0, fmt.Errorf("output index %v is not an integer", value)
	}

	return index, nil
}

func outputIndexLenient(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}

		return parsed, true
	default:
		return 0, false
	}
}
