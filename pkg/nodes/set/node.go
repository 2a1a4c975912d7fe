// Package set provides the field-assignment node implementation.
package set

import (
	"context"
	"fmt"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// SetNode writes fields into the JSON payload of every input item.
type SetNode struct {
	name string
}

// Execute assigns the configured fields to each item, preserving order and
// pairing. With keep_only_set the output payload contains only the assigned
// fields.
func (n *SetNode) Execute(_ context.Context, req *protocol.ExecuteRequest) (*protocol.ExecuteResult, error) {
	input := req.AllInputItems()
	output := make([]models.ExecutionItem, 0, len(input))

	for index, item := range input {
		parameters, err := req.Parameters(index)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve parameters for item %d: %w", index, err)
		}

		fields, _ := parameters["fields"].(map[string]any)
		keepOnlySet, _ := parameters["keep_only_set"].(bool)

		payload := make(map[string]any, len(item.JSON)+len(fields))

		if !keepOnlySet {
			for key, value := range item.JSON {
				payload[key] = value
			}
		}

		for key, value := range fields {
			payload[key] = value
		}

		next := models.NewItem(payload)
		next.Binary = item.Binary
		next.PairedItem = []models.PairedItem{{Item: index}}

		output = append(output, next)
	}

	return &protocol.ExecuteResult{Outputs: [][]models.ExecutionItem{output}}, nil
}
