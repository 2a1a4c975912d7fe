// Package merge provides the two-input merge node implementation.
package merge

import (
	"context"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// Merge modes.
const (
	ModeAppend  = "append"
	ModeCombine = "combine"
)

// MergeNode joins two input streams into one output.
type MergeNode struct {
	name       string
	mode       string
	requireAll bool
}

// Inputs declares both slots. With require_all disabled the second slot is
// optional, so a loop-back connection into it never deadlocks the graph.
func (n *MergeNode) Inputs() []protocol.InputSpec {
	return []protocol.InputSpec{
		{Name: "input1"},
		{Name: "input2", Optional: !n.requireAll},
	}
}

// Execute merges the two inputs according to the configured mode.
func (n *MergeNode) Execute(_ context.Context, req *protocol.ExecuteRequest) (*protocol.ExecuteResult, error) {
	first, second := inputSlot(req, 0), inputSlot(req, 1)

	var output []models.ExecutionItem

	switch n.mode {
	case ModeCombine:
		output = combine(first, second)
	default:
		output = make([]models.ExecutionItem, 0, len(first)+len(second))
		output = append(output, first...)
		output = append(output, second...)
	}

	return &protocol.ExecuteResult{Outputs: [][]models.ExecutionItem{output}}, nil
}

// combine merges items pairwise by index; the longer input's tail passes
// through unmerged. On key collision the second input wins.
func combine(first, second []models.ExecutionItem) []models.ExecutionItem {
	size := len(first)
	if len(second) > size {
		size = len(second)
	}

	output := make([]models.ExecutionItem, 0, size)

	for index := range size {
		payload := make(map[string]any)

		var paired []models.PairedItem

		if index < len(first) {
			for key, value := range first[index].JSON {
				payload[key] = value
			}

			paired = append(paired, models.PairedItem{Item: index, Input: 0})
		}

		if index < len(second) {
			for key, value := range second[index].JSON {
				payload[key] = value
			}

			paired = append(paired, models.PairedItem{Item: index, Input: 1})
		}

		item := models.NewItem(payload)
		item.PairedItem = paired
		output = append(output, item)
	}

	return output
}

func inputSlot(req *protocol.ExecuteRequest, index int) []models.ExecutionItem {
	if index < len(req.Inputs) {
		return req.Inputs[index]
	}

	return nil
}
