// Package noop provides the pass-through node implementation.
package noop

import (
	"context"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// NoOpNode forwards its input unchanged.
type NoOpNode struct{}

// Execute returns the concatenated input items on the single output.
func (n *NoOpNode) Execute(_ context.Context, req *protocol.ExecuteRequest) (*protocol.ExecuteResult, error) {
	return &protocol.ExecuteResult{
		Outputs: [][]models.ExecutionItem{req.AllInputItems()},
	}, nil
}
