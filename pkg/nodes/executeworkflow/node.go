// Package executeworkflow provides the sub-workflow node implementation.
package executeworkflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/weftlabs/weft/pkg/protocol"
)

// ExecuteWorkflowNode hands its input items to another workflow and forwards
// that workflow's final output. How the sub-workflow runs is up to the
// runtime supplied through the request.
type ExecuteWorkflowNode struct {
	name string
}

// Execute runs the referenced workflow once for the whole input batch.
func (n *ExecuteWorkflowNode) Execute(ctx context.Context, req *protocol.ExecuteRequest) (*protocol.ExecuteResult, error) {
	if req.ExecuteWorkflow == nil {
		return nil, errors.New("sub-workflow execution is not available in this runtime")
	}

	parameters, err := req.Parameters(0)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve parameters: %w", err)
	}

	workflowID, _ := parameters["workflow_id"].(string)
	if workflowID == "" {
		return nil, errors.New("missing required parameter workflow_id")
	}

	outputs, err := req.ExecuteWorkflow(ctx, workflowID, req.AllInputItems())
	if err != nil {
		return nil, fmt.Errorf("sub-workflow %s failed: %w", workflowID, err)
	}

	return &protocol.ExecuteResult{Outputs: outputs}, nil
}
