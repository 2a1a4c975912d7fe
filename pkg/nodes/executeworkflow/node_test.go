package executeworkflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/testutil"
)

func TestExecuteWorkflowNode_ForwardsSubWorkflowOutput(t *testing.T) {
	node := testutil.CreateTestNode(
		testutil.WithType("executeworkflow"),
		testutil.WithParameters(map[string]any{"workflow_id": "wf-child"}),
	)

	handler, err := NewFactory().Create(context.Background(), node)
	require.NoError(t, err)

	var receivedID string

	req := testutil.CreateExecuteRequest(node, [][]models.ExecutionItem{testutil.Items(map[string]any{"id": 1})})
	req.ExecuteWorkflow = func(_ context.Context, workflowID string, items []models.ExecutionItem) ([][]models.ExecutionItem, error) {
		receivedID = workflowID

		require.Len(t, items, 1)

		return [][]models.ExecutionItem{testutil.Items(map[string]any{"child": true})}, nil
	}

	result, err := handler.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "wf-child", receivedID)
	require.Len(t, result.Outputs[0], 1)
	assert.Equal(t, true, result.Outputs[0][0].JSON["child"])
}

func TestExecuteWorkflowNode_SubWorkflowErrorPropagates(t *testing.T) {
	node := testutil.CreateTestNode(
		testutil.WithType("executeworkflow"),
		testutil.WithParameters(map[string]any{"workflow_id": "wf-child"}),
	)

	handler, err := NewFactory().Create(context.Background(), node)
	require.NoError(t, err)

	req := testutil.CreateExecuteRequest(node, nil)
	req.ExecuteWorkflow = func(context.Context, string, []models.ExecutionItem) ([][]models.ExecutionItem, error) {
		return nil, errors.New("child exploded")
	}

	_, err = handler.Execute(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "child exploded")
}

func TestExecuteWorkflowNode_RequiresRuntimeSupport(t *testing.T) {
	node := testutil.CreateTestNode(
		testutil.WithType("executeworkflow"),
		testutil.WithParameters(map[string]any{"workflow_id": "wf-child"}),
	)

	handler, err := NewFactory().Create(context.Background(), node)
	require.NoError(t, err)

	_, err = handler.Execute(context.Background(), testutil.CreateExecuteRequest(node, nil))
	assert.Error(t, err)
}
