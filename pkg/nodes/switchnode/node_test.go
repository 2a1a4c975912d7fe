package switchnode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
	"github.com/weftlabs/weft/pkg/testutil"
)

func TestSwitchNode_RoutesByIndex(t *testing.T) {
	node := testutil.CreateTestNode(
		testutil.WithType("switch"),
		testutil.WithParameters(map[string]any{"outputs": 3, "output_index": 0}),
	)

	handler, err := NewFactory().Create(context.Background(), node)
	require.NoError(t, err)

	input := testutil.Items(
		map[string]any{"priority": 2},
		map[string]any{"priority": 0},
		map[string]any{"priority": 2},
	)

	req := &protocol.ExecuteRequest{
		Node:   node,
		Inputs: [][]models.ExecutionItem{input},
		Parameters: func(index int) (map[string]any, error) {
			return map[string]any{"output_index": input[index].JSON["priority"]}, nil
		},
	}

	result, err := handler.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Outputs, 3)

	assert.Len(t, result.Outputs[0], 1)
	assert.Empty(t, result.Outputs[1])
	assert.Len(t, result.Outputs[2], 2)
}

func TestSwitchNode_OutOfRangeDroppedWithoutFallback(t *testing.T) {
	node := testutil.CreateTestNode(
		testutil.WithType("switch"),
		testutil.WithParameters(map[string]any{"outputs": 2, "output_index": 9}),
	)

	handler, err := NewFactory().Create(context.Background(), node)
	require.NoError(t, err)

	input := testutil.Items(map[string]any{"id": 1})

	result, err := handler.Execute(context.Background(), testutil.CreateExecuteRequest(node, [][]models.ExecutionItem{input}))
	require.NoError(t, err)

	assert.Empty(t, result.Outputs[0])
	assert.Empty(t, result.Outputs[1])
}

func TestSwitchNode_OutOfRangeUsesFallback(t *testing.T) {
	node := testutil.CreateTestNode(
		testutil.WithType("switch"),
		testutil.WithParameters(map[string]any{
			"outputs":         2,
			"output_index":    9,
			"fallback_output": 1,
		}),
	)

	handler, err := NewFactory().Create(context.Background(), node)
	require.NoError(t, err)

	input := testutil.Items(map[string]any{"id": 1})

	result, err := handler.Execute(context.Background(), testutil.CreateExecuteRequest(node, [][]models.ExecutionItem{input}))
	require.NoError(t, err)

	assert.Empty(t, result.Outputs[0])
	assert.Len(t, result.Outputs[1], 1)
}

func TestSwitchNode_NonIntegerIndexFails(t *testing.T) {
	node := testutil.CreateTestNode(
		testutil.WithType("switch"),
		testutil.WithParameters(map[string]any{"outputs": 2, "output_index": "not-a-number"}),
	)

	handler, err := NewFactory().Create(context.Background(), node)
	require.NoError(t, err)

	input := testutil.Items(map[string]any{"id": 1})

	_, err = handler.Execute(context.Background(), testutil.CreateExecuteRequest(node, [][]models.ExecutionItem{input}))
	assert.Error(t, err)
}
