package ifnode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
	"github.com/weftlabs/weft/pkg/testutil"
)

func TestIfNode_PartitionsItems(t *testing.T) {
	node := testutil.CreateTestNode(testutil.WithType("if"))

	handler, err := NewFactory().Create(context.Background(), node)
	require.NoError(t, err)

	input := testutil.Items(
		map[string]any{"active": true},
		map[string]any{"active": false},
		map[string]any{"active": true},
	)

	req := &protocol.ExecuteRequest{
		Node:   node,
		Inputs: [][]models.ExecutionItem{input},
		Parameters: func(index int) (map[string]any, error) {
			return map[string]any{"condition": input[index].JSON["active"]}, nil
		},
	}

	result, err := handler.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Outputs, 2)

	assert.Len(t, result.Outputs[0], 2)
	assert.Len(t, result.Outputs[1], 1)
	assert.Equal(t, false, result.Outputs[1][0].JSON["active"])
}

func TestIfNode_PreservesInputOrderPerBranch(t *testing.T) {
	node := testutil.CreateTestNode(testutil.WithType("if"))

	handler, err := NewFactory().Create(context.Background(), node)
	require.NoError(t, err)

	input := testutil.Items(
		map[string]any{"id": 1},
		map[string]any{"id": 2},
		map[string]any{"id": 3},
	)

	req := &protocol.ExecuteRequest{
		Node:   node,
		Inputs: [][]models.ExecutionItem{input},
		Parameters: func(index int) (map[string]any, error) {
			return map[string]any{"condition": index != 1}, nil
		},
	}

	result, err := handler.Execute(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, result.Outputs[0], 2)
	assert.Equal(t, 1, result.Outputs[0][0].JSON["id"])
	assert.Equal(t, 3, result.Outputs[0][1].JSON["id"])
	assert.Equal(t, 0, result.Outputs[0][0].PairedItem[0].Item)
	assert.Equal(t, 2, result.Outputs[0][1].PairedItem[0].Item)
}

func TestTruthy(t *testing.T) {
	assert.True(t, truthy(true))
	assert.True(t, truthy("yes"))
	assert.True(t, truthy(float64(3)))
	assert.True(t, truthy([]any{1}))

	assert.False(t, truthy(false))
	assert.False(t, truthy(""))
	assert.False(t, truthy("false"))
	assert.False(t, truthy(float64(0)))
	assert.False(t, truthy(nil))
	assert.False(t, truthy(map[string]any{}))
}
