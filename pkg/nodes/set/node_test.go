package set

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/testutil"
)

func TestSetNode_AssignsFields(t *testing.T) {
	node := testutil.CreateTestNode(
		testutil.WithType("set"),
		testutil.WithParameters(map[string]any{
			"fields": map[string]any{"status": "processed"},
		}),
	)

	factory := NewFactory()
	handler, err := factory.Create(context.Background(), node)
	require.NoError(t, err)

	input := testutil.Items(
		map[string]any{"id": 1},
		map[string]any{"id": 2},
	)

	result, err := handler.Execute(context.Background(), testutil.CreateExecuteRequest(node, [][]models.ExecutionItem{input}))
	require.NoError(t, err)
	require.Len(t, result.Outputs, 1)
	require.Len(t, result.Outputs[0], 2)

	assert.Equal(t, "processed", result.Outputs[0][0].JSON["status"])
	assert.Equal(t, 1, result.Outputs[0][0].JSON["id"])
	assert.Equal(t, "processed", result.Outputs[0][1].JSON["status"])
}

func TestSetNode_KeepOnlySet(t *testing.T) {
	node := testutil.CreateTestNode(
		testutil.WithType("set"),
		testutil.WithParameters(map[string]any{
			"fields":        map[string]any{"kept": true},
			"keep_only_set": true,
		}),
	)

	handler, err := NewFactory().Create(context.Background(), node)
	require.NoError(t, err)

	input := testutil.Items(map[string]any{"dropped": "value"})

	result, err := handler.Execute(context.Background(), testutil.CreateExecuteRequest(node, [][]models.ExecutionItem{input}))
	require.NoError(t, err)
	require.Len(t, result.Outputs[0], 1)

	assert.Equal(t, map[string]any{"kept": true}, result.Outputs[0][0].JSON)
}

func TestSetNode_PairsOutputToInput(t *testing.T) {
	node := testutil.CreateTestNode(
		testutil.WithType("set"),
		testutil.WithParameters(map[string]any{"fields": map[string]any{}}),
	)

	handler, err := NewFactory().Create(context.Background(), node)
	require.NoError(t, err)

	input := testutil.Items(map[string]any{"id": 1}, map[string]any{"id": 2})

	result, err := handler.Execute(context.Background(), testutil.CreateExecuteRequest(node, [][]models.ExecutionItem{input}))
	require.NoError(t, err)

	require.Len(t, result.Outputs[0][1].PairedItem, 1)
	assert.Equal(t, 1, result.Outputs[0][1].PairedItem[0].Item)
}
