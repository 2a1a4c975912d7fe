package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
	"github.com/weftlabs/weft/pkg/testutil"
)

func TestMergeNode_Append(t *testing.T) {
	node := testutil.CreateTestNode(
		testutil.WithType("merge"),
		testutil.WithParameters(map[string]any{"mode": "append"}),
	)

	handler, err := NewFactory().Create(context.Background(), node)
	require.NoError(t, err)

	first := testutil.Items(map[string]any{"id": 1}, map[string]any{"id": 2})
	second := testutil.Items(map[string]any{"id": 3})

	result, err := handler.Execute(context.Background(), testutil.CreateExecuteRequest(node, [][]models.ExecutionItem{first, second}))
	require.NoError(t, err)
	require.Len(t, result.Outputs, 1)
	require.Len(t, result.Outputs[0], 3)

	assert.Equal(t, 1, result.Outputs[0][0].JSON["id"])
	assert.Equal(t, 3, result.Outputs[0][2].JSON["id"])
}

func TestMergeNode_Combine(t *testing.T) {
	node := testutil.CreateTestNode(
		testutil.WithType("merge"),
		testutil.WithParameters(map[string]any{"mode": "combine"}),
	)

	handler, err := NewFactory().Create(context.Background(), node)
	require.NoError(t, err)

	first := testutil.Items(map[string]any{"id": 1, "shared": "first"})
	second := testutil.Items(map[string]any{"name": "one", "shared": "second"}, map[string]any{"name": "two"})

	result, err := handler.Execute(context.Background(), testutil.CreateExecuteRequest(node, [][]models.ExecutionItem{first, second}))
	require.NoError(t, err)
	require.Len(t, result.Outputs[0], 2)

	combined := result.Outputs[0][0]
	assert.Equal(t, 1, combined.JSON["id"])
	assert.Equal(t, "one", combined.JSON["name"])
	assert.Equal(t, "second", combined.JSON["shared"])
	assert.Len(t, combined.PairedItem, 2)

	tail := result.Outputs[0][1]
	assert.Equal(t, "two", tail.JSON["name"])
	assert.Len(t, tail.PairedItem, 1)
}

func TestMergeNode_UnknownModeRejected(t *testing.T) {
	node := testutil.CreateTestNode(
		testutil.WithType("merge"),
		testutil.WithParameters(map[string]any{"mode": "zip"}),
	)

	_, err := NewFactory().Create(context.Background(), node)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown merge mode")
}

func TestMergeNode_InputSpecs(t *testing.T) {
	required, err := NewFactory().Create(context.Background(), testutil.CreateTestNode(testutil.WithType("merge")))
	require.NoError(t, err)

	specs := required.(protocol.MultiInputNode).Inputs()
	require.Len(t, specs, 2)
	assert.False(t, specs[0].Optional)
	assert.False(t, specs[1].Optional)

	relaxed, err := NewFactory().Create(context.Background(), testutil.CreateTestNode(
		testutil.WithType("merge"),
		testutil.WithParameters(map[string]any{"require_all": false}),
	))
	require.NoError(t, err)

	specs = relaxed.(protocol.MultiInputNode).Inputs()
	assert.True(t, specs[1].Optional)
}
