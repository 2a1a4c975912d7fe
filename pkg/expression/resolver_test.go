package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/models"
)

func TestIsExpression(t *testing.T) {
	assert.True(t, IsExpression("={{ json.name }}"))
	assert.False(t, IsExpression("plain value"))
	assert.False(t, IsExpression("{{ not prefixed }}"))
	assert.False(t, IsExpression("={{ unterminated"))
}

func TestResolver_PlainValuesPassThrough(t *testing.T) {
	resolver := NewResolver()

	out, err := resolver.Resolve("hello", Env{})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	out, err = resolver.Resolve(42, Env{})
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestResolver_EvaluatesAgainstItem(t *testing.T) {
	resolver := NewResolver()

	item := models.NewItem(map[string]any{"price": 10, "quantity": 3})
	env := NewEnv(item, 0, nil, nil)

	out, err := resolver.Resolve("={{ json.price * json.quantity }}", env)
	require.NoError(t, err)
	assert.Equal(t, 30, out)

	out, err = resolver.Resolve("={{ item.json.price }}", env)
	require.NoError(t, err)
	assert.Equal(t, 10, out)
}

func TestResolver_ResolvesDeeply(t *testing.T) {
	resolver := NewResolver()

	item := models.NewItem(map[string]any{"name": "weft"})
	env := NewEnv(item, 2, nil, nil)

	parameters := map[string]any{
		"static": "value",
		"nested": map[string]any{
			"name":  "={{ json.name }}",
			"index": "={{ index }}",
		},
		"list": []any{"={{ json.name }}", "literal"},
	}

	resolved, err := resolver.ResolveParameters(parameters, env)
	require.NoError(t, err)

	nested, ok := resolved["nested"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "weft", nested["name"])
	assert.Equal(t, 2, nested["index"])

	list, ok := resolved["list"].([]any)
	require.True(t, ok)
	assert.Equal(t, "weft", list[0])
	assert.Equal(t, "literal", list[1])
}

func TestResolver_ExposesNodeOutputs(t *testing.T) {
	resolver := NewResolver()

	execution := models.NewExecution("exec-1", "wf-1", models.ModeManual)
	execution.Data.RunData["Fetch"] = []*models.TaskData{{
		Data: [][]models.ExecutionItem{{
			models.NewItem(map[string]any{"status": 200}),
			models.NewItem(map[string]any{"status": 404}),
		}},
	}}

	env := NewEnv(models.NewItem(nil), 0, execution, nil)

	out, err := resolver.Resolve(`={{ nodes.Fetch.json.status }}`, env)
	require.NoError(t, err)
	assert.Equal(t, 200, out)

	out, err = resolver.Resolve(`={{ len(nodes.Fetch.items) }}`, env)
	require.NoError(t, err)
	assert.Equal(t, 2, out)
}

func TestResolver_UndefinedVariablesResolveToNil(t *testing.T) {
	resolver := NewResolver()

	out, err := resolver.Resolve("={{ missing }}", NewEnv(models.NewItem(nil), 0, nil, nil))
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestResolver_CompileErrorSurfaces(t *testing.T) {
	resolver := NewResolver()

	_, err := resolver.Resolve("={{ 1 + }}", Env{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile")
}
