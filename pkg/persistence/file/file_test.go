package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence"
	"github.com/weftlabs/weft/pkg/testutil"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	return NewPersistence(t.TempDir())
}

func TestWorkflowRoundTrip(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	workflow := testutil.CreateTestWorkflow(
		[]*models.Node{testutil.CreateTestNode(testutil.WithName("Only"))},
		models.Connections{},
	)

	require.NoError(t, p.SaveWorkflow(ctx, workflow))
	assert.False(t, workflow.CreatedAt.IsZero())

	loaded, err := p.WorkflowByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.ID, loaded.ID)
	require.Len(t, loaded.Nodes, 1)
	assert.Equal(t, "Only", loaded.Nodes[0].Name)
}

func TestWorkflowNotFound(t *testing.T) {
	p := newTestPersistence(t)

	_, err := p.WorkflowByID(context.Background(), "missing")
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestWorkflowDelete(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	workflow := testutil.CreateTestWorkflow(nil, models.Connections{})
	require.NoError(t, p.SaveWorkflow(ctx, workflow))
	require.NoError(t, p.DeleteWorkflow(ctx, workflow.ID))

	_, err := p.WorkflowByID(ctx, workflow.ID)
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	assert.ErrorIs(t, p.DeleteWorkflow(ctx, workflow.ID), persistence.ErrWorkflowNotFound)
}

func TestWorkflowsEmptyRoot(t *testing.T) {
	p := newTestPersistence(t)

	workflows, err := p.Workflows(context.Background())
	require.NoError(t, err)
	assert.Empty(t, workflows)
}

func TestExecutionRoundTrip(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	execution := testutil.CreateTestExecution("wf-1")
	execution.Data.ResultData.LastNodeExecuted = "Final"

	require.NoError(t, p.SaveExecution(ctx, execution))

	loaded, err := p.ExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.ID, loaded.ID)
	assert.Equal(t, "Final", loaded.Data.ResultData.LastNodeExecuted)
	assert.Equal(t, models.ExecutionStatusNew, loaded.Status)
}

func TestExecutionsByWorkflow(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	first := testutil.CreateTestExecution("wf-1")
	second := testutil.CreateTestExecution("wf-1")
	other := testutil.CreateTestExecution("wf-2")

	require.NoError(t, p.SaveExecution(ctx, first))
	require.NoError(t, p.SaveExecution(ctx, second))
	require.NoError(t, p.SaveExecution(ctx, other))

	executions, err := p.ExecutionsByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, executions, 2)
}

func TestWaitingExecutions(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	now := time.Now().UTC()

	due := testutil.CreateTestExecution("wf-1")
	due.Status = models.ExecutionStatusWaiting
	wakeAt := now.Add(30 * time.Second)
	due.WaitTill = &wakeAt

	later := testutil.CreateTestExecution("wf-1")
	later.Status = models.ExecutionStatusWaiting
	farAway := now.Add(3 * time.Hour)
	later.WaitTill = &farAway

	running := testutil.CreateTestExecution("wf-1")
	running.Status = models.ExecutionStatusRunning

	require.NoError(t, p.SaveExecution(ctx, due))
	require.NoError(t, p.SaveExecution(ctx, later))
	require.NoError(t, p.SaveExecution(ctx, running))

	waiting, err := p.WaitingExecutions(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, due.ID, waiting[0].ID)
}
