package runner

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/hooks"
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/nodes/executeworkflow"
	"github.com/weftlabs/weft/pkg/nodes/set"
	"github.com/weftlabs/weft/pkg/persistence/file"
	"github.com/weftlabs/weft/pkg/protocol"
	"github.com/weftlabs/weft/pkg/registry"
	"github.com/weftlabs/weft/pkg/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pipePair connects a worker and a coordinator through in-memory pipes.
func pipePair() (worker *Transport, coordinator *Transport) {
	toWorkerReader, toWorkerWriter := io.Pipe()
	toCoordinatorReader, toCoordinatorWriter := io.Pipe()

	worker = NewTransport(toWorkerReader, toCoordinatorWriter)
	coordinator = NewTransport(toCoordinatorReader, toWorkerWriter)

	return worker, coordinator
}

type blockingFactory struct{}

func (f *blockingFactory) Create(_ context.Context, _ *models.Node) (protocol.NodeHandler, error) {
	return blockingHandler{}, nil
}

func (f *blockingFactory) Type() string           { return "block" }
func (f *blockingFactory) Version() int           { return 1 }
func (f *blockingFactory) Description() string    { return "blocks until canceled" }
func (f *blockingFactory) Schema() map[string]any { return nil }

type blockingHandler struct{}

func (blockingHandler) Execute(ctx context.Context, req *protocol.ExecuteRequest) (*protocol.ExecuteResult, error) {
	<-ctx.Done()

	return &protocol.ExecuteResult{Outputs: [][]models.ExecutionItem{req.AllInputItems()}}, nil
}

func testRegistry() *registry.Registry {
	reg := registry.NewRegistry(testLogger())
	reg.Register(set.NewFactory())
	reg.Register(executeworkflow.NewFactory())
	reg.Register(&blockingFactory{})

	return reg
}

func startWorker(t *testing.T, transport *Transport) {
	t.Helper()

	worker := NewWorker(WorkerConfig{
		Logger:   testLogger(),
		Registry: testRegistry(),
	})

	go func() {
		_ = worker.Run(context.Background(), transport)
	}()
}

func simpleWorkflow() *models.Workflow {
	return testutil.CreateTestWorkflow(
		[]*models.Node{
			testutil.CreateTestNode(
				testutil.WithName("Only"),
				testutil.WithType("set"),
				testutil.WithParameters(map[string]any{"fields": map[string]any{"done": true}}),
			),
		},
		models.Connections{},
	)
}

func TestProcessRunner_RoundTrip(t *testing.T) {
	workerTransport, coordinatorTransport := pipePair()
	startWorker(t, workerTransport)

	workflow := simpleWorkflow()
	execution := testutil.CreateTestExecution(workflow.ID)

	executionHooks := hooks.New(testLogger(), execution.ID, workflow.ID, models.ModeManual)

	var events []string

	executionHooks.AddNodeExecuteAfter(func(_ context.Context, nodeName string, data *models.TaskData) error {
		require.NotNil(t, data)
		events = append(events, "nodeAfter:"+nodeName)

		return nil
	})
	executionHooks.AddWorkflowExecuteAfter(func(_ context.Context, finished *models.Execution, _ map[string]any) error {
		events = append(events, "workflowAfter:"+string(finished.Status))

		return nil
	})

	runner := NewProcessRunner(testLogger(), coordinatorTransport, executionHooks, nil)

	result, err := runner.Run(context.Background(), workflow, execution, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSuccess, result.Status)
	assert.Equal(t, "Only", result.Data.ResultData.LastNodeExecuted)
	assert.Equal(t, []string{"nodeAfter:Only", "workflowAfter:success"}, events)
}

func TestProcessRunner_StopCancelsRun(t *testing.T) {
	workerTransport, coordinatorTransport := pipePair()
	startWorker(t, workerTransport)

	workflow := testutil.CreateTestWorkflow(
		[]*models.Node{
			testutil.CreateTestNode(testutil.WithName("Blocks"), testutil.WithType("block")),
			testutil.CreateTestNode(
				testutil.WithName("Never"),
				testutil.WithType("set"),
				testutil.WithParameters(map[string]any{"fields": map[string]any{}}),
			),
		},
		models.Connections{
			"Blocks": {{{Node: "Never", Index: 0}}},
		},
	)

	execution := testutil.CreateTestExecution(workflow.ID)
	executionHooks := hooks.New(testLogger(), execution.ID, workflow.ID, models.ModeManual)
	runner := NewProcessRunner(testLogger(), coordinatorTransport, executionHooks, nil)

	type outcome struct {
		result *models.Execution
		err    error
	}

	results := make(chan outcome, 1)

	go func() {
		result, err := runner.Run(context.Background(), workflow, execution, nil)
		results <- outcome{result, err}
	}()

	// Let the worker reach the blocking node before stopping.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, runner.Stop(context.Background()))

	select {
	case out := <-results:
		require.NoError(t, out.err)
		assert.Equal(t, models.ExecutionStatusCanceled, out.result.Status)
		require.NotNil(t, out.result.Data.ResultData.Error)
		assert.False(t, out.result.Data.ResultData.Error.Timeout)
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator did not finish after stop")
	}
}

func TestProcessRunner_TimeoutMarksTimeout(t *testing.T) {
	workerTransport, coordinatorTransport := pipePair()
	startWorker(t, workerTransport)

	workflow := testutil.CreateTestWorkflow(
		[]*models.Node{
			testutil.CreateTestNode(testutil.WithName("Blocks"), testutil.WithType("block")),
			testutil.CreateTestNode(
				testutil.WithName("Never"),
				testutil.WithType("set"),
				testutil.WithParameters(map[string]any{"fields": map[string]any{}}),
			),
		},
		models.Connections{
			"Blocks": {{{Node: "Never", Index: 0}}},
		},
	)

	execution := testutil.CreateTestExecution(workflow.ID)
	executionHooks := hooks.New(testLogger(), execution.ID, workflow.ID, models.ModeManual)
	runner := NewProcessRunner(testLogger(), coordinatorTransport, executionHooks, nil)

	results := make(chan *models.Execution, 1)

	go func() {
		result, err := runner.Run(context.Background(), workflow, execution, nil)
		require.NoError(t, err)
		results <- result
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, runner.Timeout(context.Background()))

	select {
	case result := <-results:
		assert.Equal(t, models.ExecutionStatusError, result.Status)
		require.NotNil(t, result.Data.ResultData.Error)
		assert.True(t, result.Data.ResultData.Error.Timeout)
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator did not finish after timeout")
	}
}

func TestProcessRunner_DuplicateFinishIgnored(t *testing.T) {
	peerTransport, coordinatorTransport := pipePair()

	executionHooks := hooks.New(testLogger(), "exec-1", "wf-1", models.ModeManual)

	var finishes int

	executionHooks.AddWorkflowExecuteAfter(func(context.Context, *models.Execution, map[string]any) error {
		finishes++

		return nil
	})

	runner := NewProcessRunner(testLogger(), coordinatorTransport, executionHooks, nil)

	workflow := simpleWorkflow()
	execution := testutil.CreateTestExecution(workflow.ID)
	execution.Status = models.ExecutionStatusSuccess

	// Scripted worker: consume the start request, report finish twice, end.
	go func() {
		_, _ = peerTransport.Receive()

		_ = peerTransport.Send(MsgFinishExecution, FinishExecutionData{Execution: execution})
		_ = peerTransport.Send(MsgFinishExecution, FinishExecutionData{Execution: execution})
		_ = peerTransport.Send(MsgEnd, nil)
	}()

	result, err := runner.Run(context.Background(), workflow, execution, nil)
	require.NoError(t, err)

	assert.Equal(t, execution.ID, result.ID)
	assert.Equal(t, 1, finishes)
}

func TestProcessRunner_SubWorkflowResolvedByCoordinator(t *testing.T) {
	workerTransport, coordinatorTransport := pipePair()
	startWorker(t, workerTransport)

	store := file.NewPersistence(t.TempDir())

	child := testutil.CreateTestWorkflow(
		[]*models.Node{
			testutil.CreateTestNode(
				testutil.WithName("Mark"),
				testutil.WithType("set"),
				testutil.WithParameters(map[string]any{"fields": map[string]any{"from_child": true}}),
			),
		},
		models.Connections{},
	)
	require.NoError(t, store.SaveWorkflow(context.Background(), child))

	parent := testutil.CreateTestWorkflow(
		[]*models.Node{
			testutil.CreateTestNode(
				testutil.WithName("Call"),
				testutil.WithType("executeworkflow"),
				testutil.WithParameters(map[string]any{"workflow_id": child.ID}),
			),
		},
		models.Connections{},
	)

	execution := testutil.CreateTestExecution(parent.ID)
	executionHooks := hooks.New(testLogger(), execution.ID, parent.ID, models.ModeManual)
	runner := NewProcessRunner(testLogger(), coordinatorTransport, executionHooks, store)

	result, err := runner.Run(context.Background(), parent, execution, nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusSuccess, result.Status)

	runs := result.Data.RunData["Call"]
	require.Len(t, runs, 1)
	assert.Equal(t, true, runs[0].Data[0][0].JSON["from_child"])

	// The nested run was opened on this side of the pipe and persisted with
	// its own id.
	nested, err := store.ExecutionsByWorkflow(context.Background(), child.ID)
	require.NoError(t, err)
	require.Len(t, nested, 1)
	assert.Equal(t, models.ModeIntegrated, nested[0].Mode)
	assert.Equal(t, models.ExecutionStatusSuccess, nested[0].Status)
	assert.NotEqual(t, execution.ID, nested[0].ID)
	assert.Equal(t, "Mark", nested[0].Data.ResultData.LastNodeExecuted)
}

func TestProcessRunner_SubWorkflowWithoutStoreFails(t *testing.T) {
	workerTransport, coordinatorTransport := pipePair()
	startWorker(t, workerTransport)

	parent := testutil.CreateTestWorkflow(
		[]*models.Node{
			testutil.CreateTestNode(
				testutil.WithName("Call"),
				testutil.WithType("executeworkflow"),
				testutil.WithParameters(map[string]any{"workflow_id": "wf-child"}),
			),
		},
		models.Connections{},
	)

	execution := testutil.CreateTestExecution(parent.ID)
	executionHooks := hooks.New(testLogger(), execution.ID, parent.ID, models.ModeManual)
	runner := NewProcessRunner(testLogger(), coordinatorTransport, executionHooks, nil)

	result, err := runner.Run(context.Background(), parent, execution, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusError, result.Status)
	require.NotNil(t, result.Data.ResultData.Error)
	assert.Contains(t, result.Data.ResultData.Error.Message, "persistence")
}

func TestProcessRunner_WorkerVanishedWithoutFinish(t *testing.T) {
	peerTransport, coordinatorTransport := pipePair()

	executionHooks := hooks.New(testLogger(), "exec-1", "wf-1", models.ModeManual)
	runner := NewProcessRunner(testLogger(), coordinatorTransport, executionHooks, nil)

	workflow := simpleWorkflow()
	execution := testutil.CreateTestExecution(workflow.ID)

	go func() {
		_, _ = peerTransport.Receive()
		_ = peerTransport.Send(MsgEnd, nil)
	}()

	_, err := runner.Run(context.Background(), workflow, execution, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without finishing")
}
