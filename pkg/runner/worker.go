package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/weftlabs/weft/pkg/engine"
	"github.com/weftlabs/weft/pkg/hooks"
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
	"github.com/weftlabs/weft/pkg/registry"
)

// defaultGracePeriod is how long a shutting-down worker lets the running
// execution finish before canceling it.
const defaultGracePeriod = 30 * time.Second

// binaryCopier is implemented by binary data services that can duplicate
// stored payloads under a new owning execution.
type binaryCopier interface {
	CopyForExecution(ctx context.Context, batches [][]models.ExecutionItem, executionID string) error
}

// WorkerConfig wires a worker to its collaborators.
type WorkerConfig struct {
	Logger   *slog.Logger
	Registry *registry.Registry
	// Binary is handed to node handlers; optional.
	Binary protocol.BinaryDataService
	// Tracer instruments node execution; optional.
	Tracer trace.Tracer
	// GracePeriod overrides the shutdown grace window.
	GracePeriod time.Duration
}

// Worker runs exactly one workflow execution inside an isolated process,
// driven by coordinator messages on its pipe. Lifecycle hooks are forwarded
// to the coordinator; persistence and sub-workflow resolution happen on the
// coordinator side.
type Worker struct {
	logger   *slog.Logger
	registry *registry.Registry
	binary   protocol.BinaryDataService
	tracer   trace.Tracer
	grace    time.Duration

	mu       sync.Mutex
	started  bool
	cancel   context.CancelCauseFunc
	idFuture chan ExecutionIDData

	finishOnce sync.Once
}

// NewWorker creates a worker for one execution.
func NewWorker(cfg WorkerConfig) *Worker {
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}

	return &Worker{
		logger:   cfg.Logger.With("module", "worker"),
		registry: cfg.Registry,
		binary:   cfg.Binary,
		tracer:   cfg.Tracer,
		grace:    grace,
	}
}

// Run serves the coordinator until the execution finished, the pipe closed
// or ctx was canceled (process shutdown). Shutdown grants the running
// execution the grace period before canceling it.
func (w *Worker) Run(ctx context.Context, transport *Transport) error {
	messages := make(chan *Message)
	readErrs := make(chan error, 1)

	go func() {
		for {
			msg, err := transport.Receive()
			if err != nil {
				readErrs <- err

				return
			}

			messages <- msg
		}
	}()

	done := make(chan struct{})

	for {
		select {
		case msg := <-messages:
			if err := w.handle(ctx, transport, msg, done); err != nil {
				w.sendError(ctx, transport, models.NewPermissionError(err.Error()))
			}

		case err := <-readErrs:
			w.stopRun(context.Canceled)

			if errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("failed to read coordinator message: %w", err)

		case <-done:
			_ = transport.Send(MsgEnd, nil)

			return nil

		case <-ctx.Done():
			return w.shutdown(transport, done)
		}
	}
}

func (w *Worker) handle(ctx context.Context, transport *Transport, msg *Message, done chan struct{}) error {
	switch msg.Type {
	case MsgStartWorkflow:
		var data StartWorkflowData
		if err := msg.Decode(&data); err != nil {
			return err
		}

		w.mu.Lock()
		if w.started {
			w.mu.Unlock()

			return errors.New("worker already runs an execution")
		}

		w.started = true
		runCtx, cancel := context.WithCancelCause(ctx)
		w.cancel = cancel
		w.mu.Unlock()

		go func() {
			defer close(done)

			w.execute(runCtx, transport, &data)
		}()

	case MsgStopExecution:
		w.stopRun(context.Canceled)

	case MsgTimeout:
		// The cause makes the engine record a timeout instead of a
		// cancellation.
		w.stopRun(context.DeadlineExceeded)

	case MsgExecutionID:
		var data ExecutionIDData
		if err := msg.Decode(&data); err != nil {
			return err
		}

		w.resolveExecutionID(data)

	default:
		w.logger.Warn("Ignoring unknown message", "type", msg.Type)
	}

	return nil
}

// shutdown handles process termination: the running execution gets the grace
// period, then a forced cancel.
func (w *Worker) shutdown(transport *Transport, done chan struct{}) error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	if !started {
		_ = transport.Send(MsgEnd, nil)

		return nil
	}

	select {
	case <-done:
	case <-time.After(w.grace):
		w.stopRun(context.Canceled)
		<-done
	}

	_ = transport.Send(MsgEnd, nil)

	return nil
}

func (w *Worker) stopRun(cause error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.cancel(cause)
	}
}

// execute runs the workflow and streams lifecycle messages back.
func (w *Worker) execute(ctx context.Context, transport *Transport, data *StartWorkflowData) {
	execution := data.Execution

	w.send(ctx, transport, MsgStart, nil)

	executionHooks := w.buildHooks(transport, execution, &w.finishOnce)

	eng, err := engine.New(engine.Config{
		Workflow:        data.Workflow,
		Registry:        w.registry,
		Hooks:           executionHooks,
		Logger:          w.logger,
		Binary:          w.binary,
		Tracer:          w.tracer,
		ExecuteWorkflow: w.subWorkflowRunner(transport),
	})
	if err != nil {
		// The run never started; report a synthetic failed execution so the
		// coordinator persists the failure.
		execErr := models.NewPermissionError(err.Error())
		w.failExecution(ctx, transport, execution, execErr)

		return
	}

	result := eng.Run(ctx, execution, data.Input)

	w.logger.InfoContext(ctx, "Execution finished",
		"execution_id", result.ID, "status", result.Status)
}

// buildHooks forwards every lifecycle event over the pipe, tagged with the
// execution they belong to. Forwarding is best effort: a closed pipe must not
// break the run.
func (w *Worker) buildHooks(transport *Transport, execution *models.Execution, finishOnce *sync.Once) *hooks.ExecutionHooks {
	executionHooks := hooks.New(w.logger, execution.ID, execution.WorkflowID, execution.Mode)

	executionHooks.AddWorkflowExecuteBefore(func(ctx context.Context) error {
		w.send(ctx, transport, MsgProcessHook, HookData{
			Hook:        HookWorkflowExecuteBefore,
			ExecutionID: execution.ID,
		})

		return nil
	})

	executionHooks.AddNodeExecuteBefore(func(ctx context.Context, nodeName string) error {
		w.send(ctx, transport, MsgProcessHook, HookData{
			Hook:        HookNodeExecuteBefore,
			ExecutionID: execution.ID,
			NodeName:    nodeName,
		})

		return nil
	})

	executionHooks.AddNodeExecuteAfter(func(ctx context.Context, nodeName string, taskData *models.TaskData) error {
		w.send(ctx, transport, MsgProcessHook, HookData{
			Hook:        HookNodeExecuteAfter,
			ExecutionID: execution.ID,
			NodeName:    nodeName,
			TaskData:    taskData,
		})

		// Live progress is only pushed for manual runs; other modes have no
		// UI session attached.
		if execution.Mode == models.ModeManual {
			w.send(ctx, transport, MsgSendDataToUI, SendDataToUIData{NodeName: nodeName, TaskData: taskData})
		}

		return nil
	})

	executionHooks.AddWorkflowExecuteAfter(func(ctx context.Context, finished *models.Execution, staticData map[string]any) error {
		finishOnce.Do(func() {
			w.send(ctx, transport, MsgFinishExecution, FinishExecutionData{
				Execution:  finished,
				StaticData: staticData,
			})
		})

		return nil
	})

	executionHooks.AddSendResponse(func(ctx context.Context, response map[string]any) error {
		w.send(ctx, transport, MsgSendResponse, SendResponseData{Response: response})

		return nil
	})

	return executionHooks
}

// subWorkflowRunner executes referenced workflows in this process, but asks
// the coordinator for the graph and the execution id: the worker itself has
// no database access. The nested run forwards its own lifecycle over the
// pipe and reports its final state as a separate finish message.
func (w *Worker) subWorkflowRunner(transport *Transport) protocol.ExecuteWorkflowFunc {
	return func(ctx context.Context, workflowID string, items []models.ExecutionItem) ([][]models.ExecutionItem, error) {
		reply, err := w.requestExecution(ctx, transport, workflowID)
		if err != nil {
			return nil, fmt.Errorf("failed to open sub-workflow %s: %w", workflowID, err)
		}

		subExecution := models.NewExecution(reply.ExecutionID, workflowID, models.ModeIntegrated)

		// The nested run owns copies of any stored binary payloads; the
		// parent's references stay valid for its own lifetime.
		if copier, ok := w.binary.(binaryCopier); ok {
			items = models.CopyItems(items)
			if err := copier.CopyForExecution(ctx, [][]models.ExecutionItem{items}, subExecution.ID); err != nil {
				return nil, fmt.Errorf("failed to copy binary data for sub-workflow %s: %w", workflowID, err)
			}
		}

		subHooks := w.buildHooks(transport, subExecution, &sync.Once{})

		eng, err := engine.New(engine.Config{
			Workflow:        reply.Workflow,
			Registry:        w.registry,
			Hooks:           subHooks,
			Logger:          w.logger,
			Binary:          w.binary,
			Tracer:          w.tracer,
			ExecuteWorkflow: w.subWorkflowRunner(transport),
		})
		if err != nil {
			return nil, err
		}

		result := eng.Run(ctx, subExecution, items)

		if result.Status != models.ExecutionStatusSuccess {
			if result.Data.ResultData.Error != nil {
				return nil, result.Data.ResultData.Error
			}

			return nil, fmt.Errorf("sub-workflow %s finished with status %s", workflowID, result.Status)
		}

		lastNode := result.Data.ResultData.LastNodeExecuted

		runs := result.Data.RunData[lastNode]
		if len(runs) == 0 {
			return nil, nil
		}

		return runs[len(runs)-1].Data, nil
	}
}

// requestExecution sends a startExecution request and blocks until the
// coordinator answers with the execution id. Sub-workflow calls happen one at
// a time: the engine is single-threaded, so at most one request is pending.
func (w *Worker) requestExecution(ctx context.Context, transport *Transport, workflowID string) (*ExecutionIDData, error) {
	future := make(chan ExecutionIDData, 1)

	w.mu.Lock()
	if w.idFuture != nil {
		w.mu.Unlock()

		return nil, errors.New("a sub-workflow request is already pending")
	}

	w.idFuture = future
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		if w.idFuture == future {
			w.idFuture = nil
		}
		w.mu.Unlock()
	}()

	if err := transport.Send(MsgStartExecution, StartExecutionData{WorkflowID: workflowID}); err != nil {
		return nil, err
	}

	select {
	case reply := <-future:
		if reply.Error != "" {
			return nil, errors.New(reply.Error)
		}

		if reply.Workflow == nil {
			return nil, errors.New("coordinator reply carries no workflow")
		}

		return &reply, nil

	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// resolveExecutionID delivers the coordinator's reply to the waiting
// sub-workflow request.
func (w *Worker) resolveExecutionID(data ExecutionIDData) {
	w.mu.Lock()
	future := w.idFuture
	w.idFuture = nil
	w.mu.Unlock()

	if future == nil {
		w.logger.Warn("Ignoring executionId message without pending request",
			"execution_id", data.ExecutionID)

		return
	}

	future <- data
}

// failExecution reports a run that could not start as a terminal error.
func (w *Worker) failExecution(ctx context.Context, transport *Transport, execution *models.Execution, execErr *models.ExecutionError) {
	execution.Data.ResultData.Error = execErr
	execution.Transition(models.ExecutionStatusRunning)
	execution.Transition(models.ExecutionStatusError)

	w.sendError(ctx, transport, execErr)

	w.finishOnce.Do(func() {
		w.send(ctx, transport, MsgFinishExecution, FinishExecutionData{Execution: execution})
	})
}

func (w *Worker) sendError(ctx context.Context, transport *Transport, execErr *models.ExecutionError) {
	w.send(ctx, transport, MsgProcessError, ProcessErrorData{Error: execErr})
}

// send logs and swallows transport failures; the run must not depend on the
// coordinator being able to receive.
func (w *Worker) send(ctx context.Context, transport *Transport, msgType string, payload any) {
	if err := transport.Send(msgType, payload); err != nil {
		w.logger.ErrorContext(ctx, "Failed to send message to coordinator",
			"type", msgType, "error", err)
	}
}
