package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weftlabs/weft/pkg/hooks"
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence"
)

// ProcessRunner drives one worker from the parent process: it sends the
// start request, re-dispatches forwarded hooks into the parent's hook set,
// resolves sub-workflow requests against the store and collects the final
// execution state.
type ProcessRunner struct {
	logger    *slog.Logger
	transport *Transport
	hooks     *hooks.ExecutionHooks
	store     persistence.Persistence
	grace     time.Duration

	cmd *exec.Cmd

	executionID string

	mu       sync.Mutex
	finished bool
	result   *models.Execution
}

// NewProcessRunner wraps an already connected transport, typically built by
// Spawn or an in-memory pipe in tests. The store resolves sub-workflow
// requests and persists nested executions; nil disables sub-workflows.
func NewProcessRunner(logger *slog.Logger, transport *Transport, executionHooks *hooks.ExecutionHooks, store persistence.Persistence) *ProcessRunner {
	return &ProcessRunner{
		logger:    logger.With("module", "coordinator"),
		transport: transport,
		hooks:     executionHooks,
		store:     store,
		grace:     defaultGracePeriod,
	}
}

// Spawn starts the worker binary with its stdin/stdout as the message pipe;
// stderr passes through for worker logs.
func Spawn(ctx context.Context, logger *slog.Logger, executionHooks *hooks.ExecutionHooks, store persistence.Persistence, binary string, args ...string) (*ProcessRunner, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdin: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker process: %w", err)
	}

	runner := NewProcessRunner(logger, NewTransport(stdout, stdin), executionHooks, store)
	runner.cmd = cmd

	return runner, nil
}

// Run sends the execution to the worker and pumps messages until the final
// state arrived or the pipe closed. The returned execution reflects what the
// worker reported last.
func (r *ProcessRunner) Run(ctx context.Context, workflow *models.Workflow, execution *models.Execution, input []models.ExecutionItem) (*models.Execution, error) {
	r.executionID = execution.ID

	err := r.transport.Send(MsgStartWorkflow, StartWorkflowData{
		Workflow:  workflow,
		Execution: execution,
		Input:     input,
	})
	if err != nil {
		return nil, err
	}

	for {
		msg, err := r.transport.Receive()
		if errors.Is(err, io.EOF) {
			return r.finalize(execution)
		}

		if err != nil {
			return nil, fmt.Errorf("failed to read worker message: %w", err)
		}

		stop, err := r.dispatch(ctx, msg)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to handle worker message",
				"type", msg.Type, "error", err)
		}

		if stop {
			return r.finalize(execution)
		}
	}
}

// Stop asks the worker to cancel, then kills the process if it does not exit
// within the grace period.
func (r *ProcessRunner) Stop(ctx context.Context) error {
	if err := r.transport.Send(MsgStopExecution, nil); err != nil {
		r.logger.ErrorContext(ctx, "Failed to send stop request", "error", err)
	}

	return r.reap(ctx)
}

// Timeout tells the worker the run deadline expired, then reaps it.
func (r *ProcessRunner) Timeout(ctx context.Context) error {
	if err := r.transport.Send(MsgTimeout, nil); err != nil {
		r.logger.ErrorContext(ctx, "Failed to send timeout request", "error", err)
	}

	return r.reap(ctx)
}

// dispatch handles one worker message; true means the conversation is over.
func (r *ProcessRunner) dispatch(ctx context.Context, msg *Message) (bool, error) {
	switch msg.Type {
	case MsgStart:
		return false, nil

	case MsgStartExecution:
		var data StartExecutionData
		if err := msg.Decode(&data); err != nil {
			return false, err
		}

		reply := r.openExecution(ctx, &data)

		return false, r.transport.Send(MsgExecutionID, reply)

	case MsgProcessHook:
		var data HookData
		if err := msg.Decode(&data); err != nil {
			return false, err
		}

		r.fireHook(ctx, &data)

		return false, nil

	case MsgSendResponse:
		var data SendResponseData
		if err := msg.Decode(&data); err != nil {
			return false, err
		}

		r.hooks.SendResponse(ctx, data.Response)

		return false, nil

	case MsgSendDataToUI:
		// Progress push; nothing to persist.
		return false, nil

	case MsgFinishExecution:
		var data FinishExecutionData
		if err := msg.Decode(&data); err != nil {
			return false, err
		}

		if data.Execution != nil && data.Execution.ID != r.executionID {
			r.recordNestedFinish(ctx, &data)

			return false, nil
		}

		r.recordFinish(ctx, &data)

		return false, nil

	case MsgProcessError:
		var data ProcessErrorData
		if err := msg.Decode(&data); err != nil {
			return false, err
		}

		r.logger.ErrorContext(ctx, "Worker reported error", "error", data.Error)

		return false, nil

	case MsgEnd:
		return true, nil

	default:
		r.logger.WarnContext(ctx, "Ignoring unknown worker message", "type", msg.Type)

		return false, nil
	}
}

// openExecution resolves a sub-workflow request: load the graph, create and
// persist a fresh integrated-mode execution, and hand both back. Failures
// travel back as an error reply instead of breaking the pipe.
func (r *ProcessRunner) openExecution(ctx context.Context, data *StartExecutionData) ExecutionIDData {
	if r.store == nil {
		return ExecutionIDData{Error: "sub-workflows need a persistence store on the coordinator"}
	}

	workflow, err := r.store.WorkflowByID(ctx, data.WorkflowID)
	if err != nil {
		return ExecutionIDData{Error: fmt.Sprintf("failed to load workflow %s: %v", data.WorkflowID, err)}
	}

	execution := models.NewExecution(uuid.New().String(), data.WorkflowID, models.ModeIntegrated)

	if err := r.store.SaveExecution(ctx, execution); err != nil {
		return ExecutionIDData{Error: fmt.Sprintf("failed to save execution: %v", err)}
	}

	r.logger.InfoContext(ctx, "Opened sub-workflow execution",
		"workflow_id", data.WorkflowID, "execution_id", execution.ID)

	return ExecutionIDData{ExecutionID: execution.ID, Workflow: workflow}
}

// recordFinish stores the final execution once; a duplicate finish message
// from the worker is ignored.
func (r *ProcessRunner) recordFinish(ctx context.Context, data *FinishExecutionData) {
	r.mu.Lock()

	if r.finished {
		r.mu.Unlock()
		r.logger.WarnContext(ctx, "Ignoring duplicate finish message",
			"execution_id", data.Execution.ID)

		return
	}

	r.finished = true
	r.result = data.Execution
	r.mu.Unlock()

	r.hooks.WorkflowExecuteAfter(ctx, data.Execution, data.StaticData)
}

// recordNestedFinish persists the final state of a sub-workflow execution.
// The parent's hook set stays untouched: it belongs to the top-level run.
func (r *ProcessRunner) recordNestedFinish(ctx context.Context, data *FinishExecutionData) {
	r.logger.InfoContext(ctx, "Sub-workflow execution finished",
		"execution_id", data.Execution.ID, "status", data.Execution.Status)

	if r.store == nil {
		return
	}

	if err := r.store.SaveExecution(ctx, data.Execution); err != nil {
		r.logger.ErrorContext(ctx, "Failed to persist sub-workflow execution",
			"execution_id", data.Execution.ID, "error", err)
	}
}

func (r *ProcessRunner) fireHook(ctx context.Context, data *HookData) {
	if data.ExecutionID != "" && data.ExecutionID != r.executionID {
		// Nested run lifecycle; its terminal state arrives as a finish
		// message, node-level progress is only surfaced in the log.
		r.logger.DebugContext(ctx, "Sub-workflow hook relayed",
			"execution_id", data.ExecutionID, "hook", data.Hook, "node", data.NodeName)

		return
	}

	switch data.Hook {
	case HookWorkflowExecuteBefore:
		r.hooks.WorkflowExecuteBefore(ctx)
	case HookNodeExecuteBefore:
		r.hooks.NodeExecuteBefore(ctx, data.NodeName)
	case HookNodeExecuteAfter:
		r.hooks.NodeExecuteAfter(ctx, data.NodeName, data.TaskData)
	case HookWorkflowExecuteAfter:
		// Delivered through the finish message instead.
	default:
		r.logger.WarnContext(ctx, "Ignoring unknown hook", "hook", data.Hook)
	}
}

// finalize returns the recorded final state, or an error when the worker
// vanished without reporting one.
func (r *ProcessRunner) finalize(execution *models.Execution) (*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.result != nil {
		return r.result, nil
	}

	return nil, fmt.Errorf("worker exited without finishing execution %s", execution.ID)
}

// reap waits for the worker process to exit, killing it after the grace
// period. A pipe-only runner has no process to reap.
func (r *ProcessRunner) reap(ctx context.Context) error {
	if r.cmd == nil {
		return nil
	}

	exited := make(chan error, 1)

	go func() {
		exited <- r.cmd.Wait()
	}()

	select {
	case err := <-exited:
		return err
	case <-time.After(r.grace):
		r.logger.WarnContext(ctx, "Worker did not exit in time, killing process")

		if err := r.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill worker process: %w", err)
		}

		return <-exited
	}
}
