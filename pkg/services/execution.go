package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/weftlabs/weft/pkg/engine"
	"github.com/weftlabs/weft/pkg/eventbus"
	"github.com/weftlabs/weft/pkg/hooks"
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence"
	"github.com/weftlabs/weft/pkg/protocol"
	"github.com/weftlabs/weft/pkg/registry"
	"github.com/weftlabs/weft/pkg/runner"
)

// defaultWebhookTimeout is how long a webhook call waits for the run to
// produce its response before answering with just the execution id.
const defaultWebhookTimeout = 30 * time.Second

// binaryCopier is implemented by binary data services that can duplicate
// stored payloads under a new owning execution.
type binaryCopier interface {
	CopyForExecution(ctx context.Context, batches [][]models.ExecutionItem, executionID string) error
}

// ExecutionConfig wires the execution service to its collaborators.
type ExecutionConfig struct {
	Logger   *slog.Logger
	Store    persistence.Persistence
	Registry *registry.Registry
	// Binary is handed to node handlers; optional.
	Binary protocol.BinaryDataService
	// Bus receives lifecycle events; optional.
	Bus eventbus.EventBus
	// Tracer instruments in-process node execution; optional.
	Tracer trace.Tracer
	// WorkerBinary, when set, runs each execution in a spawned worker
	// process. Empty means in-process execution.
	WorkerBinary string
	WorkerArgs   []string
	WorkerID     string
	// WebhookTimeout overrides how long webhook calls wait for a response.
	WebhookTimeout time.Duration
}

// Execution starts, resumes, inspects and stops workflow runs. Each run
// happens either in a spawned worker process or in-process; either way the
// final state is persisted through the workflowExecuteAfter hook.
type Execution struct {
	logger         *slog.Logger
	store          persistence.Persistence
	registry       *registry.Registry
	binary         protocol.BinaryDataService
	publisher      *eventbus.ExecutionEventPublisher
	tracer         trace.Tracer
	workerBinary   string
	workerArgs     []string
	webhookTimeout time.Duration

	mu      sync.Mutex
	active  map[string]*runner.ProcessRunner
	cancels map[string]context.CancelFunc
}

// NewExecution creates the execution service.
func NewExecution(cfg ExecutionConfig) *Execution {
	webhookTimeout := cfg.WebhookTimeout
	if webhookTimeout <= 0 {
		webhookTimeout = defaultWebhookTimeout
	}

	service := &Execution{
		logger:         cfg.Logger.With("module", "execution_service"),
		store:          cfg.Store,
		registry:       cfg.Registry,
		binary:         cfg.Binary,
		tracer:         cfg.Tracer,
		workerBinary:   cfg.WorkerBinary,
		workerArgs:     cfg.WorkerArgs,
		webhookTimeout: webhookTimeout,
		active:         make(map[string]*runner.ProcessRunner),
		cancels:        make(map[string]context.CancelFunc),
	}

	if cfg.Bus != nil {
		service.publisher = eventbus.NewExecutionEventPublisher(cfg.Logger, cfg.Bus, cfg.WorkerID)
	}

	return service
}

// Start creates and launches a new run of the given workflow. The run
// proceeds asynchronously; the returned execution is its initial state.
func (s *Execution) Start(ctx context.Context, workflowID string, mode models.ExecutionMode, input []models.ExecutionItem) (*models.Execution, error) {
	workflow, err := s.store.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.WorkflowStatusActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrWorkflowNotRunnable, workflowID, workflow.Status)
	}

	if mode == "" {
		mode = models.ModeManual
	}

	switch mode {
	case models.ModeManual, models.ModeTrigger, models.ModeWebhook:
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}

	execution := models.NewExecution(uuid.New().String(), workflowID, mode)

	if err := s.store.SaveExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to save execution: %w", err)
	}

	s.launch(workflow, execution, input)

	return execution, nil
}

// StartWebhook launches a webhook-mode run of the active workflow whose
// webhook trigger listens on the given path. It waits up to the webhook
// timeout for the run's response; a nil response means the run is still in
// flight and the caller only gets the execution id.
func (s *Execution) StartWebhook(ctx context.Context, path string, payload map[string]any) (*models.Execution, map[string]any, error) {
	workflow, node, handler, err := s.webhookTarget(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	result, err := handler.Webhook(ctx, &protocol.ExecuteRequest{
		Node:     node,
		Workflow: workflow,
		Logger:   s.logger,
	}, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build webhook trigger data: %w", err)
	}

	var input []models.ExecutionItem
	if result != nil && len(result.Outputs) > 0 {
		input = result.Outputs[0]
	}

	execution := models.NewExecution(uuid.New().String(), workflow.ID, models.ModeWebhook)

	if err := s.store.SaveExecution(ctx, execution); err != nil {
		return nil, nil, fmt.Errorf("failed to save execution: %w", err)
	}

	responses := make(chan map[string]any, 1)

	s.launch(workflow, execution, input, func(h *hooks.ExecutionHooks) {
		h.AddSendResponse(func(_ context.Context, response map[string]any) error {
			select {
			case responses <- response:
			default:
			}

			return nil
		})
	})

	select {
	case response := <-responses:
		return execution, response, nil
	case <-time.After(s.webhookTimeout):
		return execution, nil, nil
	case <-ctx.Done():
		return execution, nil, ctx.Err()
	}
}

// webhookTarget finds the active workflow with an enabled webhook trigger
// listening on the given path.
func (s *Execution) webhookTarget(ctx context.Context, path string) (*models.Workflow, *models.Node, protocol.WebhookHandler, error) {
	workflows, err := s.store.Workflows(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	wanted := strings.Trim(path, "/")

	for _, workflow := range workflows {
		if workflow.Status != models.WorkflowStatusActive {
			continue
		}

		for _, node := range workflow.StartNodes() {
			if node.Disabled {
				continue
			}

			handler, err := s.registry.CreateHandler(ctx, node)
			if err != nil {
				continue
			}

			webhook, ok := handler.(protocol.WebhookHandler)
			if !ok {
				continue
			}

			if strings.Trim(webhook.Path(), "/") == wanted {
				return workflow, node, webhook, nil
			}
		}
	}

	return nil, nil, nil, fmt.Errorf("%w: %s", ErrWebhookNotFound, path)
}

// Retry launches a fresh run of the workflow of a failed execution, with the
// original run recorded as its ancestor.
func (s *Execution) Retry(ctx context.Context, executionID string) (*models.Execution, error) {
	failed, err := s.store.ExecutionByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if failed.Status != models.ExecutionStatusError {
		return nil, fmt.Errorf("%w: %s is %s", ErrExecutionNotRetryable, executionID, failed.Status)
	}

	workflow, err := s.store.WorkflowByID(ctx, failed.WorkflowID)
	if err != nil {
		return nil, err
	}

	execution := models.NewExecution(uuid.New().String(), failed.WorkflowID, models.ModeRetry)
	execution.RetryOf = failed.ID

	if err := s.store.SaveExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to save execution: %w", err)
	}

	s.launch(workflow, execution, nil)

	return execution, nil
}

// Resume re-enters a parked execution. It implements scheduler.ResumeFunc.
func (s *Execution) Resume(ctx context.Context, execution *models.Execution) error {
	workflow, err := s.store.WorkflowByID(ctx, execution.WorkflowID)
	if err != nil {
		return err
	}

	if s.publisher != nil {
		s.publisher.PublishResumed(ctx, execution)
	}

	s.launch(workflow, execution, nil)

	return nil
}

// ByID loads one execution.
func (s *Execution) ByID(ctx context.Context, id string) (*models.Execution, error) {
	return s.store.ExecutionByID(ctx, id)
}

// ListByWorkflow returns all runs of one workflow.
func (s *Execution) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	return s.store.ExecutionsByWorkflow(ctx, workflowID)
}

// Stop cancels a run. A worker-backed run is canceled through its runner, an
// in-process run through its context; the engine then records the canceled
// state and persists it. A parked run is marked canceled in the store.
func (s *Execution) Stop(ctx context.Context, executionID string) error {
	s.mu.Lock()
	processRunner, running := s.active[executionID]
	cancel, inProcess := s.cancels[executionID]
	s.mu.Unlock()

	if running {
		return processRunner.Stop(ctx)
	}

	if inProcess {
		cancel()

		return nil
	}

	execution, err := s.store.ExecutionByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrExecutionFinished, executionID, execution.Status)
	}

	execution.Transition(models.ExecutionStatusCanceled)
	execution.WaitTill = nil
	execution.Data.NodeExecutionStack = nil
	execution.Data.ResultData.Error = models.NewCancelationError()

	return s.store.SaveExecution(ctx, execution)
}

// launch runs the execution on its own goroutine, detached from the request
// context so an HTTP client disconnect does not cancel the run. The run works
// on its own copy; callers keep the pre-launch snapshot.
func (s *Execution) launch(workflow *models.Workflow, execution *models.Execution, input []models.ExecutionItem, customize ...func(*hooks.ExecutionHooks)) {
	run, err := cloneExecution(execution)
	if err != nil {
		s.logger.Error("Failed to clone execution", "execution_id", execution.ID, "error", err)

		return
	}

	go func() {
		ctx := context.Background()

		result, err := s.run(ctx, workflow, run, input, customize...)
		if err != nil {
			s.logger.ErrorContext(ctx, "Execution run failed",
				"execution_id", run.ID, "error", err)
			s.recordLostRun(ctx, run, err)

			return
		}

		s.logger.InfoContext(ctx, "Execution finished",
			"execution_id", result.ID, "status", result.Status)
	}()
}

func (s *Execution) run(ctx context.Context, workflow *models.Workflow, execution *models.Execution, input []models.ExecutionItem, customize ...func(*hooks.ExecutionHooks)) (*models.Execution, error) {
	executionHooks := s.buildHooks(workflow, execution)

	for _, fn := range customize {
		fn(executionHooks)
	}

	if s.workerBinary != "" {
		return s.runInWorker(ctx, executionHooks, workflow, execution, input)
	}

	return s.runInProcess(ctx, executionHooks, workflow, execution, input)
}

// runInWorker spawns the worker binary and drives it to completion. The
// workflow timeout is enforced from this side of the pipe.
func (s *Execution) runInWorker(ctx context.Context, executionHooks *hooks.ExecutionHooks, workflow *models.Workflow, execution *models.Execution, input []models.ExecutionItem) (*models.Execution, error) {
	processRunner, err := runner.Spawn(ctx, s.logger, executionHooks, s.store, s.workerBinary, s.workerArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to spawn worker: %w", err)
	}

	s.mu.Lock()
	s.active[execution.ID] = processRunner
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.active, execution.ID)
		s.mu.Unlock()
	}()

	if workflow.Settings.Timeout > 0 {
		timer := time.AfterFunc(workflow.Settings.Timeout, func() {
			if err := processRunner.Timeout(context.Background()); err != nil {
				s.logger.Error("Failed to time out worker", "execution_id", execution.ID, "error", err)
			}
		})
		defer timer.Stop()
	}

	return processRunner.Run(ctx, workflow, execution, input)
}

// runInProcess executes the run with an engine in this process. The run's
// cancel func stays registered while it is live, so Stop reaches the engine
// instead of only rewriting stored state.
func (s *Execution) runInProcess(ctx context.Context, executionHooks *hooks.ExecutionHooks, workflow *models.Workflow, execution *models.Execution, input []models.ExecutionItem) (*models.Execution, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancels[execution.ID] = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.cancels, execution.ID)
		s.mu.Unlock()
	}()

	eng, err := engine.New(engine.Config{
		Workflow:        workflow,
		Registry:        s.registry,
		Hooks:           executionHooks,
		Logger:          s.logger,
		Binary:          s.binary,
		Tracer:          s.tracer,
		ExecuteWorkflow: s.subWorkflowRunner(),
	})
	if err != nil {
		return nil, err
	}

	return eng.Run(runCtx, execution, input), nil
}

// buildHooks attaches persistence and event publishing to the run.
func (s *Execution) buildHooks(workflow *models.Workflow, execution *models.Execution) *hooks.ExecutionHooks {
	executionHooks := hooks.New(s.logger, execution.ID, execution.WorkflowID, execution.Mode)
	executionHooks.RetryOf = execution.RetryOf

	executionHooks.AddWorkflowExecuteAfter(func(ctx context.Context, finished *models.Execution, staticData map[string]any) error {
		if err := s.store.SaveExecution(ctx, finished); err != nil {
			return fmt.Errorf("failed to persist execution: %w", err)
		}

		if len(staticData) > 0 {
			workflow.StaticData = staticData
			if err := s.store.SaveWorkflow(ctx, workflow); err != nil {
				return fmt.Errorf("failed to persist workflow static data: %w", err)
			}
		}

		return nil
	})

	if s.publisher != nil {
		s.publisher.Attach(executionHooks, workflow)
	}

	return executionHooks
}

// subWorkflowRunner resolves executeworkflow nodes for in-process runs. The
// nested run is persisted like any other and owns copies of any stored
// binary payloads its input carries.
func (s *Execution) subWorkflowRunner() protocol.ExecuteWorkflowFunc {
	return func(ctx context.Context, workflowID string, items []models.ExecutionItem) ([][]models.ExecutionItem, error) {
		workflow, err := s.store.WorkflowByID(ctx, workflowID)
		if err != nil {
			return nil, fmt.Errorf("failed to load sub-workflow %s: %w", workflowID, err)
		}

		subExecution := models.NewExecution(uuid.New().String(), workflowID, models.ModeIntegrated)

		if err := s.store.SaveExecution(ctx, subExecution); err != nil {
			return nil, fmt.Errorf("failed to save execution: %w", err)
		}

		if copier, ok := s.binary.(binaryCopier); ok {
			items = models.CopyItems(items)
			if err := copier.CopyForExecution(ctx, [][]models.ExecutionItem{items}, subExecution.ID); err != nil {
				return nil, fmt.Errorf("failed to copy binary data for sub-workflow %s: %w", workflowID, err)
			}
		}

		subHooks := s.buildHooks(workflow, subExecution)

		result, err := s.runInProcess(ctx, subHooks, workflow, subExecution, items)
		if err != nil {
			return nil, err
		}

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

// cloneExecution deep-copies run state through its JSON form, the same shape
// it takes crossing the worker pipe.
func cloneExecution(execution *models.Execution) (*models.Execution, error) {
	raw, err := json.Marshal(execution)
	if err != nil {
		return nil, err
	}

	var clone models.Execution
	if err := json.Unmarshal(raw, &clone); err != nil {
		return nil, err
	}

	return &clone, nil
}

// recordLostRun persists a terminal error for a run whose worker vanished
// before reporting a final state.
func (s *Execution) recordLostRun(ctx context.Context, execution *models.Execution, cause error) {
	stored, err := s.store.ExecutionByID(ctx, execution.ID)
	if err == nil && stored.Status.Terminal() {
		return
	}

	execution.Data.ResultData.Error = &models.ExecutionError{
		Kind:    models.ErrorKindTransport,
		Message: cause.Error(),
	}
	execution.Transition(models.ExecutionStatusRunning)
	execution.Transition(models.ExecutionStatusError)

	if err := s.store.SaveExecution(ctx, execution); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist lost run",
			"execution_id", execution.ID, "error", err)
	}
}
