package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence"
	"github.com/weftlabs/weft/pkg/protocol"
	"github.com/weftlabs/weft/pkg/registry"
)

// StartFunc launches a new run of a workflow. Implemented by the execution
// service.
type StartFunc func(ctx context.Context, workflowID string, mode models.ExecutionMode, input []models.ExecutionItem) (*models.Execution, error)

// Activator starts runs from trigger nodes that activate on their own:
// schedule triggers get a timer armed at their next fire time, polling
// triggers are asked for fresh data on every scan. Webhook triggers are
// activated by the HTTP layer instead.
type Activator struct {
	logger   *slog.Logger
	store    persistence.Persistence
	registry *registry.Registry
	start    StartFunc
	scan     time.Duration
	horizon  time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer

	stop chan struct{}
	done chan struct{}
}

// ActivatorOption adjusts activator timing, used by tests.
type ActivatorOption func(*Activator)

// WithScanInterval overrides how often active workflows are re-scanned.
func WithScanInterval(interval time.Duration) ActivatorOption {
	return func(a *Activator) { a.scan = interval }
}

// WithScanHorizon overrides how far ahead each scan arms timers.
func WithScanHorizon(horizon time.Duration) ActivatorOption {
	return func(a *Activator) { a.horizon = horizon }
}

// NewActivator creates an activator; call Start to begin scanning.
func NewActivator(logger *slog.Logger, store persistence.Persistence, reg *registry.Registry, start StartFunc, opts ...ActivatorOption) *Activator {
	activator := &Activator{
		logger:   logger.With("module", "activator"),
		store:    store,
		registry: reg,
		start:    start,
		scan:     defaultPollInterval,
		horizon:  defaultHorizon,
		timers:   make(map[string]*time.Timer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(activator)
	}

	return activator
}

// Start scans immediately, then on every scan interval until Stop.
func (a *Activator) Start(ctx context.Context) {
	go func() {
		defer close(a.done)

		a.scanWorkflows(ctx)

		ticker := time.NewTicker(a.scan)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				a.scanWorkflows(ctx)
			case <-a.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the scan loop and every armed timer.
func (a *Activator) Stop() {
	close(a.stop)
	<-a.done

	a.mu.Lock()
	defer a.mu.Unlock()

	for id, timer := range a.timers {
		timer.Stop()
		delete(a.timers, id)
	}
}

// scanWorkflows inspects the start nodes of every active workflow and
// activates those that are due within the horizon.
func (a *Activator) scanWorkflows(ctx context.Context) {
	workflows, err := a.store.Workflows(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to scan workflows", "error", err)

		return
	}

	now := time.Now()

	for _, workflow := range workflows {
		if workflow.Status != models.WorkflowStatusActive {
			continue
		}

		for _, node := range workflow.StartNodes() {
			if node.Disabled {
				continue
			}

			handler, err := a.registry.CreateHandler(ctx, node)
			if err != nil {
				a.logger.ErrorContext(ctx, "Failed to build trigger handler",
					"workflow_id", workflow.ID, "node", node.Name, "error", err)

				continue
			}

			if trigger, ok := handler.(protocol.TriggerHandler); ok {
				a.armTrigger(ctx, workflow, node, trigger, now)
			}

			if poller, ok := handler.(protocol.PollHandler); ok {
				a.poll(ctx, workflow, node, poller)
			}
		}
	}
}

// armTrigger schedules one activation. Rearming an already tracked node is a
// no-op, so overlapping scans never double-fire; the timer re-registers on
// the scan after it fired.
func (a *Activator) armTrigger(ctx context.Context, workflow *models.Workflow, node *models.Node, trigger protocol.TriggerHandler, now time.Time) {
	next, err := trigger.NextActivation(now, node.Parameters)
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to compute next activation",
			"workflow_id", workflow.ID, "node", node.Name, "error", err)

		return
	}

	if next.After(now.Add(a.horizon)) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	id := workflow.ID + "/" + node.Name
	if _, ok := a.timers[id]; ok {
		return
	}

	delay := time.Until(next)
	if delay < 0 {
		delay = 0
	}

	workflowID := workflow.ID

	a.timers[id] = time.AfterFunc(delay, func() {
		a.mu.Lock()
		delete(a.timers, id)
		a.mu.Unlock()

		a.fire(ctx, workflowID, nil)
	})

	a.logger.InfoContext(ctx, "Armed trigger timer",
		"workflow_id", workflow.ID, "node", node.Name, "next_activation", next)
}

// poll asks a polling trigger for fresh data and starts a run when it
// returned items. The poll cursor lives in workflow static data, persisted
// with the run it produced.
func (a *Activator) poll(ctx context.Context, workflow *models.Workflow, node *models.Node, poller protocol.PollHandler) {
	result, err := poller.Poll(ctx, &protocol.ExecuteRequest{
		Node:       node,
		Workflow:   workflow,
		StaticData: workflow.StaticData,
		Logger:     a.logger,
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "Trigger poll failed",
			"workflow_id", workflow.ID, "node", node.Name, "error", err)

		return
	}

	if result == nil || len(result.Outputs) == 0 || len(result.Outputs[0]) == 0 {
		return
	}

	a.fire(ctx, workflow.ID, result.Outputs[0])
}

func (a *Activator) fire(ctx context.Context, workflowID string, input []models.ExecutionItem) {
	a.logger.InfoContext(ctx, "Trigger fired", "workflow_id", workflowID)

	if _, err := a.start(ctx, workflowID, models.ModeTrigger, input); err != nil {
		a.logger.ErrorContext(ctx, "Failed to start triggered run",
			"workflow_id", workflowID, "error", err)
	}
}
