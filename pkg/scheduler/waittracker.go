// Package scheduler wakes up parked executions when their wait time expires.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence"
)

const (
	// defaultPollInterval is how often the store is scanned for due runs.
	defaultPollInterval = time.Minute
	// defaultHorizon is how far ahead of the poll each scan looks, slightly
	// more than the interval so no wake-up falls between two scans.
	defaultHorizon = 70 * time.Second
)

// ResumeFunc re-enters a parked execution. It runs on its own goroutine per
// wake-up; the tracker only guarantees it is called once per park.
type ResumeFunc func(ctx context.Context, execution *models.Execution) error

// WaitTracker arms one timer per parked execution inside the scan horizon.
// Executions parked beyond the horizon are picked up by a later scan.
type WaitTracker struct {
	logger  *slog.Logger
	store   persistence.Persistence
	resume  ResumeFunc
	poll    time.Duration
	horizon time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer

	stop chan struct{}
	done chan struct{}
}

// Option adjusts tracker timing, used by tests.
type Option func(*WaitTracker)

// WithPollInterval overrides the scan interval.
func WithPollInterval(interval time.Duration) Option {
	return func(t *WaitTracker) { t.poll = interval }
}

// WithHorizon overrides how far ahead each scan looks.
func WithHorizon(horizon time.Duration) Option {
	return func(t *WaitTracker) { t.horizon = horizon }
}

// NewWaitTracker creates a tracker; call Start to begin scanning.
func NewWaitTracker(logger *slog.Logger, store persistence.Persistence, resume ResumeFunc, opts ...Option) *WaitTracker {
	tracker := &WaitTracker{
		logger:  logger.With("module", "wait_tracker"),
		store:   store,
		resume:  resume,
		poll:    defaultPollInterval,
		horizon: defaultHorizon,
		timers:  make(map[string]*time.Timer),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(tracker)
	}

	return tracker
}

// Start scans immediately, then on every poll interval until Stop.
func (t *WaitTracker) Start(ctx context.Context) {
	go func() {
		defer close(t.done)

		t.scan(ctx)

		ticker := time.NewTicker(t.poll)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				t.scan(ctx)
			case <-t.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the scan loop and every armed timer.
func (t *WaitTracker) Stop() {
	close(t.stop)
	<-t.done

	t.mu.Lock()
	defer t.mu.Unlock()

	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}

// StopExecution cancels a parked execution: its timer is disarmed and the
// stored run is marked canceled with the wait cleared.
func (t *WaitTracker) StopExecution(ctx context.Context, executionID string) error {
	t.mu.Lock()

	if timer, ok := t.timers[executionID]; ok {
		timer.Stop()
		delete(t.timers, executionID)
	}

	t.mu.Unlock()

	execution, err := t.store.ExecutionByID(ctx, executionID)
	if err != nil {
		return err
	}

	if !execution.Transition(models.ExecutionStatusCanceled) {
		return nil
	}

	execution.WaitTill = nil
	execution.Data.NodeExecutionStack = nil
	execution.Data.ResultData.Error = models.NewCancelationError()

	t.logger.InfoContext(ctx, "Canceled waiting execution", "execution_id", executionID)

	return t.store.SaveExecution(ctx, execution)
}

// scan arms a timer for every parked execution due within the horizon.
func (t *WaitTracker) scan(ctx context.Context) {
	executions, err := t.store.WaitingExecutions(ctx, time.Now().Add(t.horizon))
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to scan waiting executions", "error", err)

		return
	}

	for _, execution := range executions {
		t.arm(ctx, execution)
	}
}

// arm schedules one wake-up. Rearming an already tracked execution is a
// no-op, so overlapping scans never double-fire.
func (t *WaitTracker) arm(ctx context.Context, execution *models.Execution) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.timers[execution.ID]; ok {
		return
	}

	delay := time.Until(*execution.WaitTill)
	if delay < 0 {
		delay = 0
	}

	id := execution.ID

	t.timers[id] = time.AfterFunc(delay, func() {
		t.mu.Lock()
		delete(t.timers, id)
		t.mu.Unlock()

		t.wake(ctx, id)
	})

	t.logger.InfoContext(ctx, "Armed wake-up timer",
		"execution_id", id, "wait_till", execution.WaitTill)
}

// wake reloads the execution and resumes it. The reload guards against runs
// canceled or already resumed between arming and firing.
func (t *WaitTracker) wake(ctx context.Context, executionID string) {
	execution, err := t.store.ExecutionByID(ctx, executionID)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to load execution for wake-up",
			"execution_id", executionID, "error", err)

		return
	}

	if !execution.IsSleeping() {
		return
	}

	t.logger.InfoContext(ctx, "Resuming execution", "execution_id", executionID)

	if err := t.resume(ctx, execution); err != nil {
		t.logger.ErrorContext(ctx, "Failed to resume execution",
			"execution_id", executionID, "error", err)
	}
}
