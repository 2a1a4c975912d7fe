package eventbus

import (
	"context"
	"log/slog"
	"time"

	"github.com/weftlabs/weft/pkg/events"
	"github.com/weftlabs/weft/pkg/hooks"
	"github.com/weftlabs/weft/pkg/models"
)

// ExecutionEventPublisher translates execution lifecycle hooks into bus
// events. Publishing is best effort; a bus failure never fails the run.
type ExecutionEventPublisher struct {
	logger   *slog.Logger
	bus      EventBus
	workerID string
}

func NewExecutionEventPublisher(logger *slog.Logger, bus EventBus, workerID string) *ExecutionEventPublisher {
	return &ExecutionEventPublisher{
		logger:   logger.With("module", "event_publisher"),
		bus:      bus,
		workerID: workerID,
	}
}

// Attach registers bus-publishing handlers on the given hook set.
func (p *ExecutionEventPublisher) Attach(executionHooks *hooks.ExecutionHooks, workflow *models.Workflow) {
	workflowID := executionHooks.WorkflowID
	executionID := executionHooks.ExecutionID
	started := time.Now().UTC()

	executionHooks.AddWorkflowExecuteBefore(func(ctx context.Context) error {
		started = time.Now().UTC()

		p.publish(ctx, workflowID, events.ExecutionStarted{
			BaseEvent:    p.base(events.ExecutionStartedEvent, workflowID),
			ExecutionID:  executionID,
			WorkflowName: workflow.Name,
			Mode:         executionHooks.Mode,
			RetryOf:      executionHooks.RetryOf,
		})

		return nil
	})

	executionHooks.AddNodeExecuteBefore(func(ctx context.Context, nodeName string) error {
		p.publish(ctx, workflowID, events.NodeStarted{
			BaseEvent:   p.base(events.NodeStartedEvent, workflowID),
			ExecutionID: executionID,
			NodeName:    nodeName,
		})

		return nil
	})

	executionHooks.AddNodeExecuteAfter(func(ctx context.Context, nodeName string, data *models.TaskData) error {
		event := events.NodeFinished{
			BaseEvent:   p.base(events.NodeFinishedEvent, workflowID),
			ExecutionID: executionID,
			NodeName:    nodeName,
			Success:     data.Error == nil,
			DurationMs:  data.ExecutionTime.Milliseconds(),
		}

		if data.Error != nil {
			event.Error = data.Error.Message
		}

		for _, items := range data.Data {
			event.ItemCounts = append(event.ItemCounts, len(items))
		}

		p.publish(ctx, workflowID, event)

		return nil
	})

	executionHooks.AddWorkflowExecuteAfter(func(ctx context.Context, finished *models.Execution, _ map[string]any) error {
		p.publish(ctx, workflowID, p.finalEvent(finished, started))

		return nil
	})
}

// finalEvent maps the execution's final status to its lifecycle event.
func (p *ExecutionEventPublisher) finalEvent(execution *models.Execution, started time.Time) Event {
	duration := time.Since(started).Milliseconds()
	workflowID := execution.WorkflowID

	switch execution.Status {
	case models.ExecutionStatusSuccess:
		nodes := 0
		for _, runs := range execution.Data.RunData {
			nodes += len(runs)
		}

		return events.ExecutionCompleted{
			BaseEvent:     p.base(events.ExecutionCompletedEvent, workflowID),
			ExecutionID:   execution.ID,
			DurationMs:    duration,
			NodesExecuted: nodes,
		}

	case models.ExecutionStatusCanceled:
		return events.ExecutionCanceled{
			BaseEvent:   p.base(events.ExecutionCanceledEvent, workflowID),
			ExecutionID: execution.ID,
			DurationMs:  duration,
		}

	case models.ExecutionStatusWaiting:
		event := events.ExecutionWaiting{
			BaseEvent:   p.base(events.ExecutionWaitingEvent, workflowID),
			ExecutionID: execution.ID,
		}
		if execution.WaitTill != nil {
			event.WaitTill = *execution.WaitTill
		}

		return event

	default:
		execErr := execution.Data.ResultData.Error
		if execErr != nil && execErr.Timeout {
			return events.ExecutionTimeout{
				BaseEvent:   p.base(events.ExecutionTimeoutEvent, workflowID),
				ExecutionID: execution.ID,
				DurationMs:  duration,
			}
		}

		event := events.ExecutionFailed{
			BaseEvent:   p.base(events.ExecutionFailedEvent, workflowID),
			ExecutionID: execution.ID,
			NodeName:    execution.Data.ResultData.LastNodeExecuted,
			DurationMs:  duration,
		}
		if execErr != nil {
			event.Kind = execErr.Kind
			event.Error = execErr.Message
		}

		return event
	}
}

// PublishResumed marks a parked execution picked back up by the scheduler.
func (p *ExecutionEventPublisher) PublishResumed(ctx context.Context, execution *models.Execution) {
	p.publish(ctx, execution.WorkflowID, events.ExecutionResumed{
		BaseEvent:   p.base(events.ExecutionResumedEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
	})
}

func (p *ExecutionEventPublisher) base(eventType events.EventType, workflowID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         p.bus.GenerateID(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		WorkerID:   p.workerID,
	}
}

func (p *ExecutionEventPublisher) publish(ctx context.Context, key string, event Event) {
	if err := p.bus.Publish(ctx, key, event); err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}
