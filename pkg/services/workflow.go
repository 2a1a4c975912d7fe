package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/weftlabs/weft/pkg/eventbus"
	"github.com/weftlabs/weft/pkg/events"
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence"
)

// Workflow manages workflow definitions. Definition changes are announced on
// the event bus so other services can refresh their view.
type Workflow struct {
	logger *slog.Logger
	store  persistence.Persistence
	bus    eventbus.EventBus
}

// NewWorkflow creates the workflow service. The bus is optional.
func NewWorkflow(logger *slog.Logger, store persistence.Persistence, bus eventbus.EventBus) *Workflow {
	return &Workflow{
		logger: logger.With("module", "workflow_service"),
		store:  store,
		bus:    bus,
	}
}

// HealthCheck reports whether the persistence layer responds.
func (s *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if err := s.store.HealthCheck(ctx); err != nil {
		return "persistence is unhealthy: " + err.Error(), false
	}

	return "persistence is healthy", true
}

// List returns all stored workflows.
func (s *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	return s.store.Workflows(ctx)
}

// FetchByID loads one workflow.
func (s *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return s.store.WorkflowByID(ctx, id)
}

// Create validates and stores a new workflow. Workflows start as drafts
// unless the caller set a status explicitly.
func (s *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	if workflow.Name == "" {
		return nil, ErrWorkflowNameRequired
	}

	if len(workflow.Nodes) == 0 {
		return nil, ErrNodesRequired
	}

	now := time.Now().UTC()
	workflow.ID = uuid.New().String()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusDraft
	}

	if err := workflow.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.SaveWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	s.announce(ctx, workflow.ID, events.WorkflowCreated{
		BaseEvent: s.base(events.WorkflowCreatedEvent, workflow.ID),
		Name:      workflow.Name,
	})

	return workflow, nil
}

// Update replaces a stored workflow's definition, keeping its identity and
// creation time.
func (s *Workflow) Update(ctx context.Context, id string, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	existing, err := s.store.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	workflow.ID = existing.ID
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()

	if err := workflow.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.SaveWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	s.announce(ctx, workflow.ID, events.WorkflowUpdated{
		BaseEvent: s.base(events.WorkflowUpdatedEvent, workflow.ID),
		Name:      workflow.Name,
	})

	return workflow, nil
}

// Delete removes a workflow.
func (s *Workflow) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteWorkflow(ctx, id); err != nil {
		return err
	}

	s.announce(ctx, id, events.WorkflowDeleted{
		BaseEvent: s.base(events.WorkflowDeletedEvent, id),
	})

	return nil
}

func (s *Workflow) base(eventType events.EventType, workflowID string) events.BaseEvent {
	id := uuid.New().String()
	if s.bus != nil {
		id = s.bus.GenerateID()
	}

	return events.BaseEvent{
		ID:         id,
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

func (s *Workflow) announce(ctx context.Context, key string, event eventbus.Event) {
	if s.bus == nil {
		return
	}

	if err := s.bus.Publish(ctx, key, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish workflow event",
			"event_type", event.GetType(), "error", err)
	}
}
