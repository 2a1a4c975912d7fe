// Package persistence provides data storage abstraction for workflows and executions.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/weftlabs/weft/pkg/models"
)

var (
	// ErrWorkflowNotFound is returned when no workflow exists for an ID.
	ErrWorkflowNotFound = errors.New("workflow not found")
	// ErrExecutionNotFound is returned when no execution exists for an ID.
	ErrExecutionNotFound = errors.New("execution not found")
)

// Persistence stores workflow definitions and execution state. Executions are
// written whole: the engine mutates in memory and the lifecycle hooks persist
// snapshots at node and run boundaries.
type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	SaveExecution(ctx context.Context, execution *models.Execution) error
	ExecutionByID(ctx context.Context, id string) (*models.Execution, error)
	ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error)
	// WaitingExecutions returns parked executions whose wake-up time falls
	// before the given instant, ordered by wake-up time.
	WaitingExecutions(ctx context.Context, before time.Time) ([]*models.Execution, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
