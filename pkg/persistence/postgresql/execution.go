package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence"
)

// ExecutionRepository handles execution-related database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Save upserts the full execution state.
func (r *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	data, err := json.Marshal(execution.Data)
	if err != nil {
		return fmt.Errorf("failed to encode execution %s data: %w", execution.ID, err)
	}

	query := `
		INSERT INTO executions (id, workflow_id, status, mode, started_at, stopped_at, wait_till, retry_of, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::uuid, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status
		  , stopped_at = EXCLUDED.stopped_at
		  , wait_till = EXCLUDED.wait_till
		  , data = EXCLUDED.data
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID, execution.WorkflowID, execution.Status, execution.Mode,
		execution.StartedAt, execution.StoppedAt, execution.WaitTill, execution.RetryOf, data)
	if err != nil {
		return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	return nil
}

// GetByID returns one execution.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	query := selectExecutions + " WHERE id = $1"

	execution, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrExecutionNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query execution %s: %w", id, err)
	}

	return execution, nil
}

// GetByWorkflow returns the executions of one workflow, newest first.
func (r *ExecutionRepository) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	query := selectExecutions + " WHERE workflow_id = $1 ORDER BY started_at DESC"

	return r.queryMany(ctx, query, workflowID)
}

// Waiting returns parked executions due before the given instant, ordered by
// wake-up time.
func (r *ExecutionRepository) Waiting(ctx context.Context, before time.Time) ([]*models.Execution, error) {
	query := selectExecutions + `
		WHERE status = 'waiting' AND wait_till IS NOT NULL AND wait_till < $1
		ORDER BY wait_till ASC
	`

	return r.queryMany(ctx, query, before)
}

const selectExecutions = `
	SELECT id, workflow_id, status, mode, started_at, stopped_at, wait_till, COALESCE(retry_of::text, ''), data
	FROM executions
`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ExecutionRepository) scan(row rowScanner) (*models.Execution, error) {
	var (
		execution models.Execution
		data      []byte
	)

	err := row.Scan(&execution.ID, &execution.WorkflowID, &execution.Status, &execution.Mode,
		&execution.StartedAt, &execution.StoppedAt, &execution.WaitTill, &execution.RetryOf, &data)
	if err != nil {
		return nil, err
	}

	execution.Data = &models.ExecutionData{}
	if err := json.Unmarshal(data, execution.Data); err != nil {
		return nil, fmt.Errorf("failed to decode execution %s data: %w", execution.ID, err)
	}

	if execution.Data.RunData == nil {
		execution.Data.RunData = make(models.RunData)
	}

	return &execution, nil
}

func (r *ExecutionRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.Execution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}
