package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence"
)

// ExecutionRepository handles execution-related file operations.
type ExecutionRepository struct {
	mu   sync.RWMutex
	root string
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) dir() string {
	return filepath.Join(er.root, "executions")
}

func (er *ExecutionRepository) path(id string) string {
	return filepath.Join(er.dir(), id+".json")
}

// Save writes the full execution state.
func (er *ExecutionRepository) Save(_ context.Context, execution *models.Execution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	return writeJSON(er.path(execution.ID), execution)
}

// GetByID loads one execution.
func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.Execution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	return er.read(id)
}

// GetByWorkflow loads every execution of one workflow, newest first.
func (er *ExecutionRepository) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	executions, err := er.all(ctx)
	if err != nil {
		return nil, err
	}

	matching := make([]*models.Execution, 0)

	for _, execution := range executions {
		if execution.WorkflowID == workflowID {
			matching = append(matching, execution)
		}
	}

	return matching, nil
}

// Waiting returns parked executions due to wake up before the given instant,
// ordered by wake-up time.
func (er *ExecutionRepository) Waiting(ctx context.Context, before time.Time) ([]*models.Execution, error) {
	executions, err := er.all(ctx)
	if err != nil {
		return nil, err
	}

	due := make([]*models.Execution, 0)

	for _, execution := range executions {
		if execution.IsSleeping() && execution.WaitTill.Before(before) {
			due = append(due, execution)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].WaitTill.Before(*due[j].WaitTill)
	})

	return due, nil
}

func (er *ExecutionRepository) all(_ context.Context) ([]*models.Execution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	entries, err := fs.Glob(os.DirFS(er.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.Execution, 0, len(entries))

	for _, entry := range entries {
		execution, err := er.read(entry[:len(entry)-len(".json")])
		if err != nil {
			return nil, err
		}

		executions = append(executions, execution)
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	return executions, nil
}

func (er *ExecutionRepository) read(id string) (*models.Execution, error) {
	data, err := os.ReadFile(er.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, persistence.ErrExecutionNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read execution %s: %w", id, err)
	}

	var execution models.Execution
	if err := json.Unmarshal(data, &execution); err != nil {
		return nil, fmt.Errorf("failed to decode execution %s: %w", id, err)
	}

	return &execution, nil
}
