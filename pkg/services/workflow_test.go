package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence"
	"github.com/weftlabs/weft/pkg/persistence/file"
)

func newWorkflowService(t *testing.T) (*Workflow, persistence.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	return NewWorkflow(testLogger(), store, nil), store
}

func TestWorkflowService_CreateAssignsIdentity(t *testing.T) {
	service, _ := newWorkflowService(t)

	created, err := service.Create(t.Context(), &models.Workflow{
		Name:  "Order Sync",
		Nodes: []*models.Node{{Name: "Start", Type: "noop"}},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.WorkflowStatusDraft, created.Status)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestWorkflowService_CreateValidates(t *testing.T) {
	service, _ := newWorkflowService(t)

	_, err := service.Create(t.Context(), nil)
	require.ErrorIs(t, err, ErrWorkflowNil)

	_, err = service.Create(t.Context(), &models.Workflow{
		Nodes: []*models.Node{{Name: "Start", Type: "noop"}},
	})
	require.ErrorIs(t, err, ErrWorkflowNameRequired)

	_, err = service.Create(t.Context(), &models.Workflow{Name: "No Nodes"})
	require.ErrorIs(t, err, ErrNodesRequired)

	// A connection naming a missing node fails graph validation.
	_, err = service.Create(t.Context(), &models.Workflow{
		Name:  "Bad Graph",
		Nodes: []*models.Node{{Name: "Start", Type: "noop"}},
		Connections: models.Connections{
			"Start": {{{Node: "Ghost", Index: 0}}},
		},
	})
	require.Error(t, err)
}

func TestWorkflowService_UpdateKeepsIdentity(t *testing.T) {
	service, _ := newWorkflowService(t)

	created, err := service.Create(t.Context(), &models.Workflow{
		Name:  "Original",
		Nodes: []*models.Node{{Name: "Start", Type: "noop"}},
	})
	require.NoError(t, err)

	updated, err := service.Update(t.Context(), created.ID, &models.Workflow{
		Name:   "Renamed",
		Status: models.WorkflowStatusActive,
		Nodes:  []*models.Node{{Name: "Start", Type: "noop"}},
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "Renamed", updated.Name)
}

func TestWorkflowService_DeleteRemoves(t *testing.T) {
	service, store := newWorkflowService(t)

	created, err := service.Create(t.Context(), &models.Workflow{
		Name:  "Short Lived",
		Nodes: []*models.Node{{Name: "Start", Type: "noop"}},
	})
	require.NoError(t, err)

	require.NoError(t, service.Delete(t.Context(), created.ID))

	_, err = store.WorkflowByID(t.Context(), created.ID)
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}
