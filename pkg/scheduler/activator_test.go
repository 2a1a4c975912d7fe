package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence/file"
	"github.com/weftlabs/weft/pkg/protocol"
	"github.com/weftlabs/weft/pkg/registry"
)

type startRecorder struct {
	mu    sync.Mutex
	calls []startCall
}

type startCall struct {
	workflowID string
	mode       models.ExecutionMode
	input      []models.ExecutionItem
}

func (r *startRecorder) start(_ context.Context, workflowID string, mode models.ExecutionMode, input []models.ExecutionItem) (*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, startCall{workflowID: workflowID, mode: mode, input: input})

	return models.NewExecution("exec-started", workflowID, mode), nil
}

func (r *startRecorder) started() []startCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]startCall(nil), r.calls...)
}

// tickFactory builds a self-scheduling trigger that activates a fixed delay
// after each scan.
type tickFactory struct {
	delay time.Duration
}

func (f *tickFactory) Create(_ context.Context, _ *models.Node) (protocol.NodeHandler, error) {
	return &tickHandler{delay: f.delay}, nil
}

func (f *tickFactory) Type() string           { return "tick" }
func (f *tickFactory) Version() int           { return 1 }
func (f *tickFactory) Description() string    { return "fires a fixed delay after each scan" }
func (f *tickFactory) Schema() map[string]any { return nil }

type tickHandler struct {
	delay time.Duration
}

func (h *tickHandler) Execute(_ context.Context, _ *protocol.ExecuteRequest) (*protocol.ExecuteResult, error) {
	return &protocol.ExecuteResult{
		Outputs: [][]models.ExecutionItem{{models.NewItem(nil)}},
	}, nil
}

func (h *tickHandler) NextActivation(after time.Time, _ map[string]any) (time.Time, error) {
	return after.Add(h.delay), nil
}

// feedFactory builds a polling trigger that reports the given items on every
// poll.
type feedFactory struct {
	items []models.ExecutionItem
}

func (f *feedFactory) Create(_ context.Context, _ *models.Node) (protocol.NodeHandler, error) {
	return &feedHandler{items: f.items}, nil
}

func (f *feedFactory) Type() string           { return "feed" }
func (f *feedFactory) Version() int           { return 1 }
func (f *feedFactory) Description() string    { return "reports canned items on every poll" }
func (f *feedFactory) Schema() map[string]any { return nil }

type feedHandler struct {
	items []models.ExecutionItem
}

func (h *feedHandler) Execute(_ context.Context, req *protocol.ExecuteRequest) (*protocol.ExecuteResult, error) {
	return &protocol.ExecuteResult{Outputs: [][]models.ExecutionItem{req.AllInputItems()}}, nil
}

func (h *feedHandler) Poll(_ context.Context, _ *protocol.ExecuteRequest) (*protocol.ExecuteResult, error) {
	return &protocol.ExecuteResult{Outputs: [][]models.ExecutionItem{h.items}}, nil
}

func triggerRegistry(factory protocol.NodeFactory) *registry.Registry {
	reg := registry.NewRegistry(testLogger())
	reg.Register(factory)

	return reg
}

func saveTriggerWorkflow(t *testing.T, store *file.Persistence, id, nodeType string, status models.WorkflowStatus) {
	t.Helper()

	require.NoError(t, store.SaveWorkflow(context.Background(), &models.Workflow{
		ID:     id,
		Name:   "Triggered " + id,
		Status: status,
		Nodes:  []*models.Node{{Name: "Start", Type: nodeType}},
	}))
}

func TestActivator_ScheduleTriggerFires(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	recorder := &startRecorder{}

	saveTriggerWorkflow(t, store, "wf-cron", "tick", models.WorkflowStatusActive)

	activator := NewActivator(testLogger(), store, triggerRegistry(&tickFactory{delay: 20 * time.Millisecond}), recorder.start,
		WithScanInterval(10*time.Millisecond), WithScanHorizon(time.Second))

	activator.Start(context.Background())
	defer activator.Stop()

	require.Eventually(t, func() bool {
		return len(recorder.started()) >= 1
	}, time.Second, 5*time.Millisecond)

	call := recorder.started()[0]
	assert.Equal(t, "wf-cron", call.workflowID)
	assert.Equal(t, models.ModeTrigger, call.mode)
	assert.Nil(t, call.input)
}

func TestActivator_TriggerBeyondHorizonNotArmed(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	recorder := &startRecorder{}

	saveTriggerWorkflow(t, store, "wf-cron", "tick", models.WorkflowStatusActive)

	activator := NewActivator(testLogger(), store, triggerRegistry(&tickFactory{delay: time.Hour}), recorder.start,
		WithScanInterval(10*time.Millisecond), WithScanHorizon(50*time.Millisecond))

	activator.Start(context.Background())
	defer activator.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, recorder.started())
}

func TestActivator_PollTriggerStartsRunWithItems(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	recorder := &startRecorder{}

	saveTriggerWorkflow(t, store, "wf-feed", "feed", models.WorkflowStatusActive)

	factory := &feedFactory{items: []models.ExecutionItem{models.NewItem(map[string]any{"seq": 1})}}

	activator := NewActivator(testLogger(), store, triggerRegistry(factory), recorder.start,
		WithScanInterval(10*time.Millisecond), WithScanHorizon(time.Second))

	activator.Start(context.Background())
	defer activator.Stop()

	require.Eventually(t, func() bool {
		return len(recorder.started()) >= 1
	}, time.Second, 5*time.Millisecond)

	call := recorder.started()[0]
	assert.Equal(t, "wf-feed", call.workflowID)
	assert.Equal(t, models.ModeTrigger, call.mode)
	require.Len(t, call.input, 1)
	assert.Equal(t, 1, call.input[0].JSON["seq"])
}

func TestActivator_EmptyPollDoesNotFire(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	recorder := &startRecorder{}

	saveTriggerWorkflow(t, store, "wf-feed", "feed", models.WorkflowStatusActive)

	activator := NewActivator(testLogger(), store, triggerRegistry(&feedFactory{}), recorder.start,
		WithScanInterval(10*time.Millisecond), WithScanHorizon(time.Second))

	activator.Start(context.Background())
	defer activator.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, recorder.started())
}

func TestActivator_IgnoresInactiveWorkflows(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	recorder := &startRecorder{}

	saveTriggerWorkflow(t, store, "wf-draft", "tick", models.WorkflowStatusDraft)

	activator := NewActivator(testLogger(), store, triggerRegistry(&tickFactory{delay: 10 * time.Millisecond}), recorder.start,
		WithScanInterval(10*time.Millisecond), WithScanHorizon(time.Second))

	activator.Start(context.Background())
	defer activator.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, recorder.started())
}
