package eventbus

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/channels/gochannel"
	"github.com/weftlabs/weft/pkg/events"
	"github.com/weftlabs/weft/pkg/hooks"
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/testutil"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan *events.ExecutionCompleted, 1)

	err := bus.Handle(events.ExecutionCompletedEvent, func(_ context.Context, event interface{}) error {
		completed, ok := event.(*events.ExecutionCompleted)
		require.True(t, ok)
		received <- completed

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	err = bus.Publish(ctx, "wf-1", events.ExecutionCompleted{
		BaseEvent: events.BaseEvent{
			ID:         bus.GenerateID(),
			Type:       events.ExecutionCompletedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: "wf-1",
		},
		ExecutionID:   "exec-1",
		NodesExecuted: 3,
	})
	require.NoError(t, err)

	select {
	case completed := <-received:
		assert.Equal(t, "exec-1", completed.ExecutionID)
		assert.Equal(t, 3, completed.NodesExecuted)
		assert.Equal(t, "wf-1", completed.WorkflowID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_UnhandledTypeIsAcked(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered; publishing must still succeed and not wedge the
	// subscriber loop.
	err := bus.Publish(ctx, "wf-1", events.WorkflowDeleted{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.WorkflowDeletedEvent, WorkflowID: "wf-1"},
	})
	require.NoError(t, err)
}

func TestExecutionEventPublisher_LifecycleFromHooks(t *testing.T) {
	bus := newTestBus(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var types []events.EventType

	collected := make(chan events.EventType, 8)
	collect := func(_ context.Context, event interface{}) error {
		collected <- event.(interface{ GetType() events.EventType }).GetType()

		return nil
	}

	for _, eventType := range []events.EventType{
		events.ExecutionStartedEvent,
		events.NodeStartedEvent,
		events.NodeFinishedEvent,
		events.ExecutionCompletedEvent,
	} {
		require.NoError(t, bus.Handle(eventType, collect))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	workflow := testutil.CreateTestWorkflow([]*models.Node{testutil.CreateTestNode()}, models.Connections{})
	execution := testutil.CreateTestExecution(workflow.ID)

	executionHooks := hooks.New(logger, execution.ID, workflow.ID, models.ModeManual)
	NewExecutionEventPublisher(logger, bus, "worker-1").Attach(executionHooks, workflow)

	executionHooks.WorkflowExecuteBefore(ctx)
	executionHooks.NodeExecuteBefore(ctx, "Test Node")
	executionHooks.NodeExecuteAfter(ctx, "Test Node", &models.TaskData{
		Data: [][]models.ExecutionItem{testutil.Items(map[string]any{"ok": true})},
	})

	execution.Transition(models.ExecutionStatusRunning)
	execution.Transition(models.ExecutionStatusSuccess)
	executionHooks.WorkflowExecuteAfter(ctx, execution, nil)

	deadline := time.After(2 * time.Second)
	for len(types) < 4 {
		select {
		case eventType := <-collected:
			types = append(types, eventType)
		case <-deadline:
			t.Fatalf("got %d events, want 4: %v", len(types), types)
		}
	}

	assert.ElementsMatch(t, []events.EventType{
		events.ExecutionStartedEvent,
		events.NodeStartedEvent,
		events.NodeFinishedEvent,
		events.ExecutionCompletedEvent,
	}, types)
}
