package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence/file"
	"github.com/weftlabs/weft/pkg/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type resumeRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *resumeRecorder) resume(_ context.Context, execution *models.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ids = append(r.ids, execution.ID)

	return nil
}

func (r *resumeRecorder) resumed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.ids...)
}

func parkedExecution(t *testing.T, store *file.Persistence, wakeIn time.Duration) *models.Execution {
	t.Helper()

	execution := testutil.CreateTestExecution("wf-1")
	execution.Status = models.ExecutionStatusWaiting
	wakeAt := time.Now().UTC().Add(wakeIn)
	execution.WaitTill = &wakeAt

	require.NoError(t, store.SaveExecution(context.Background(), execution))

	return execution
}

func TestWaitTracker_ResumesDueExecution(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	recorder := &resumeRecorder{}

	execution := parkedExecution(t, store, 20*time.Millisecond)

	tracker := NewWaitTracker(testLogger(), store, recorder.resume,
		WithPollInterval(10*time.Millisecond), WithHorizon(time.Second))

	tracker.Start(context.Background())
	defer tracker.Stop()

	require.Eventually(t, func() bool {
		return len(recorder.resumed()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{execution.ID}, recorder.resumed())
}

func TestWaitTracker_IgnoresExecutionsBeyondHorizon(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	recorder := &resumeRecorder{}

	parkedExecution(t, store, time.Hour)

	tracker := NewWaitTracker(testLogger(), store, recorder.resume,
		WithPollInterval(10*time.Millisecond), WithHorizon(50*time.Millisecond))

	tracker.Start(context.Background())
	defer tracker.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, recorder.resumed())
}

func TestWaitTracker_StopExecutionCancelsRun(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	recorder := &resumeRecorder{}

	execution := parkedExecution(t, store, 200*time.Millisecond)

	tracker := NewWaitTracker(testLogger(), store, recorder.resume,
		WithPollInterval(10*time.Millisecond), WithHorizon(time.Second))

	tracker.Start(context.Background())
	defer tracker.Stop()

	// Give the scan a chance to arm the timer first.
	time.Sleep(30 * time.Millisecond)

	require.NoError(t, tracker.StopExecution(context.Background(), execution.ID))

	stored, err := store.ExecutionByID(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCanceled, stored.Status)
	assert.Nil(t, stored.WaitTill)
	require.NotNil(t, stored.Data.ResultData.Error)
	assert.Equal(t, models.ErrorKindOperation, stored.Data.ResultData.Error.Kind)

	// The disarmed timer must never fire.
	time.Sleep(250 * time.Millisecond)
	assert.Empty(t, recorder.resumed())
}

func TestWaitTracker_WakeSkipsAlreadyResumedRun(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	recorder := &resumeRecorder{}

	execution := parkedExecution(t, store, 30*time.Millisecond)

	tracker := NewWaitTracker(testLogger(), store, recorder.resume,
		WithPollInterval(10*time.Millisecond), WithHorizon(time.Second))

	// Another process resumed the run before our timer fires.
	execution.Status = models.ExecutionStatusSuccess
	execution.WaitTill = nil
	require.NoError(t, store.SaveExecution(context.Background(), execution))

	tracker.Start(context.Background())
	defer tracker.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, recorder.resumed())
}
