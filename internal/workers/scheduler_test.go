package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeagents/internal/testsupport"
	"codeagents/pkg/errors"
)

type mockWorker struct {
	*BaseWorker
	runCount int32
	runFunc  func(ctx context.Context) error
}

func newMockWorker(name string, interval time.Duration, enabled bool) *mockWorker {
	return &mockWorker{BaseWorker: NewBaseWorker(name, interval, enabled)}
}

func (m *mockWorker) Run(ctx context.Context) error {
	atomic.AddInt32(&m.runCount, 1)
	if m.runFunc != nil {
		return m.runFunc(ctx)
	}
	return nil
}

func (m *mockWorker) runs() int {
	return int(atomic.LoadInt32(&m.runCount))
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := NewScheduler(time.Second, nil)

	worker := newMockWorker("scan", 50*time.Millisecond, true)
	require.NoError(t, scheduler.RegisterWorker(worker))

	require.NoError(t, scheduler.Start(context.Background()))
	assert.True(t, scheduler.IsRunning())

	time.Sleep(130 * time.Millisecond)

	require.NoError(t, scheduler.Stop())
	assert.False(t, scheduler.IsRunning())

	// immediate run plus at least one tick
	assert.GreaterOrEqual(t, worker.runs(), 2)
	assert.Equal(t, int64(worker.runs()), scheduler.Health()["scan"].RunCount)
}

func TestScheduler_RegisterValidation(t *testing.T) {
	scheduler := NewScheduler(time.Second, nil)

	require.NoError(t, scheduler.RegisterWorker(newMockWorker("scan", time.Second, true)))

	err := scheduler.RegisterWorker(newMockWorker("scan", time.Second, true))
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	err = scheduler.RegisterWorker(newMockWorker("zero", 0, true))
	assert.Error(t, err)

	require.NoError(t, scheduler.Start(context.Background()))
	defer scheduler.Stop()

	err = scheduler.RegisterWorker(newMockWorker("late", time.Second, true))
	assert.True(t, errors.Is(err, errors.ErrUnsupportedOperation))
	assert.Len(t, scheduler.Workers(), 1)
}

func TestScheduler_DisabledWorker(t *testing.T) {
	scheduler := NewScheduler(time.Second, nil)

	enabled := newMockWorker("enabled", 50*time.Millisecond, true)
	disabled := newMockWorker("disabled", 50*time.Millisecond, false)
	require.NoError(t, scheduler.RegisterWorker(enabled))
	require.NoError(t, scheduler.RegisterWorker(disabled))

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(80 * time.Millisecond)
	require.NoError(t, scheduler.Stop())

	assert.Greater(t, enabled.runs(), 0)
	assert.Equal(t, 0, disabled.runs())
}

func TestScheduler_ErrorsAndPanicsAreRecorded(t *testing.T) {
	tracker := testsupport.NewRecordingTracker()
	scheduler := NewScheduler(time.Second, tracker)

	failing := newMockWorker("failing", time.Hour, true)
	failing.runFunc = func(context.Context) error {
		return errors.Wrap(errors.ErrNotFound, "directory vanished")
	}
	panicking := newMockWorker("panicking", time.Hour, true)
	panicking.runFunc = func(context.Context) error {
		panic("boom")
	}
	require.NoError(t, scheduler.RegisterWorker(failing))
	require.NoError(t, scheduler.RegisterWorker(panicking))

	require.NoError(t, scheduler.Start(context.Background()))
	require.Eventually(t, func() bool {
		h := scheduler.Health()
		return h["failing"].ErrorCount == 1 && h["panicking"].ErrorCount == 1
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, scheduler.Stop())

	health := scheduler.Health()
	assert.True(t, errors.Is(health["failing"].LastError, errors.ErrNotFound))
	assert.True(t, errors.Is(health["panicking"].LastError, errors.ErrInternal))

	// only internal failures reach the tracker
	require.Len(t, tracker.Errors(), 1)
	assert.True(t, errors.Is(tracker.Errors()[0], errors.ErrInternal))
}

func TestScheduler_ContextCancellation(t *testing.T) {
	scheduler := NewScheduler(time.Second, nil)

	worker := newMockWorker("scan", time.Hour, true)
	worker.runFunc = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	require.NoError(t, scheduler.RegisterWorker(worker))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, scheduler.Start(ctx))
	cancel()

	require.NoError(t, scheduler.Stop())
}

func TestScheduler_ShutdownTimeout(t *testing.T) {
	scheduler := NewScheduler(20*time.Millisecond, nil)

	release := make(chan struct{})
	defer close(release)

	worker := newMockWorker("stuck", time.Hour, true)
	worker.runFunc = func(context.Context) error {
		<-release
		return nil
	}
	require.NoError(t, scheduler.RegisterWorker(worker))
	require.NoError(t, scheduler.Start(context.Background()))
	require.Eventually(t, func() bool { return worker.runs() == 1 }, time.Second, 5*time.Millisecond)

	err := scheduler.Stop()
	assert.True(t, errors.Is(err, errors.ErrTimeout))
}

func TestScheduler_CannotStartTwice(t *testing.T) {
	scheduler := NewScheduler(time.Second, nil)
	require.NoError(t, scheduler.RegisterWorker(newMockWorker("scan", time.Second, true)))

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Error(t, scheduler.Start(context.Background()))
	require.NoError(t, scheduler.Stop())

	assert.Error(t, scheduler.Stop())
}
