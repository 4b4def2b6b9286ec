package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/civic-issue-service/internal/observability"
	"github.com/spec-kit/civic-issue-service/internal/persistence"
	"github.com/spec-kit/civic-issue-service/internal/service"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util/errorutil"
)

type fakeSweeper struct {
	mu     sync.Mutex
	calls  int
	result service.SweepResult
	err    error
	panics bool
}

func (f *fakeSweeper) RunSweep(context.Context) (service.SweepResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	return f.result, f.err
}

func (f *fakeSweeper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLocker struct {
	err  error
	keys []string
}

func (f *fakeLocker) AcquireLease(_ context.Context, key string, _ time.Duration) (*persistence.Lease, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return nil, f.err
	}
	return &persistence.Lease{}, nil
}

func TestRunOnceRecordsMetrics(t *testing.T) {
	sweeper := &fakeSweeper{result: service.SweepResult{Candidates: 3, Escalated: 2, Failed: 1}}
	locker := &fakeLocker{}
	metrics := observability.NewMetrics()
	w := NewSLAWorker(SLAWorkerConfig{Sweeper: sweeper, Locker: locker, Metrics: metrics})

	result, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Escalated)
	assert.Equal(t, []string{SweepLockKey}, locker.keys)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.SweepRuns)
	assert.Equal(t, int64(2), snap.SweepEscalated)
	assert.Equal(t, int64(1), snap.SweepFailed)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	sweeper := &fakeSweeper{}
	w := NewSLAWorker(SLAWorkerConfig{Sweeper: sweeper, Locker: &fakeLocker{err: persistence.ErrLockHeld}})

	_, err := w.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
	assert.Zero(t, sweeper.callCount())
}

func TestRunOnceSweepsWhenLockBackendDown(t *testing.T) {
	sweeper := &fakeSweeper{result: service.SweepResult{Escalated: 1}}
	w := NewSLAWorker(SLAWorkerConfig{Sweeper: sweeper, Locker: &fakeLocker{err: errors.New("dial tcp: refused")}})

	result, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Escalated)
	assert.Equal(t, 1, sweeper.callCount())
}

func TestRunOnceWithoutLocker(t *testing.T) {
	sweeper := &fakeSweeper{}
	w := NewSLAWorker(SLAWorkerConfig{Sweeper: sweeper})

	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sweeper.callCount())
}

func TestTickRecoversFromPanic(t *testing.T) {
	sweeper := &fakeSweeper{panics: true}
	w := NewSLAWorker(SLAWorkerConfig{Sweeper: sweeper})

	assert.NotPanics(t, func() { w.tick(context.Background()) })
	assert.Equal(t, 1, sweeper.callCount())
}

func TestStartStopsOnCancel(t *testing.T) {
	w := NewSLAWorker(SLAWorkerConfig{Sweeper: &fakeSweeper{}})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestIntervalFloor(t *testing.T) {
	w := NewSLAWorker(SLAWorkerConfig{Sweeper: &fakeSweeper{}, Interval: time.Second})
	assert.Equal(t, time.Minute, w.interval)
	assert.Equal(t, time.Minute, w.lockTTL)
}
