package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"lead_protection_backend/platform/logger"
	"lead_protection_backend/platform/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	runs          atomic.Int32
	pseudonymized atomic.Int32
	err           error
	cancelOnSweep context.CancelFunc
}

func (s *countingSweeper) SweepDue(context.Context) (metrics.SweepStats, error) {
	s.runs.Add(1)
	if s.cancelOnSweep != nil {
		s.cancelOnSweep()
	}
	return metrics.SweepStats{}, s.err
}

func (s *countingSweeper) PseudonymizeExpired(context.Context) (int, error) {
	s.pseudonymized.Add(1)
	return 0, nil
}

type stubLock struct {
	held     bool
	err      error
	released int
}

func (l *stubLock) TryAcquire(context.Context) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.held {
		return nil, nil
	}
	l.held = true
	return func(context.Context) error {
		l.held = false
		l.released++
		return nil
	}, nil
}

func TestProtectionSweepRunOnce(t *testing.T) {
	tests := []struct {
		name     string
		lock     *stubLock
		wantRan  bool
		wantRuns int32
	}{
		{name: "free lock", lock: &stubLock{}, wantRan: true, wantRuns: 1},
		{name: "held elsewhere", lock: &stubLock{held: true}, wantRan: false, wantRuns: 0},
		{name: "redis down", lock: &stubLock{err: errors.New("dial tcp: refused")}, wantRan: false, wantRuns: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sweeper := &countingSweeper{}
			job := NewProtectionSweep(sweeper, tt.lock, logger.Discard(), 0)

			assert.Equal(t, tt.wantRan, job.RunOnce(context.Background()))
			assert.Equal(t, tt.wantRuns, sweeper.runs.Load())
			assert.Equal(t, tt.wantRuns, sweeper.pseudonymized.Load(), "pseudonymization runs under the same lease")
			if tt.wantRan {
				assert.Equal(t, 1, tt.lock.released)
				assert.False(t, tt.lock.held)
			}
		})
	}
}

func TestProtectionSweepReleasesLockOnSweepError(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("db down")}
	lock := &stubLock{}
	job := NewProtectionSweep(sweeper, lock, logger.Discard(), 0)

	require.True(t, job.RunOnce(context.Background()))
	assert.Equal(t, 1, lock.released)
}

func TestProtectionSweepWithRedisLock(t *testing.T) {
	_, rdb := newTestRedis(t)
	sweeper := &countingSweeper{}
	lock := NewRedisLock(rdb, "", 0)

	replicaA := NewProtectionSweep(sweeper, lock, logger.Discard(), 0)
	replicaB := NewProtectionSweep(sweeper, lock, logger.Discard(), 0)

	release, err := lock.TryAcquire(context.Background())
	require.NoError(t, err)
	assert.False(t, replicaA.RunOnce(context.Background()))
	require.NoError(t, release(context.Background()))

	assert.True(t, replicaB.RunOnce(context.Background()))
	assert.Equal(t, int32(1), sweeper.runs.Load())
}

func TestProtectionSweepRunStopsOnCancel(t *testing.T) {
	sweeper := &countingSweeper{}
	job := NewProtectionSweep(sweeper, nil, logger.Discard(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job.Run(ctx)
	assert.Equal(t, int32(1), sweeper.runs.Load())
}

func TestProtectionSweepPseudonymizesAfterFailedSweep(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("one lead failed")}
	job := NewProtectionSweep(sweeper, &stubLock{}, logger.Discard(), 0)

	require.True(t, job.RunOnce(context.Background()))
	assert.Equal(t, int32(1), sweeper.pseudonymized.Load())
}

func TestProtectionSweepSkipsPseudonymizationOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper := &countingSweeper{cancelOnSweep: cancel}
	lock := &stubLock{}
	job := NewProtectionSweep(sweeper, lock, logger.Discard(), 0)

	require.True(t, job.RunOnce(ctx))
	assert.Equal(t, int32(1), sweeper.runs.Load())
	assert.Zero(t, sweeper.pseudonymized.Load())
	assert.Equal(t, 1, lock.released)
}
