package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietScheduler() *Scheduler {
	return NewScheduler(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func fastRetries(n int) *JobConfig {
	return &JobConfig{MaxRetries: n, RetryBackoff: LinearBackoff, BaseDelay: time.Millisecond, Timeout: time.Second}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		strategy BackoffStrategy
		attempt  int
		want     time.Duration
	}{
		{NoBackoff, 3, 0},
		{LinearBackoff, 3, 3 * time.Second},
		{ExponentialBackoff, 1, time.Second},
		{ExponentialBackoff, 4, 8 * time.Second},
		{ExponentialBackoff, 0, time.Second},
		{ExponentialBackoff, 20, time.Hour},
		{ExponentialBackoff, 64, time.Hour},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CalculateBackoff(tt.strategy, tt.attempt, time.Second), "%s/%d", tt.strategy, tt.attempt)
	}
}

func TestJobError(t *testing.T) {
	base := errors.New("dial tcp: refused")
	err := &JobError{Job: "cache.reconnect", Err: base, Retry: true}
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "job cache.reconnect failed, will retry: dial tcp: refused", err.Error())
}

func TestScheduler_OneOffRetriesUntilSuccess(t *testing.T) {
	s := quietScheduler()
	var calls atomic.Int32
	s.Register(Job{
		Name:   "preload",
		Config: fastRetries(3),
		Run: func(context.Context) error {
			if calls.Add(1) < 3 {
				return errors.New("not yet")
			}
			return nil
		},
	})
	s.Start(context.Background())
	s.Wait()
	require.NoError(t, s.Close())

	assert.Equal(t, int32(3), calls.Load())
	st, ok := s.Stats("preload")
	require.True(t, ok)
	assert.Equal(t, int64(3), st.Runs)
	assert.Equal(t, int64(2), st.Failures)
	assert.Empty(t, st.LastError)
}

func TestScheduler_GivesUpAfterMaxRetries(t *testing.T) {
	s := quietScheduler()
	var calls atomic.Int32
	s.Register(Job{
		Name:   "broken",
		Config: fastRetries(2),
		Run: func(context.Context) error {
			calls.Add(1)
			return errors.New("boom")
		},
	})
	s.Start(context.Background())
	s.Wait()
	require.NoError(t, s.Close())

	assert.Equal(t, int32(3), calls.Load())
	st, _ := s.Stats("broken")
	assert.Equal(t, "boom", st.LastError)
}

func TestScheduler_RepeatsUntilStopped(t *testing.T) {
	s := quietScheduler()
	ran := make(chan struct{}, 16)
	s.Register(Job{
		Name:     "probe",
		Schedule: Every(time.Millisecond),
		Config:   fastRetries(0),
		Run: func(context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		},
	})
	s.Start(context.Background())
	for range 3 {
		select {
		case <-ran:
		case <-time.After(5 * time.Second):
			t.Fatal("job did not repeat")
		}
	}
	require.NoError(t, s.Close())

	st, _ := s.Stats("probe")
	assert.GreaterOrEqual(t, st.Runs, int64(3))
}

func TestScheduler_StopCancelsRunningAttempt(t *testing.T) {
	s := quietScheduler()
	started := make(chan struct{})
	s.Register(Job{
		Name:   "slow",
		Config: &JobConfig{MaxRetries: 5, RetryBackoff: ExponentialBackoff, BaseDelay: time.Hour},
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	})
	s.Start(context.Background())
	<-started
	require.NoError(t, s.Close())

	st, _ := s.Stats("slow")
	assert.Equal(t, int64(1), st.Runs)
}

func TestScheduler_UnknownStats(t *testing.T) {
	_, ok := quietScheduler().Stats("nope")
	assert.False(t, ok)
}
