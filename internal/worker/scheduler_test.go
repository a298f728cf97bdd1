package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReconciler struct {
	calls atomic.Int32
	err   error
}

func (r *countingReconciler) ReconcileAll(ctx context.Context) (int, error) {
	r.calls.Add(1)
	return 1, r.err
}

func TestNewScheduler_RejectsBadSchedule(t *testing.T) {
	_, err := NewScheduler("whenever", &countingReconciler{}, time.Second, zerolog.Nop())
	assert.Error(t, err)
}

func TestScheduler_RunOnce(t *testing.T) {
	r := &countingReconciler{err: errors.New("boom")}
	s, err := NewScheduler("@every 1h", r, time.Second, zerolog.Nop())
	require.NoError(t, err)

	s.RunOnce(context.Background())
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	r := &countingReconciler{}
	s, err := NewScheduler("@every 1s", r, time.Second, zerolog.Nop())
	require.NoError(t, err)

	s.Start()
	defer func() { <-s.Stop().Done() }()

	assert.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}
