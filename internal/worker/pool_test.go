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

func TestPool_DoReturnsJobResult(t *testing.T) {
	p := NewPool(2, zerolog.Nop())
	p.Start(context.Background())
	defer p.Stop()

	var ran atomic.Int32
	require.NoError(t, p.Do(context.Background(), func(context.Context) error {
		ran.Add(1)
		return nil
	}))
	assert.Equal(t, int32(1), ran.Load())

	boom := errors.New("boom")
	assert.ErrorIs(t, p.Do(context.Background(), func(context.Context) error { return boom }), boom)
}

func TestPool_DoHonoursCancellation(t *testing.T) {
	p := NewPool(1, zerolog.Nop())
	p.Start(context.Background())
	defer p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		errc <- p.Do(ctx, func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	<-started
	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestPool_SubmitWhenFull(t *testing.T) {
	p := NewPool(1, zerolog.Nop())
	// not started: nothing drains the queue of size 2
	noop := func(context.Context) error { return nil }
	require.NoError(t, p.Submit(noop))
	require.NoError(t, p.Submit(noop))
	assert.ErrorIs(t, p.Submit(noop), ErrPoolFull)
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := NewPool(1, zerolog.Nop())
	p.Start(context.Background())
	p.Stop()
	p.Stop()

	assert.ErrorIs(t, p.Submit(func(context.Context) error { return nil }), ErrPoolStopped)
}
