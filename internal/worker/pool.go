package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrPoolFull is returned when the job queue has no free slot.
	ErrPoolFull = errors.New("worker pool job queue full")
	// ErrPoolStopped is returned for jobs submitted after Stop.
	ErrPoolStopped = errors.New("worker pool stopped")
)

// Job is a unit of work run on one of the pool's goroutines.
type Job func(ctx context.Context) error

// Pool runs jobs on a fixed number of goroutines fed by a bounded queue.
type Pool struct {
	workerCount int
	jobChan     chan Job
	wg          sync.WaitGroup
	log         zerolog.Logger

	mu      sync.RWMutex
	stopped bool
}

// NewPool creates a pool with workerCount goroutines and a queue of twice that size.
func NewPool(workerCount int, log zerolog.Logger) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{
		workerCount: workerCount,
		jobChan:     make(chan Job, workerCount*2),
		log:         log.With().Str("component", "worker_pool").Logger(),
	}
}

// Start launches the workers. They exit when ctx is cancelled or Stop is called.
func (p *Pool) Start(ctx context.Context) {
	p.log.Info().Int("worker_count", p.workerCount).Msg("Starting worker pool")

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop closes the queue and waits for queued jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobChan)
	p.mu.Unlock()

	p.log.Info().Msg("Stopping worker pool")
	p.wg.Wait()
	p.log.Info().Msg("Worker pool stopped")
}

// Submit enqueues job without blocking.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.jobChan <- job:
		return nil
	default:
		p.log.Warn().Msg("Worker pool job queue full, job rejected")
		return ErrPoolFull
	}
}

// Do runs job on the pool and waits for its result. The job receives ctx, so
// cancelling ctx aborts the job; Do itself returns ctx.Err() as soon as ctx is
// done even if the job has not noticed yet.
func (p *Pool) Do(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	err := p.Submit(func(context.Context) error {
		err := job(ctx)
		done <- err
		return err
	})
	if err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	log := p.log.With().Int("worker_id", id).Logger()
	log.Debug().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Worker stopping due to context cancellation")
			return
		case job, ok := <-p.jobChan:
			if !ok {
				log.Debug().Msg("Worker stopping due to closed job channel")
				return
			}

			if err := job(ctx); err != nil {
				log.Error().Err(err).Msg("Job execution failed")
			}
		}
	}
}
