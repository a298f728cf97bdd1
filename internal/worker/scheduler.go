package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Reconciler re-applies the approval rules to every student.
type Reconciler interface {
	ReconcileAll(ctx context.Context) (int, error)
}

// Scheduler runs the periodic reconciliation sweep. A run still in progress
// when the next one is due causes that tick to be skipped.
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	timeout    time.Duration
	log        zerolog.Logger
}

// NewScheduler registers the sweep on schedule (standard cron syntax or
// descriptors such as "@every 15m"). Each run is bounded by timeout.
func NewScheduler(schedule string, reconciler Reconciler, timeout time.Duration, log zerolog.Logger) (*Scheduler, error) {
	log = log.With().Str("component", "scheduler").Logger()
	cronLog := cronLogger{log: log}

	s := &Scheduler{
		cron:       cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
		reconciler: reconciler,
		timeout:    timeout,
		log:        log,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce performs one sweep and logs its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()
	changed, err := s.reconciler.ReconcileAll(ctx)
	if err != nil {
		s.log.Error().Err(err).Int("changed", changed).Msg("Approval reconciliation finished with errors")
		return
	}
	s.log.Info().
		Int("changed", changed).
		Dur("duration", time.Since(start)).
		Msg("Approval reconciliation finished")
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.log.Info().Msg("Starting reconciliation scheduler")
	s.cron.Start()
}

// Stop halts the schedule. The returned context is done once a running sweep
// has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
