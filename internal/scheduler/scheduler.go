// Package scheduler owns the single-instance lock, the cron entries
// that drive periodic ingest, enrich, and sync work, and the bounded
// queues that serialize jobs.
// Ingest and enrich share one worker (they never overlap); sync runs
// on its own worker, in parallel with ingestion but serialized against
// itself.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobKind names one of the periodic work types.
type JobKind string

const (
	JobIngest     JobKind = "ingest"
	JobEnrich     JobKind = "enrich"
	JobSync       JobKind = "sync"
	JobDailyCycle JobKind = "daily_cycle" // backup + full ingest at SYNC_TIME
)

// Job is one queued unit of work.
type Job struct {
	Kind JobKind
}

// Funcs are the callbacks the composition root wires in, one per job
// kind. Each receives a per-job context carrying the global
// cancellation signal.
type Funcs struct {
	Ingest     func(ctx context.Context) error
	Enrich     func(ctx context.Context) error
	Sync       func(ctx context.Context) error
	DailyCycle func(ctx context.Context) error
}

// queueCapacity bounds each job queue. A full queue drops the new job
// with a warning: the next cron tick re-enqueues the same kind, so a
// dropped tick costs one period, never correctness.
const queueCapacity = 16

// GracePeriod is how long in-flight jobs get to observe cancellation
// and commit or abort before shutdown stops waiting.
const GracePeriod = 30 * time.Second

// Scheduler drives the periodic jobs.
type Scheduler struct {
	funcs Funcs
	log   *zap.Logger
	cron  *cron.Cron

	pipelineQ chan Job // ingest, enrich, daily cycle: one worker, strict serial
	syncQ     chan Job // sync: own worker, serial against itself only

	wg sync.WaitGroup
}

// New constructs a Scheduler. syncHour/syncMinute position the daily
// full cycle (SYNC_TIME, default 03:00 local).
func New(funcs Funcs, syncHour, syncMinute int, log *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		funcs:     funcs,
		log:       log,
		cron:      cron.New(),
		pipelineQ: make(chan Job, queueCapacity),
		syncQ:     make(chan Job, queueCapacity),
	}

	entries := []struct {
		spec string
		kind JobKind
	}{
		{"0 * * * *", JobIngest},
		{"5 * * * *", JobEnrich},
		{"10 * * * *", JobSync},
		{fmt.Sprintf("%d %d * * *", syncMinute, syncHour), JobDailyCycle},
	}
	for _, e := range entries {
		kind := e.kind
		if _, err := s.cron.AddFunc(e.spec, func() { s.Enqueue(kind) }); err != nil {
			return nil, fmt.Errorf("invalid cron spec %q for %s: %w", e.spec, kind, err)
		}
	}

	return s, nil
}

// Enqueue queues a job of the given kind, dropping it if the queue is
// full (backpressure: the periodic schedule will offer it again).
func (s *Scheduler) Enqueue(kind JobKind) {
	q := s.pipelineQ
	if kind == JobSync {
		q = s.syncQ
	}
	select {
	case q <- Job{Kind: kind}:
		s.log.Debug("job enqueued", zap.String("kind", string(kind)))
	default:
		s.log.Warn("job queue full, dropping tick", zap.String("kind", string(kind)))
	}
}

// Run starts the cron schedule and the two workers, then blocks until
// ctx is cancelled. Shutdown drains gracefully: no new dispatches,
// in-flight jobs get GracePeriod to finish, then Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.log.Info("scheduler started")

	s.wg.Add(2)
	go s.worker(ctx, s.pipelineQ)
	go s.worker(ctx, s.syncQ)

	<-ctx.Done()
	s.cron.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scheduler drained cleanly")
	case <-time.After(GracePeriod):
		s.log.Warn("grace period elapsed with jobs still in flight")
	}
	return ctx.Err()
}

// worker executes jobs from q one at a time until ctx is cancelled.
func (s *Scheduler) worker(ctx context.Context, q chan Job) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q:
			s.dispatch(ctx, job)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, job Job) {
	fn := s.funcFor(job.Kind)
	if fn == nil {
		s.log.Warn("no handler wired for job kind", zap.String("kind", string(job.Kind)))
		return
	}

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		// Job-level errors are logged and absorbed; the scheduler
		// continues with subsequent jobs.
		s.log.Error("job failed",
			zap.String("kind", string(job.Kind)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return
	}
	s.log.Info("job completed",
		zap.String("kind", string(job.Kind)),
		zap.Duration("elapsed", elapsed))
}

func (s *Scheduler) funcFor(kind JobKind) func(context.Context) error {
	switch kind {
	case JobIngest:
		return s.funcs.Ingest
	case JobEnrich:
		return s.funcs.Enrich
	case JobSync:
		return s.funcs.Sync
	case JobDailyCycle:
		return s.funcs.DailyCycle
	default:
		return nil
	}
}
