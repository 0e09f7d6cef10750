// Package scheduler runs one-shot jobs at a future wall-clock time. Jobs live
// in memory only and are lost when the process exits.
package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	meter = otel.GetMeterProvider().Meter("github.com/pure-golang/bannermail/scheduler")
	// nolint:errcheck // Sync OpenTelemetry instruments never return errors
	jobsScheduled, _ = meter.Int64Counter("scheduler.jobs_scheduled")
	jobsCompleted, _ = meter.Int64Counter("scheduler.jobs_completed")
	jobsCancelled, _ = meter.Int64Counter("scheduler.jobs_cancelled")
	tracer           = otel.Tracer("github.com/pure-golang/bannermail/scheduler")
)

// Scheduler keeps a registry of pending jobs on top of a cron engine.
type Scheduler struct {
	cron   *cron.Cron
	clock  Clock
	logger *slog.Logger

	mu      sync.Mutex
	jobs    map[string]*job
	started bool
}

// New creates a stopped Scheduler. Jobs may be registered before Start.
func New(opts ...Option) *Scheduler {
	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	log := cfg.logger.WithGroup("scheduler")
	cl := cronLogger{l: log}

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		clock:  cfg.clock,
		logger: log,
		jobs:   make(map[string]*job),
	}
}

// Start begins firing jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.cron.Start()
	s.started = true
	s.logger.Info("scheduler started", "pending", len(s.jobs))
	return nil
}

// Stop halts the engine and waits for running jobs until ctx is done. Jobs
// that have not fired are discarded with the process.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	pending := len(s.jobs)
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped", "dropped", pending)
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "scheduler: waiting for running jobs")
	}
}

// Schedule registers h to run once at runAt and returns the job ID.
func (s *Scheduler) Schedule(name string, runAt time.Time, h Handler) (string, error) {
	if h == nil {
		return "", ErrNilHandler
	}
	now := s.clock.Now()
	if !runAt.After(now) {
		return "", errors.Wrapf(ErrPastRunTime, "run at %s", runAt.Format(time.RFC3339))
	}

	j := &job{
		info: JobInfo{
			ID:      newJobID(now),
			Name:    name,
			RunAt:   runAt,
			State:   StateRegistered,
			Created: now,
		},
		handler: h,
	}

	s.mu.Lock()
	s.jobs[j.info.ID] = j
	j.entryID = s.cron.Schedule(&oneShot{at: runAt}, cron.FuncJob(func() { s.run(j.info.ID) }))
	s.mu.Unlock()

	jobsScheduled.Add(context.Background(), 1, metric.WithAttributes(attribute.String("job.name", name)))
	s.logger.Info("job scheduled", "job_id", j.info.ID, "name", name, "run_at", runAt)

	return j.info.ID, nil
}

// Cancel withdraws a job that has not started executing.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok || j.info.State != StateRegistered {
		s.mu.Unlock()
		return errors.Wrapf(ErrJobNotFound, "id %s", id)
	}
	delete(s.jobs, id)
	s.mu.Unlock()

	s.cron.Remove(j.entryID)
	jobsCancelled.Add(context.Background(), 1, metric.WithAttributes(attribute.String("job.name", j.info.Name)))
	s.logger.Info("job cancelled", "job_id", id)
	return nil
}

// Pending lists registered and executing jobs ordered by run time.
func (s *Scheduler) Pending() []JobInfo {
	s.mu.Lock()
	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.info)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, k int) bool {
		if out[i].RunAt.Equal(out[k].RunAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].RunAt.Before(out[k].RunAt)
	})
	return out
}

// Len returns the number of pending jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) markExecuting(id string) *job {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil
	}
	j.info.State = StateExecuting
	return j
}

func (s *Scheduler) finish(j *job) {
	s.mu.Lock()
	delete(s.jobs, j.info.ID)
	s.mu.Unlock()

	s.cron.Remove(j.entryID)
}

func (s *Scheduler) run(id string) {
	j := s.markExecuting(id)
	if j == nil {
		// cancelled between firing and execution
		return
	}
	defer s.finish(j)

	ctx, span := tracer.Start(context.Background(), "Scheduler.Run", trace.WithAttributes(
		attribute.String("job.id", j.info.ID),
		attribute.String("job.name", j.info.Name),
	))
	defer span.End()

	log := s.logger.With("job_id", j.info.ID, "name", j.info.Name)
	log.Info("job started", "run_at", j.info.RunAt)

	status := "ok"
	if err := invoke(ctx, j.handler); err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("job failed", "error", err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		log.Info("job completed")
	}

	jobsCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job.name", j.info.Name),
		attribute.String("status", status),
	))
}

func invoke(ctx context.Context, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return h(ctx)
}
