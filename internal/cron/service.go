package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/microcommerce-backend/pkg/logger"
	"github.com/angelmondragon/microcommerce-backend/pkg/metrics"
)

// Job is one maintenance sweep. Jobs must be idempotent; a crashed cycle is simply retried next tick.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type SchedulerParams struct {
	Logger   *logger.Logger
	Locker   Locker
	Metrics  *metrics.JobMetrics
	Interval time.Duration
	Jobs     []Job
}

// Scheduler runs every job once per interval while holding the lock.
type Scheduler struct {
	logg     *logger.Logger
	locker   Locker
	metrics  *metrics.JobMetrics
	interval time.Duration
	jobs     []Job
}

func NewScheduler(params SchedulerParams) (*Scheduler, error) {
	if params.Logger == nil {
		return nil, errors.New("cron: logger required")
	}
	if params.Locker == nil {
		return nil, errors.New("cron: locker required")
	}
	if params.Interval <= 0 {
		return nil, errors.New("cron: interval must be positive")
	}
	jobs := make([]Job, 0, len(params.Jobs))
	seen := make(map[string]struct{}, len(params.Jobs))
	for _, job := range params.Jobs {
		if job == nil {
			continue
		}
		if _, dup := seen[job.Name()]; dup {
			return nil, fmt.Errorf("cron: duplicate job %q", job.Name())
		}
		seen[job.Name()] = struct{}{}
		jobs = append(jobs, job)
	}
	return &Scheduler{
		logg:     params.Logger,
		locker:   params.Locker,
		metrics:  params.Metrics,
		interval: params.Interval,
		jobs:     jobs,
	}, nil
}

// Run sweeps immediately and then on every tick until ctx is canceled.
// Cycle failures are logged; they never stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron.cycle_failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes one cycle. It returns nil without running anything when another replica holds the lock,
// and otherwise the combined errors of every failed job.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	lease, ok, err := s.locker.TryLock(ctx)
	if err != nil {
		return err
	}
	if !ok {
		s.metrics.IncLockSkipped()
		s.logg.Info(ctx, "cron.cycle_skipped_lock_held")
		return nil
	}
	defer func() {
		// release on a fresh context so shutdown does not strand the lease
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lease.Unlock(releaseCtx); err != nil {
			s.logg.Error(ctx, "cron.unlock_failed", err)
		}
	}()

	var cycleErr error
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return multierr.Append(cycleErr, ctx.Err())
		}
		if err := s.runJob(ctx, job); err != nil {
			cycleErr = multierr.Append(cycleErr, fmt.Errorf("%s: %w", job.Name(), err))
		}
	}
	return cycleErr
}

func (s *Scheduler) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	started := time.Now()
	err := job.Run(jobCtx)
	elapsed := time.Since(started)

	s.metrics.ObserveRun(job.Name(), elapsed, err)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "cron.job_failed", err)
		return err
	}
	s.logg.Info(jobCtx, "cron.job_done")
	return nil
}
