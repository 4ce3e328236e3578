package cron

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/scoutledger/backend/pkg/logger"
	"github.com/scoutledger/backend/pkg/metrics"
)

const defaultInterval = time.Hour

// ErrLockHeld is returned by RunOnce when another worker owns the cron lease.
var ErrLockHeld = errors.New("another cron instance holds the lock")

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// JobTimeout bounds each job run; zero leaves jobs bounded only by ctx.
	JobTimeout time.Duration
}

// Service runs every registered job once per interval while holding the
// cluster-wide lock. Jobs run sequentially; one failing job does not stop the
// rest of the cycle.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	s := &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run fires a cycle immediately and then on every tick until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "scheduled run failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// withLock runs fn while holding the lease. ok is false when another instance
// already holds it.
func (s *Service) withLock(ctx context.Context, fn func(ctx context.Context)) (bool, error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		return false, nil
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "release cron lock", err)
		}
	}()
	fn(ctx)
	return true, nil
}

func (s *Service) runCycle(ctx context.Context) error {
	ran, err := s.withLock(ctx, func(ctx context.Context) {
		ctx = s.logg.WithField(ctx, "cycle_id", uuid.NewString())
		jobs := s.registry.Jobs()
		failed := 0
		for _, job := range jobs {
			if s.runJob(ctx, job) != nil {
				failed++
			}
			if err := s.extendLease(ctx); err != nil {
				s.logg.Error(ctx, "cron lock lost; stopping cycle", err)
				break
			}
		}
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"jobs": len(jobs), "failed_jobs": failed}), "scheduled run complete")
	})
	if err != nil {
		return err
	}
	if !ran {
		s.logg.Info(ctx, "another cron instance is running; skipping this cycle")
		s.metrics.IncLockSkipped()
	}
	return nil
}

func (s *Service) extendLease(ctx context.Context) error {
	ext, ok := s.lock.(extender)
	if !ok {
		return nil
	}
	return ext.Extend(ctx)
}

// RunOnce runs the named job under the cron lock, outside the schedule.
func (s *Service) RunOnce(ctx context.Context, name string) error {
	job, ok := s.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown cron job %q", name)
	}
	var jobErr error
	ran, err := s.withLock(ctx, func(ctx context.Context) {
		jobErr = s.runJob(ctx, job)
	})
	switch {
	case err != nil:
		return err
	case !ran:
		return ErrLockHeld
	}
	return jobErr
}

func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	ctx = s.logg.WithField(ctx, "job", job.Name())
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), rec)
			ctx = s.logg.WithField(ctx, "panic_stack", string(debug.Stack()))
		}
		elapsed := time.Since(start)
		s.metrics.ObserveDuration(job.Name(), elapsed)
		ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
		if err != nil {
			s.metrics.IncFailure(job.Name())
			s.logg.Error(ctx, "job failed", err)
			return
		}
		s.metrics.IncSuccess(job.Name())
		s.logg.Info(ctx, "job completed")
	}()

	s.logg.Info(ctx, "job start")
	return job.Run(ctx)
}
