package cron

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
)

const (
	defaultInterval   = 24 * time.Hour
	defaultJobTimeout = time.Hour
)

type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	// Interval between cycles. Defaults to 24h.
	Interval   time.Duration
	// JobTimeout bounds a single job. Defaults to 1h.
	JobTimeout time.Duration
}

// Service runs every registered job once per cycle. Cycles are serialized
// across replicas through Lock.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
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
	if s.jobTimeout <= 0 {
		s.jobTimeout = defaultJobTimeout
	}
	return s, nil
}

// Run executes a cycle immediately and then on every tick until ctx ends.
// Cycle failures are logged; only cancellation stops the loop.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
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

// RunOnce runs a single cycle. It returns nil without running anything when
// another replica holds the lock. A failing job does not stop the ones after
// it; their errors are combined.
func (s *Service) RunOnce(ctx context.Context) (err error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another cron instance is running; skipping this cycle")
		return nil
	}
	defer func() {
		relErr := s.lock.Release(context.WithoutCancel(ctx))
		switch {
		case errors.Is(relErr, ErrLockLost):
			s.logg.Warn(ctx, "cron lock expired before the cycle finished")
		case relErr != nil:
			err = multierr.Append(err, fmt.Errorf("lock release: %w", relErr))
		}
	}()

	started := time.Now()
	s.logg.Info(s.logg.WithField(ctx, "jobs", s.registry.Len()), "scheduled run starting")
	for _, job := range s.registry.Jobs() {
		if jobErr := s.runJob(ctx, job); jobErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", job.Name(), jobErr))
		}
	}
	s.logg.Info(s.logg.WithField(ctx, "duration_ms", time.Since(started).Milliseconds()), "scheduled run complete")
	return err
}

func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	jobCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
		}
		took := time.Since(start)
		s.metrics.ObserveRun(job.Name(), took, err)

		doneCtx := s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds())
		if err != nil {
			s.logg.Error(doneCtx, "job failed", err)
			return
		}
		s.logg.Info(doneCtx, "job completed")
	}()

	s.logg.Info(jobCtx, "job start")
	return job.Run(jobCtx)
}
