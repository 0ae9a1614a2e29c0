package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coursehub/coursehub-backend/pkg/logger"
	"github.com/coursehub/coursehub-backend/pkg/metrics"
)

const defaultTick = time.Hour

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Schedule *Schedule
	Lock     Locker
	Metrics  *metrics.CronJobMetrics
	Tick     time.Duration
}

// Service wakes every tick, takes the cluster lease and runs whichever jobs
// are due. The lease is extended between jobs so long sweeps keep it.
type Service struct {
	logg     *logger.Logger
	schedule *Schedule
	lock     Locker
	metrics  *metrics.CronJobMetrics
	tick     time.Duration
	now      clock
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	schedule := params.Schedule
	if schedule == nil {
		schedule = NewSchedule()
	}
	tick := params.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	return &Service{
		logg:     params.Logger,
		schedule: schedule,
		lock:     params.Lock,
		metrics:  params.Metrics,
		tick:     tick,
		now:      utcNow,
	}, nil
}

// Run ticks until ctx is canceled. The first tick fires immediately.
func (s *Service) Run(ctx context.Context) error {
	s.logg.Info(s.logg.WithField(ctx, "jobs", s.schedule.Names()), "cron schedule loaded")
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		if err := s.runTick(ctx); err != nil {
			s.logg.Error(ctx, "cron tick failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) runTick(ctx context.Context) error {
	due := s.schedule.Due(s.now())
	if len(due) == 0 {
		return nil
	}

	lease, err := s.lock.TryAcquire(ctx)
	if err != nil {
		return err
	}
	if lease == nil {
		s.metrics.TickSkipped()
		s.logg.Info(ctx, "cron lease held elsewhere; skipping tick")
		return nil
	}
	defer func() {
		// Release on a fresh context so shutdown does not strand the key.
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lease.Release(relCtx); err != nil {
			s.logg.Error(ctx, "failed to release cron lease", err)
		}
	}()

	for i, job := range due {
		if i > 0 {
			if err := lease.Extend(ctx); err != nil {
				if errors.Is(err, ErrLeaseLost) {
					s.logg.Warn(ctx, "cron lease lost mid-tick; stopping")
					return nil
				}
				return err
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.runJob(ctx, job)
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	start := time.Now()
	err := job.Run(jobCtx)
	elapsed := time.Since(start)
	finished := s.now()
	s.schedule.MarkRan(job.Name(), finished)
	s.metrics.JobFinished(job.Name(), elapsed, err, finished)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "cron job failed", err)
		return
	}
	s.logg.Info(jobCtx, "cron job completed")
}
