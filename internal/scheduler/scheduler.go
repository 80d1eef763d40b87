package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/amishk599/boardfeed/internal/pipeline"
	"github.com/amishk599/boardfeed/internal/retry"
)

// Scheduler owns the main loop: one run now, then one run per interval or
// per cron tick.
type Scheduler struct {
	runner   pipeline.Runner
	interval time.Duration
	cron     cron.Schedule // nil means every interval
	spec     string
	clock    retry.Clock
	logger   *slog.Logger
}

// NewScheduler creates a scheduler that runs runner at the given interval.
func NewScheduler(runner pipeline.Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		clock:    retry.Wall,
		logger:   logger,
	}
}

// WithCron replaces the fixed interval with a standard five-field cron
// expression. Ticks are computed in the clock's time zone.
func (s *Scheduler) WithCron(spec string) (*Scheduler, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", spec, err)
	}
	s.cron = sched
	s.spec = spec
	return s, nil
}

// Run starts the loop. It runs one immediate cycle, then waits until the
// next interval or cron tick after each cycle. A failed cycle is logged and
// does not stop the loop. It returns nil when ctx is cancelled (graceful shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	if s.cron != nil {
		s.logger.Info("starting scheduler", "cron", s.spec)
	} else {
		s.logger.Info("starting scheduler", "interval", s.interval.String())
	}

	for {
		s.runOnce(ctx)

		if err := retry.Sleep(ctx, s.clock, s.nextDelay()); err != nil {
			s.logger.Info("shutting down scheduler")
			return nil
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := s.clock.Now()
	report, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("run failed",
			"run_id", report.RunID,
			"error", err,
		)
		return
	}
	s.logger.Info("run finished",
		"run_id", report.RunID,
		"discovered", report.Discovered,
		"took", s.clock.Now().Sub(start).Round(time.Second),
		"next_in", s.nextDelay().Round(time.Second).String(),
	)
}

func (s *Scheduler) nextDelay() time.Duration {
	if s.cron == nil {
		return s.interval
	}
	now := s.clock.Now()
	return s.cron.Next(now).Sub(now)
}
