package ingestion

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// Scheduler re-runs an ingestion job on a fixed cron schedule. The job
// runs once immediately so a fresh deployment has an index before the
// first tick.
type Scheduler struct {
	schedule string
	job      func(context.Context) error
	logger   *log.Logger
}

func NewScheduler(schedule string, job func(context.Context) error, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}

	return &Scheduler{schedule: schedule, job: job, logger: logger}
}

// Run blocks until ctx is cancelled. A failed refresh is logged; the
// previous index stays in place and the next tick tries again.
func (s *Scheduler) Run(ctx context.Context) error {
	runner := cron.New()

	run := func() {
		if err := s.job(ctx); err != nil {
			s.logger.Printf("scheduler: refresh failed: %v", err)
			return
		}
		s.logger.Printf("scheduler: refresh complete")
	}

	if _, err := runner.AddFunc(s.schedule, run); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", s.schedule, err)
	}

	run()
	runner.Start()
	defer runner.Stop()

	<-ctx.Done()
	return ctx.Err()
}
