package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/ea-integrations/process-sync/internal/logging"
	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
	"github.com/robfig/cron/v3"
)

// JobRunner runs one job to completion.
type JobRunner interface {
	Run(ctx context.Context, job domain.Job) (*domain.RunSummary, error)
}

// Scheduler triggers the jobs that carry a cron schedule. Schedules use six
// fields (seconds first) or descriptors such as @daily.
type Scheduler struct {
	cron   *cron.Cron
	runner JobRunner
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(runner JobRunner) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		runner: runner,
	}
}

// Start registers every scheduled job and starts the cron loop. It returns
// the number of registered jobs. Runs stop being started once ctx is done or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context, jobs []domain.Job) (int, error) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	registered := 0
	for _, job := range jobs {
		if job.Schedule == "" {
			continue
		}
		job := job
		if _, err := s.cron.AddFunc(job.Schedule, func() { s.trigger(job) }); err != nil {
			return 0, fmt.Errorf("invalid schedule %q for job %s: %w", job.Schedule, job.Name, err)
		}
		registered++
	}

	s.cron.Start()
	logging.NewLogger(ctx).LogInfof("scheduler", "started with %d scheduled job(s)", registered)
	return registered, nil
}

// Stop stops the cron loop and waits for running jobs to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
}

func (s *Scheduler) trigger(job domain.Job) {
	if s.ctx.Err() != nil {
		return
	}
	logger := logging.NewLogger(s.ctx)
	logger.LogInfof("scheduled_run", "job=%s", job.Name)

	if _, err := s.runner.Run(s.ctx, job); err != nil {
		if errors.Is(err, domain.ErrRunInProgress) {
			logger.LogWarnf("scheduled_run", "job=%s skipped, another run is in progress", job.Name)
			return
		}
		logger.LogErrorf("scheduled_run", "job=%s error=%v", job.Name, err)
	}
}
