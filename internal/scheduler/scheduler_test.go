package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	mu   sync.Mutex
	jobs []string
	err  error
}

func (r *recordingRunner) Run(ctx context.Context, job domain.Job) (*domain.RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job.Name)
	return &domain.RunSummary{Job: job.Name}, r.err
}

func (r *recordingRunner) ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.jobs...)
}

func TestScheduler_RunsScheduledJobs(t *testing.T) {
	runner := &recordingRunner{}
	s := NewScheduler(runner)

	n, err := s.Start(context.Background(), []domain.Job{
		{Name: "every-second", Schedule: "* * * * * *"},
		{Name: "manual"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Eventually(t, func() bool { return len(runner.ran()) > 0 }, 3*time.Second, 20*time.Millisecond)
	s.Stop()

	for _, name := range runner.ran() {
		assert.Equal(t, "every-second", name)
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(&recordingRunner{})
	_, err := s.Start(context.Background(), []domain.Job{{Name: "broken", Schedule: "every day"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestScheduler_AcceptsDescriptors(t *testing.T) {
	s := NewScheduler(&recordingRunner{})
	n, err := s.Start(context.Background(), []domain.Job{{Name: "nightly", Schedule: "@daily"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	s.Stop()
}

func TestScheduler_StopsAfterCancel(t *testing.T) {
	runner := &recordingRunner{err: domain.ErrRunInProgress}
	s := NewScheduler(runner)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := s.Start(ctx, []domain.Job{{Name: "job", Schedule: "* * * * * *"}})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(runner.ran()) > 0 }, 3*time.Second, 20*time.Millisecond)

	cancel()
	s.Stop()
	count := len(runner.ran())
	time.Sleep(1100 * time.Millisecond)
	assert.Equal(t, count, len(runner.ran()))
}
