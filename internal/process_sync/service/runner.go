package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ea-integrations/process-sync/internal/logging"
	"github.com/ea-integrations/process-sync/internal/metrics"
	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
	"github.com/google/uuid"
)

// TreeCache persists built trees keyed by root process ID. Load returns
// domain.ErrCacheMiss when nothing is stored.
type TreeCache interface {
	Load(ctx context.Context, rootID string) (*domain.ProcessTree, error)
	Save(ctx context.Context, tree *domain.ProcessTree) error
	Delete(ctx context.Context, rootID string) error
}

// SummaryStore persists run summaries. Get returns domain.ErrRunNotFound for
// unknown runs.
type SummaryStore interface {
	Save(ctx context.Context, summary *domain.RunSummary) error
	Get(ctx context.Context, runID string) (*domain.RunSummary, error)
}

// RunnerDeps wires a Runner. Summaries and Metrics are optional.
type RunnerDeps struct {
	Source    ProcessSource
	Cache     TreeCache
	Summaries SummaryStore
	Sync      SynchronizerDeps
	Defaults  SynchronizerConfig
	Metrics   *metrics.Registry
}

const recentRunsLimit = 50

// Runner executes synchronization runs, one at a time.
type Runner struct {
	deps    RunnerDeps
	running atomic.Bool

	mu     sync.RWMutex
	recent map[string]*domain.RunSummary
	order  []string
}

// NewRunner creates a Runner.
func NewRunner(deps RunnerDeps) (*Runner, error) {
	if deps.Source == nil {
		return nil, errors.New("process source is required")
	}
	if deps.Cache == nil {
		return nil, errors.New("tree cache is required")
	}
	if deps.Sync.Records == nil {
		return nil, errors.New("record repository is required")
	}
	if deps.Sync.Metrics == nil {
		deps.Sync.Metrics = deps.Metrics
	}
	return &Runner{deps: deps, recent: make(map[string]*domain.RunSummary)}, nil
}

// Run loads or builds the tree of job and synchronizes it. It blocks until
// the run finishes.
func (r *Runner) Run(ctx context.Context, job domain.Job) (*domain.RunSummary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, domain.ErrRunInProgress
	}
	defer r.running.Store(false)

	summary := r.newSummary(job)
	return r.execute(ctx, job, summary)
}

// Start launches a run in the background and returns its ID. The run is not
// bound to the lifetime of ctx.
func (r *Runner) Start(ctx context.Context, job domain.Job) (string, error) {
	if !r.running.CompareAndSwap(false, true) {
		return "", domain.ErrRunInProgress
	}
	summary := r.newSummary(job)
	r.remember(summary)

	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer r.running.Store(false)
		_, _ = r.execute(runCtx, job, summary)
	}()
	return summary.RunID, nil
}

// Running reports whether a run is in progress.
func (r *Runner) Running() bool { return r.running.Load() }

func (r *Runner) newSummary(job domain.Job) *domain.RunSummary {
	return &domain.RunSummary{
		RunID:         uuid.New().String(),
		Job:           job.Name,
		RootProcessID: job.RootProcessID,
		Status:        domain.RunStatusRunning,
		StartedAt:     time.Now().UTC(),
	}
}

func (r *Runner) execute(ctx context.Context, job domain.Job, summary *domain.RunSummary) (*domain.RunSummary, error) {
	ctx = logging.WithRunID(ctx, summary.RunID)
	logger := logging.NewLogger(ctx)
	logger.LogInfof("run", "job=%s root=%s max_depth=%d", job.Name, job.RootProcessID, job.MaxDepth)

	if r.deps.Metrics != nil {
		r.deps.Metrics.RunsInFlight.Inc()
		defer r.deps.Metrics.RunsInFlight.Dec()
	}
	r.persist(ctx, summary)

	report, err := r.runJob(ctx, job, summary)
	summary.Apply(report)

	finished := time.Now().UTC()
	summary.FinishedAt = &finished
	if err != nil {
		summary.Status = domain.RunStatusFailed
		summary.Error = err.Error()
		logger.LogErrorf("run", "job=%s error=%v", job.Name, err)
	} else {
		summary.Status = domain.RunStatusCompleted
		logger.LogInfof("run", "job=%s completed tree=%d created=%d reused=%d skipped=%d failed=%d archived=%d",
			job.Name, summary.TreeSize, summary.Created, summary.Reused, summary.Skipped, summary.Failed, summary.Archived)
	}
	r.persist(ctx, summary)

	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordRun(job.Name, summary.Status, finished.Sub(summary.StartedAt))
	}
	return summary, err
}

func (r *Runner) runJob(ctx context.Context, job domain.Job, summary *domain.RunSummary) (*domain.SyncReport, error) {
	tree, source, err := r.Tree(ctx, job)
	if err != nil {
		return nil, err
	}
	summary.TreeSource = source
	summary.TreeSize = tree.Len()

	syncer, err := r.synchronizer(job)
	if err != nil {
		return nil, err
	}
	return syncer.Sync(ctx, tree)
}

// Tree returns the cached tree of job, building and caching it on a miss.
// The second return value is the tree source (cache or build).
func (r *Runner) Tree(ctx context.Context, job domain.Job) (*domain.ProcessTree, string, error) {
	tree, err := r.deps.Cache.Load(ctx, job.RootProcessID)
	if err == nil {
		r.cacheMetric(true)
		logging.NewLogger(ctx).LogInfof("load_tree", "root=%s source=cache nodes=%d", job.RootProcessID, tree.Len())
		return tree, domain.TreeSourceCache, nil
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		return nil, "", fmt.Errorf("load cached tree: %w", err)
	}
	r.cacheMetric(false)

	tree, _, err = r.build(ctx, job)
	if err != nil {
		return nil, "", err
	}
	return tree, domain.TreeSourceBuild, nil
}

// Build builds the tree of job from the process source, ignoring the cache.
// Only a build without failed branches is cached. It fails with
// domain.ErrRunInProgress while a run is active.
func (r *Runner) Build(ctx context.Context, job domain.Job) (*domain.ProcessTree, *domain.BuildReport, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, nil, domain.ErrRunInProgress
	}
	defer r.running.Store(false)

	return r.build(ctx, job)
}

func (r *Runner) build(ctx context.Context, job domain.Job) (*domain.ProcessTree, *domain.BuildReport, error) {
	builder, err := NewBuilder(r.deps.Source, job.MaxDepth, r.deps.Metrics)
	if err != nil {
		return nil, nil, err
	}
	tree, report, err := builder.Build(ctx, job.RootProcessID)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.NewLogger(ctx)
	if !report.Complete() {
		logger.LogWarnf("build_tree", "root=%s failed=%d, tree not cached", job.RootProcessID, report.Count(domain.OutcomeFailed))
		return tree, report, nil
	}
	if err := r.deps.Cache.Save(ctx, tree); err != nil {
		return nil, nil, fmt.Errorf("cache tree: %w", err)
	}
	return tree, report, nil
}

// SyncOnly synchronizes the cached tree of job without building it.
func (r *Runner) SyncOnly(ctx context.Context, job domain.Job) (*domain.SyncReport, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, domain.ErrRunInProgress
	}
	defer r.running.Store(false)

	tree, err := r.deps.Cache.Load(ctx, job.RootProcessID)
	if err != nil {
		return nil, err
	}
	syncer, err := r.synchronizer(job)
	if err != nil {
		return nil, err
	}
	return syncer.Sync(ctx, tree)
}

// ClearCache drops the cached tree of job.
func (r *Runner) ClearCache(ctx context.Context, job domain.Job) error {
	return r.deps.Cache.Delete(ctx, job.RootProcessID)
}

// Summary returns a run summary from the store, or from memory when no store
// is configured or the store does not know the run yet.
func (r *Runner) Summary(ctx context.Context, runID string) (*domain.RunSummary, error) {
	r.mu.RLock()
	s, ok := r.recent[runID]
	var cp domain.RunSummary
	if ok {
		cp = *s
	}
	r.mu.RUnlock()

	if r.deps.Summaries != nil {
		stored, err := r.deps.Summaries.Get(ctx, runID)
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, domain.ErrRunNotFound) {
			return nil, err
		}
	}
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return &cp, nil
}

func (r *Runner) synchronizer(job domain.Job) (*Synchronizer, error) {
	cfg := r.deps.Defaults
	cfg.MaxDepth = job.MaxDepth
	cfg.RootDiagramID = job.RootDiagramID
	if cfg.RootDiagramID == "" {
		cfg.RootDiagramID = job.RootProcessID
	}
	cfg.AttachLinks = cfg.AttachLinks || job.AttachLinks
	return NewSynchronizer(cfg, r.deps.Sync)
}

func (r *Runner) persist(ctx context.Context, summary *domain.RunSummary) {
	r.remember(summary)
	if r.deps.Summaries == nil {
		return
	}
	cp := *summary
	if err := r.deps.Summaries.Save(ctx, &cp); err != nil {
		logging.NewLogger(ctx).LogWarnf("save_summary", "run=%s error=%v", summary.RunID, err)
	}
}

func (r *Runner) remember(summary *domain.RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recent[summary.RunID]; !ok {
		r.order = append(r.order, summary.RunID)
		if len(r.order) > recentRunsLimit {
			delete(r.recent, r.order[0])
			r.order = r.order[1:]
		}
	}
	cp := *summary
	r.recent[summary.RunID] = &cp
}

func (r *Runner) cacheMetric(hit bool) {
	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordTreeCache(hit)
	}
}
