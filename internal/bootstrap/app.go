package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ea-integrations/process-sync/config"
	"github.com/ea-integrations/process-sync/internal/celonis"
	"github.com/ea-integrations/process-sync/internal/leanix"
	"github.com/ea-integrations/process-sync/internal/logging"
	"github.com/ea-integrations/process-sync/internal/metrics"
	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
	"github.com/ea-integrations/process-sync/internal/process_sync/repository"
	"github.com/ea-integrations/process-sync/internal/process_sync/service"
	"github.com/ea-integrations/process-sync/internal/users"
	"github.com/redis/go-redis/v9"
)

// App holds the wired runner and the connections it owns.
type App struct {
	Config  *config.Config
	Jobs    []domain.Job
	Metrics *metrics.Registry
	Runner  *service.Runner
	Source  *celonis.Client

	DB    *sql.DB
	Redis *redis.Client
}

// NewApp connects every collaborator named by cfg and builds the runner.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logging.SetLevel(cfg.App.LogLevel)
	logger := logging.NewLogger(ctx)

	jobs, err := cfg.Jobs()
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Jobs: jobs, Metrics: metrics.DefaultRegistry()}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	source, err := celonis.NewClient(celonis.Config{
		Tenant:                cfg.Celonis.Tenant,
		AuthToken:             cfg.Celonis.AuthToken,
		StorageCollection:     cfg.Celonis.StorageCollection,
		Facet:                 cfg.Celonis.Facet,
		LCID:                  cfg.Celonis.LCID,
		NavigatorCollectionID: cfg.Celonis.NavigatorCollectionID,
		BaseURL:               cfg.Celonis.BaseURL,
		RateLimit:             cfg.Celonis.RateLimit,
		Burst:                 cfg.Celonis.Burst,
	}, app.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create process modeler client: %w", err)
	}
	app.Source = source

	repo, err := leanix.NewClient(leanix.Config{
		BaseURL:    cfg.LeanIX.BaseURL,
		APIToken:   cfg.LeanIX.APIToken,
		RecordType: cfg.LeanIX.RecordType,
	}, app.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create repository client: %w", err)
	}

	syncDeps := service.SynchronizerDeps{
		Records:     repo,
		Documents:   repo,
		OwnerGroups: source,
		Links:       source,
	}
	if cfg.Graph.Enabled() {
		dir, err := users.NewDirectory(users.Config{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
		}, app.Metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create directory client: %w", err)
		}
		syncDeps.Owners = dir
	} else {
		logger.LogWarn("bootstrap", "GRAPH_* not set, owners will not be assigned")
	}

	var cache service.TreeCache
	switch cfg.Sync.CacheBackend {
	case "redis":
		client, err := OpenRedis(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		app.Redis = client
		cache = repository.NewRedisTreeCache(client)
	default:
		fc, err := repository.NewFileTreeCache(cfg.Sync.CacheDir)
		if err != nil {
			return nil, err
		}
		cache = fc
	}

	var summaries service.SummaryStore
	if cfg.Database.Enabled {
		db, store, err := OpenSummaries(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		app.DB = db
		summaries = store
	}

	runner, err := service.NewRunner(service.RunnerDeps{
		Source:    source,
		Cache:     cache,
		Summaries: summaries,
		Sync:      syncDeps,
		Defaults: service.SynchronizerConfig{
			RecordType:   cfg.LeanIX.RecordType,
			Category:     cfg.LeanIX.Category,
			Relationship: cfg.LeanIX.Relationship,
			TagID:        cfg.LeanIX.TagID,
			OwnerRoleID:  cfg.LeanIX.OwnerRoleID,
		},
		Metrics: app.Metrics,
	})
	if err != nil {
		return nil, err
	}
	app.Runner = runner

	logger.LogInfof("bootstrap", "jobs=%d cache=%s summaries=%t owners=%t",
		len(jobs), cfg.Sync.CacheBackend, summaries != nil, syncDeps.Owners != nil)
	ok = true
	return app, nil
}

// Job returns the configured job called name.
func (a *App) Job(name string) (domain.Job, error) {
	return config.FindJob(a.Jobs, name)
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	var errs []error
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if err := errors.Join(errs...); err != nil {
		logging.NewLogger(context.Background()).LogWarnf("shutdown", "close connections: %v", err)
	}
}
