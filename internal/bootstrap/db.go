package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ea-integrations/process-sync/config"
	"github.com/ea-integrations/process-sync/internal/process_sync/repository"
	"github.com/ea-integrations/process-sync/internal/storage/postgres"
	"github.com/redis/go-redis/v9"
)

// OpenSummaries connects to the run summary database and makes sure the
// table exists.
func OpenSummaries(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, *repository.SummaryRepository, error) {
	db, err := postgres.NewConnection(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	repo := repository.NewSummaryRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, repo, nil
}

// OpenRedis connects to Redis and checks it answers.
func OpenRedis(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// redisPinger adapts a redis client to the health check.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
