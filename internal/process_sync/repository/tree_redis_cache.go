package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
	"github.com/golang/snappy"
	"github.com/redis/go-redis/v9"
)

const (
	treeKeyPrefix = "processsync:tree:" // Key prefix for cached trees: processsync:tree:{root_id}
)

// RedisTreeCache stores snappy-compressed trees in Redis. Entries never
// expire; a cache bust is an explicit Delete.
type RedisTreeCache struct {
	client *redis.Client
}

// NewRedisTreeCache creates a new RedisTreeCache
func NewRedisTreeCache(client *redis.Client) *RedisTreeCache {
	return &RedisTreeCache{client: client}
}

// Load retrieves the cached tree of rootID
func (c *RedisTreeCache) Load(ctx context.Context, rootID string) (*domain.ProcessTree, error) {
	data, err := c.client.Get(ctx, c.treeKey(rootID)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached tree: %w", err)
	}

	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress cached tree: %w", err)
	}

	var tree domain.ProcessTree
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached tree: %w", err)
	}
	return &tree, nil
}

// Save stores the tree under its root ID
func (c *RedisTreeCache) Save(ctx context.Context, tree *domain.ProcessTree) error {
	raw, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to marshal tree: %w", err)
	}

	if err := c.client.Set(ctx, c.treeKey(tree.RootID), snappy.Encode(nil, raw), 0).Err(); err != nil {
		return fmt.Errorf("failed to cache tree: %w", err)
	}
	return nil
}

// Delete removes the cached tree of rootID
func (c *RedisTreeCache) Delete(ctx context.Context, rootID string) error {
	if err := c.client.Del(ctx, c.treeKey(rootID)).Err(); err != nil {
		return fmt.Errorf("failed to delete cached tree: %w", err)
	}
	return nil
}

func (c *RedisTreeCache) treeKey(rootID string) string {
	return treeKeyPrefix + rootID
}
