package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	dom "taskmanager/internal/domain"

	"github.com/redis/go-redis/v9"
)

const keyTasks = "tasks:"

// TaskCache caches per-owner task list results in Redis.
//
// Every owner has a generation counter that is part of each list key. A write
// bumps the counter instead of deleting keys, so a list computed before the
// write lands under a key no reader asks for and expires with its TTL.
type TaskCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTaskCache returns a new TaskCache.
func NewTaskCache(rdb *redis.Client, ttl time.Duration) *TaskCache {
	return &TaskCache{rdb: rdb, ttl: ttl}
}

func generationKey(ownerID string) string {
	return keyTasks + ownerID + ":gen"
}

// Key identifies a cached list. Exposed for singleflight grouping.
func Key(ownerID string, gen int64, f dom.TaskFilter) string {
	dir := "asc"
	if f.Desc {
		dir = "desc"
	}
	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = dom.SortByCreatedAt
	}
	return fmt.Sprintf("%s%s:%d:%s:%s:%s", keyTasks, ownerID, gen, f.Status, sortBy, dir)
}

// Generation returns the owner's current generation, 0 if none was recorded yet.
// It must be read before the store so a concurrent write is never missed.
func (c *TaskCache) Generation(ctx context.Context, ownerID string) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey(ownerID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// GetList returns the cached list or nil on a miss.
func (c *TaskCache) GetList(ctx context.Context, key string) ([]dom.Task, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []dom.Task
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SetList stores the list in cache.
func (c *TaskCache) SetList(ctx context.Context, key string, list []dom.Task) error {
	if list == nil {
		list = []dom.Task{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, c.ttl).Err()
}

// InvalidateOwner retires every cached list of ownerID by moving to a new generation.
func (c *TaskCache) InvalidateOwner(ctx context.Context, ownerID string) error {
	return c.rdb.Incr(ctx, generationKey(ownerID)).Err()
}
