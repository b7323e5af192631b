package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domain "user-crud-service/internal/domain/user"
	"user-crud-service/pkg/logger"
)

const (
	keyPrefix = "user:"
	scanBatch = 100
)

// UserCache is the read-through cache in front of the user store.
// A miss is reported as nil, nil.
type UserCache interface {
	Get(ctx context.Context, id int64) (*domain.User, error)
	Set(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
}

// RedisUserCache stores users as JSON under user:{id}.
type RedisUserCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisUserCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisUserCache {
	return &RedisUserCache{client: client, ttl: ttl, log: log}
}

// cachedUser is the JSON form stored under each key.
type cachedUser struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Age    int     `json:"age"`
	Salary float64 `json:"salary"`
}

func cacheKey(id int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, id)
}

func (c *RedisUserCache) logger(ctx context.Context) *zap.Logger {
	return logger.WithContext(ctx, c.log)
}

// Get returns nil, nil on a miss.
func (c *RedisUserCache) Get(ctx context.Context, id int64) (*domain.User, error) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("cache get %s: %w", cacheKey(id), err)
	}

	var cu cachedUser
	if err := json.Unmarshal(data, &cu); err != nil {
		c.logger(ctx).Warn("dropping undecodable cache entry", zap.Int64("user_id", id), zap.Error(err))
		_ = c.client.Del(ctx, cacheKey(id)).Err()
		return nil, fmt.Errorf("cache decode %s: %w", cacheKey(id), err)
	}

	return &domain.User{ID: cu.ID, Name: cu.Name, Age: cu.Age, Salary: cu.Salary}, nil
}

// Set stores u under its id for the configured TTL.
func (c *RedisUserCache) Set(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("cannot cache nil user")
	}

	data, err := json.Marshal(cachedUser{ID: u.ID, Name: u.Name, Age: u.Age, Salary: u.Salary})
	if err != nil {
		return fmt.Errorf("cache encode user %d: %w", u.ID, err)
	}

	if err := c.client.Set(ctx, cacheKey(u.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", cacheKey(u.ID), err)
	}
	return nil
}

func (c *RedisUserCache) Delete(ctx context.Context, id int64) error {
	if err := c.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", cacheKey(id), err)
	}
	return nil
}

// DeleteAll walks the user keyspace with SCAN and removes matches in
// batches. Keys outside the user: prefix are left alone.
func (c *RedisUserCache) DeleteAll(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", scanBatch).Iterator()

	batch := make([]string, 0, scanBatch)
	deleted := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("cache delete batch: %w", err)
		}
		deleted += len(batch)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan: %w", err)
	}
	if err := flush(); err != nil {
		return err
	}

	c.logger(ctx).Debug("flushed user cache", zap.Int("keys", deleted))
	return nil
}
