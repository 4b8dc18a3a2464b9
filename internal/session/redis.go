package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores each session's cache in a Redis hash keyed by session
// id. Every write refreshes the TTL, so idle sessions expire.
type RedisBackend struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisBackend creates a RedisBackend. A zero ttl keeps sessions forever.
func NewRedisBackend(client redis.UniversalClient, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

func (b *RedisBackend) ForSession(sessionID string) (Cache, error) {
	if sessionID == "" {
		return nil, errEmptySession
	}
	return &redisCache{b: b, key: "willow:session:" + sessionID}, nil
}

type redisCache struct {
	b   *RedisBackend
	key string
}

func (c *redisCache) Get(ctx context.Context, field string) (string, bool, error) {
	v, err := c.b.client.HGet(ctx, c.key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *redisCache) Set(ctx context.Context, field, value string) error {
	pipe := c.b.client.TxPipeline()
	pipe.HSet(ctx, c.key, field, value)
	if c.b.ttl > 0 {
		pipe.Expire(ctx, c.key, c.b.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisCache) Remove(ctx context.Context, field string) error {
	return c.b.client.HDel(ctx, c.key, field).Err()
}
