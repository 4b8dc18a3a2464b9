package swap

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the lock only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLocker is a cross-process Locker backed by SET NX with a TTL.
// The TTL bounds how long a crashed holder blocks the profile.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	poll   time.Duration
	log    *zap.Logger
}

// NewRedisLocker creates a RedisLocker.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, log *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLocker{client: client, ttl: ttl, poll: 25 * time.Millisecond, log: log}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	key = "willow:lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		// Release must run even if the caller's context was cancelled.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := releaseScript.Run(rctx, l.client, []string{key}, token).Int()
		if err != nil {
			l.log.Warn("release swap lock", zap.String("key", key), zap.Error(err))
			return
		}
		if n == 0 {
			l.log.Warn("swap lock expired before release", zap.String("key", key))
		}
	}, nil
}
