package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rrfiler/pkg/platform/sentinel"
)

const keyPrefix = "rrfiler:lock:"

// Deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements the lock with SET NX PX and a token-checked release.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, wait time.Duration) (Lease, error) {
	token := uuid.NewString()
	redisKey := keyPrefix + key
	err := waitFor(ctx, wait, func() (bool, error) {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return false, fmt.Errorf("acquire lock %s: %w: %v", key, sentinel.ErrUnavailable, err)
		}
		return ok, nil
	})
	if err != nil {
		if errors.Is(err, errHeld) {
			return nil, fmt.Errorf("lock %s: %w", key, sentinel.ErrLocked)
		}
		return nil, err
	}
	return &redisLease{client: l.client, key: redisKey, token: token}, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

func (r *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.key}, r.token).Err(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
