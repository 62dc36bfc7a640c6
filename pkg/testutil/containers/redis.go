//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"rrfiler/internal/platform/config"
	redisclient "rrfiler/internal/platform/redis"
)

// RedisContainer is a disposable Redis for lock tests, reached through the
// same client the server builds.
type RedisContainer struct {
	Container testcontainers.Container
	Config    config.RedisConfig
	Client    *redisclient.Client
}

// NewRedisContainer starts Redis and connects with a default config. The
// container is terminated when the test ends.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "start redis container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err, "redis connection string")

	cfg := config.Default().Redis
	cfg.URL = url
	client, err := redisclient.New(ctx, cfg)
	require.NoError(t, err, "connect to redis")
	t.Cleanup(func() { _ = client.Close() })

	return &RedisContainer{Container: container, Config: cfg, Client: client}
}

// Keys lists keys matching pattern, e.g. "rrfiler:lock:*".
func (r *RedisContainer) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.Client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

// Reset drops every key so suites start from an empty keyspace.
func (r *RedisContainer) Reset(ctx context.Context) error {
	return r.Client.FlushDB(ctx).Err()
}
