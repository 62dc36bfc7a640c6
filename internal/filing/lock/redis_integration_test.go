//go:build integration

package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"rrfiler/internal/filing/lock"
	"rrfiler/pkg/platform/sentinel"
	"rrfiler/pkg/testutil/containers"
)

type RedisLockerSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	client *redis.Client
}

func TestRedisLockerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockerSuite))
}

func (s *RedisLockerSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.client = s.redis.Client.Client
}

func (s *RedisLockerSuite) SetupTest() {
	s.Require().NoError(s.redis.Reset(context.Background()))
}

func (s *RedisLockerSuite) TestAcquireRelease() {
	ctx := context.Background()
	l := lock.NewRedis(s.client, time.Minute)

	lease, err := l.Acquire(ctx, "sub-1", 0)
	s.Require().NoError(err)
	keys, err := s.redis.Keys(ctx, "rrfiler:lock:*")
	s.Require().NoError(err)
	s.Equal([]string{"rrfiler:lock:sub-1"}, keys)

	_, err = l.Acquire(ctx, "sub-1", 0)
	s.ErrorIs(err, sentinel.ErrLocked)

	s.Require().NoError(lease.Release(ctx))
	keys, err = s.redis.Keys(ctx, "rrfiler:lock:*")
	s.Require().NoError(err)
	s.Empty(keys)
	_, err = l.Acquire(ctx, "sub-1", 0)
	s.NoError(err)
}

func (s *RedisLockerSuite) TestLeaseExpires() {
	ctx := context.Background()
	l := lock.NewRedis(s.client, 100*time.Millisecond)

	stale, err := l.Acquire(ctx, "sub-2", 0)
	s.Require().NoError(err)

	_, err = l.Acquire(ctx, "sub-2", 2*time.Second)
	s.Require().NoError(err, "expired lease should be taken over")

	s.Require().NoError(stale.Release(ctx))
	_, err = l.Acquire(ctx, "sub-2", 0)
	s.ErrorIs(err, sentinel.ErrLocked)
}
