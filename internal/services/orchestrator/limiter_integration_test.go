//go:build integration

package orchestrator

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

func newTestRedis(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisLimiterCapsStreams(t *testing.T) {
	client := newTestRedis(t)
	l := NewRedisLimiter(client, logger.Nop(), 2, time.Minute)
	l.keyPrefix = "test:" + t.Name() + ":"
	ctx := context.Background()
	userID := uuid.New()

	r1, err := l.Acquire(ctx, userID)
	require.NoError(t, err)
	r2, err := l.Acquire(ctx, userID)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, userID)
	assert.ErrorIs(t, err, ErrTooManyStreams)

	r1()
	r3, err := l.Acquire(ctx, userID)
	require.NoError(t, err)

	r2()
	r3()
	r3() // double release must not go negative
	n, err := client.Exists(ctx, l.key(userID)).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}
