package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

var ErrTooManyStreams = errors.New("too many concurrent streams")

// StreamLimiter caps the number of open streams per user.
type StreamLimiter interface {
	Acquire(ctx context.Context, userID uuid.UUID) (release func(), err error)
}

// acquireScript increments the user's open-stream counter unless it is at
// the limit. The TTL reclaims slots leaked by crashed processes.
// KEYS[1] = counter key
// ARGV[1] = limit
// ARGV[2] = ttl seconds
//
// Returns 1 when acquired, 0 when at the limit.
var acquireScript = goredis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n > tonumber(ARGV[1]) then
    redis.call("DECR", KEYS[1])
    return 0
end
redis.call("EXPIRE", KEYS[1], tonumber(ARGV[2]))
return 1
`)

// releaseScript decrements without going below zero.
var releaseScript = goredis.NewScript(`
local n = tonumber(redis.call("GET", KEYS[1]) or "0")
if n <= 1 then
    redis.call("DEL", KEYS[1])
    return 0
end
return redis.call("DECR", KEYS[1])
`)

type RedisLimiter struct {
	client    goredis.Cmdable
	log       *logger.Logger
	limit     int
	ttl       time.Duration
	keyPrefix string
}

func NewRedisLimiter(client goredis.Cmdable, baseLog *logger.Logger, limit int, ttl time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = 3
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLimiter{
		client:    client,
		log:       baseLog.With("service", "StreamLimiter"),
		limit:     limit,
		ttl:       ttl,
		keyPrefix: "chatgateway:streams:",
	}
}

func (l *RedisLimiter) key(userID uuid.UUID) string { return l.keyPrefix + userID.String() }

func (l *RedisLimiter) Acquire(ctx context.Context, userID uuid.UUID) (func(), error) {
	ok, err := acquireScript.Run(ctx, l.client, []string{l.key(userID)}, l.limit, int(l.ttl.Seconds())).Int()
	if err != nil {
		return nil, fmt.Errorf("stream limiter: %w", err)
	}
	if ok != 1 {
		return nil, ErrTooManyStreams
	}
	return func() {
		// The request context may already be cancelled.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{l.key(userID)}).Err(); err != nil {
			l.log.Warn("stream limiter release failed", "user_id", userID, "error", err)
		}
	}, nil
}
