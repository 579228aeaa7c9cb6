package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Locker serialises verification of one payment id across instances. The
// unique payment_id constraint is still the authority; the lock only spares
// duplicate deliveries a round trip to the gateway.
type Locker interface {
	// TryLock reports false when another holder owns key.
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

// unlockScript deletes the key only while it still holds our token.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

type RedisLocker struct {
	client goredis.Cmdable
	prefix string
	ttl    time.Duration
	unlock *goredis.Script
}

func NewRedisLocker(client goredis.Cmdable, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client: client,
		prefix: "chatgateway:payment_lock:",
		ttl:    ttl,
		unlock: goredis.NewScript(unlockScript),
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	k := l.prefix + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
	if err != nil {
		return func() {}, false, err
	}
	if !ok {
		return func() {}, false, nil
	}
	return func() {
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = l.unlock.Run(uctx, l.client, []string{k}, token).Err()
	}, true, nil
}
