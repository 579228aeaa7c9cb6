// Package redisx opens the shared redis client. Redis is optional; callers
// treat a nil client as "feature disabled".
package redisx

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/chatgateway-backend/internal/config"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

// Open returns (nil, nil) when redis is not configured.
func Open(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*goredis.Client, error) {
	if !cfg.Enabled() {
		log.Info("redis disabled: REDIS_ADDR not set")
		return nil, nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info("redis connected", "addr", cfg.Addr, "db", cfg.DB)
	return rdb, nil
}
