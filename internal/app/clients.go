package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/chatgateway-backend/internal/config"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
	"github.com/yungbote/chatgateway-backend/internal/platform/redisx"
	"github.com/yungbote/chatgateway-backend/internal/platform/stripe"
	"github.com/yungbote/chatgateway-backend/internal/services/auth"
)

type Clients struct {
	// Redis is nil when REDIS_ADDR is unset.
	Redis *goredis.Client
	// Stripe is nil when payments are disabled.
	Stripe *stripe.Gateway
	Google auth.GoogleVerifier
}

func wireClients(ctx context.Context, cfg *config.Config, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis
	rdb, err := redisx.Open(ctx, cfg.Redis, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}

	// Google identity
	google, err := auth.NewGoogleVerifier(&http.Client{Timeout: 10 * time.Second}, cfg.Auth.GoogleClientID)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return Clients{}, fmt.Errorf("init google verifier: %w", err)
	}

	// Payments
	var gw *stripe.Gateway
	if cfg.Payments.Enabled {
		gw, err = stripe.New(cfg.Payments, log)
		if err != nil {
			if rdb != nil {
				_ = rdb.Close()
			}
			return Clients{}, fmt.Errorf("init payment gateway: %w", err)
		}
	} else {
		log.Info("payments disabled: payment routes answer payments_disabled")
	}

	return Clients{Redis: rdb, Stripe: gw, Google: google}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
