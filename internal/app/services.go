package app

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/chatgateway-backend/internal/config"
	"github.com/yungbote/chatgateway-backend/internal/data/aggregates"
	"github.com/yungbote/chatgateway-backend/internal/inference/registry"
	"github.com/yungbote/chatgateway-backend/internal/inference/tokenizer"
	"github.com/yungbote/chatgateway-backend/internal/observability"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
	"github.com/yungbote/chatgateway-backend/internal/services/auth"
	"github.com/yungbote/chatgateway-backend/internal/services/deferred"
	"github.com/yungbote/chatgateway-backend/internal/services/orchestrator"
	"github.com/yungbote/chatgateway-backend/internal/services/payments"
	"github.com/yungbote/chatgateway-backend/internal/services/quota"
	"github.com/yungbote/chatgateway-backend/internal/services/recorder"
	"github.com/yungbote/chatgateway-backend/internal/services/titles"
)

type Services struct {
	Registry *registry.Registry
	Usage    *tokenizer.Adapter
	Deferred deferred.Runner

	Gate         quota.Gate
	Recorder     recorder.Recorder
	Orchestrator *orchestrator.Orchestrator
	Titles       titles.Summarizer

	Sessions *auth.Sessions
	Auth     auth.Service

	// Payments is nil when payments are disabled.
	Payments payments.Reconciler
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg *config.Config, metrics *observability.Metrics, clients Clients, repos Repos) (Services, error) {
	log.Info("Wiring services...")

	reg, err := registry.Load(cfg.Models, cfg.Vendors, log)
	if err != nil {
		return Services{}, fmt.Errorf("init model registry: %w", err)
	}
	usage, err := tokenizer.NewDefault(reg)
	if err != nil {
		return Services{}, fmt.Errorf("init tokenizer: %w", err)
	}

	tx := aggregates.NewGormTxRunner(db, aggregates.WithHooks(aggregates.NewObservabilityHooks(metrics)))
	runner := deferred.New(log, cfg.Deferred.Workers, cfg.Deferred.Timeout, deferred.WithMetrics(metrics))

	// Interfaces stay nil, not typed-nil, when the backing client is absent.
	var checker quota.SubscriptionChecker
	if clients.Stripe != nil {
		checker = clients.Stripe
	}
	gate := quota.NewGate(log, reg, repos.Ledger, repos.Subscriptions, checker, cfg.Quota.FreeAllotment)
	rec := recorder.New(log, tx, repos.Threads, repos.Turns)

	var limiter orchestrator.StreamLimiter
	if clients.Redis != nil && cfg.Quota.MaxConcurrentStreams > 0 {
		limiter = orchestrator.NewRedisLimiter(clients.Redis, log, cfg.Quota.MaxConcurrentStreams, 10*time.Minute)
	}

	orch := orchestrator.New(orchestrator.Deps{
		Log:            log,
		Models:         reg,
		Usage:          usage,
		Gate:           gate,
		Recorder:       rec,
		Deferred:       runner,
		Limiter:        limiter,
		PersistTimeout: cfg.PersistTimeout,
		Metrics:        metrics,
	})

	sessions, err := auth.NewSessions(cfg.Auth.SecretKey, cfg.Auth.SessionTTL)
	if err != nil {
		return Services{}, fmt.Errorf("init sessions: %w", err)
	}

	var reconciler payments.Reconciler
	if clients.Stripe != nil {
		var locker payments.Locker
		if clients.Redis != nil {
			locker = payments.NewRedisLocker(clients.Redis, 30*time.Second)
		}
		reconciler = payments.NewReconciler(payments.Deps{
			Log:           log,
			Tx:            tx,
			Gateway:       clients.Stripe,
			Payments:      repos.Payments,
			Orders:        repos.Orders,
			Subscriptions: repos.Subscriptions,
			Ledger:        repos.Ledger,
			Secret:        cfg.Payments.KeySecret,
			Currency:      cfg.Payments.Currency,
			Allotment:     cfg.Quota.FreeAllotment,
			Locker:        locker,
			Metrics:       metrics,
		})
	}

	return Services{
		Registry:     reg,
		Usage:        usage,
		Deferred:     runner,
		Gate:         gate,
		Recorder:     rec,
		Orchestrator: orch,
		Titles:       titles.New(log, reg, rec, runner),
		Sessions:     sessions,
		Auth:         auth.NewService(log, clients.Google, sessions, repos.User),
		Payments:     reconciler,
	}, nil
}
