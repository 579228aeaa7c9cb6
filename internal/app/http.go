package app

import (
	"github.com/yungbote/chatgateway-backend/internal/config"
	apphttp "github.com/yungbote/chatgateway-backend/internal/http"
	httpH "github.com/yungbote/chatgateway-backend/internal/http/handlers"
	httpMW "github.com/yungbote/chatgateway-backend/internal/http/middleware"
	"github.com/yungbote/chatgateway-backend/internal/observability"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health  *httpH.HealthHandler
	Auth    *httpH.AuthHandler
	Chat    *httpH.ChatHandler
	Payment *httpH.PaymentHandler
}

func wireHandlers(log *logger.Logger, services Services, metrics *observability.Metrics) Handlers {
	log.Info("Wiring handlers...")
	h := Handlers{
		Health: httpH.NewHealthHandler(metrics),
		Auth:   httpH.NewAuthHandler(services.Auth),
		Chat:   httpH.NewChatHandler(log, services.Orchestrator, services.Recorder, services.Titles),
	}
	if services.Payments != nil {
		h.Payment = httpH.NewPaymentHandler(services.Payments)
	}
	return h
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Sessions),
	}
}

func wireServer(log *logger.Logger, cfg *config.Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware, paymentsEnabled bool) *apphttp.Server {
	serviceName := ""
	if cfg.Telemetry.OTelEnabled {
		serviceName = cfg.Telemetry.ServiceName
	}
	return apphttp.NewServer(cfg.HTTP, apphttp.RouterConfig{
		Log:             log,
		ServiceName:     serviceName,
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
		MaxBodyBytes:    cfg.HTTP.MaxRequestBytes,
		Metrics:         metrics,
		AuthMiddleware:  middleware.Auth,
		AuthHandler:     handlers.Auth,
		ChatHandler:     handlers.Chat,
		PaymentHandler:  handlers.Payment,
		PaymentsEnabled: paymentsEnabled,
		HealthHandler:   handlers.Health,
	})
}
