package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/chatgateway-backend/internal/http/handlers"
	httpMW "github.com/yungbote/chatgateway-backend/internal/http/middleware"
	"github.com/yungbote/chatgateway-backend/internal/observability"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string
	MaxBodyBytes   int64

	Metrics        *observability.Metrics
	AuthMiddleware *httpMW.AuthMiddleware

	AuthHandler    *httpH.AuthHandler
	ChatHandler    *httpH.ChatHandler
	PaymentHandler *httpH.PaymentHandler
	// PaymentsEnabled gates every payment route with 403 payments_disabled.
	PaymentsEnabled bool

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))
	r.Use(httpMW.MaxBodyBytes(cfg.MaxBodyBytes))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		if cfg.Metrics != nil {
			r.GET("/metrics", cfg.HealthHandler.Metrics)
		}
	}

	// Auth (public); the Google ID token is the bearer credential
	if cfg.AuthHandler != nil {
		r.GET("/auth/google", cfg.AuthHandler.GoogleLogin)
	}

	protected := r.Group("/")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}

	if cfg.AuthHandler != nil {
		protected.GET("/verify", cfg.AuthHandler.Verify)
	}

	v1 := protected.Group("/v1")
	{
		if cfg.ChatHandler != nil {
			v1.POST("/chat", cfg.ChatHandler.Chat)
			v1.POST("/chat_event_streaming", cfg.ChatHandler.ChatStream)
			v1.POST("/chat_title", cfg.ChatHandler.ChatTitle)
			v1.GET("/chat_history", cfg.ChatHandler.ListThreads)
			v1.GET("/chat_history/:chat_id", cfg.ChatHandler.GetThread)
		}

		pay := v1.Group("/")
		pay.Use(httpMW.RequirePayments(cfg.PaymentsEnabled && cfg.PaymentHandler != nil))
		{
			h := cfg.PaymentHandler
			pay.POST("/create_order", paymentRoute(h, (*httpH.PaymentHandler).CreateOrder))
			pay.POST("/verify_payment", paymentRoute(h, (*httpH.PaymentHandler).VerifyPayment))
			pay.GET("/fetch_payments", paymentRoute(h, (*httpH.PaymentHandler).ListPayments))
			pay.GET("/fetch_payment/:payment_id", paymentRoute(h, (*httpH.PaymentHandler).FetchPayment))
		}
	}

	return r
}

// paymentRoute binds a payment handler method. With payments disabled the
// handler may be nil; RequirePayments answers before it is reached.
func paymentRoute(h *httpH.PaymentHandler, fn func(*httpH.PaymentHandler, *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) { fn(h, c) }
}
