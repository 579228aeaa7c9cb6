package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chatgateway-backend/internal/config"
)

type Server struct {
	Engine *gin.Engine
	HTTP   *http.Server
}

// NewServer wraps the router in an http.Server. WriteTimeout stays zero so
// long generation streams are not cut off.
func NewServer(cfg config.HTTPConfig, rc RouterConfig) *Server {
	engine := NewRouter(rc)
	return &Server{
		Engine: engine,
		HTTP: &http.Server{
			Addr:              cfg.Addr,
			Handler:           engine,
			ReadHeaderTimeout: orDefault(cfg.ReadHeaderTimeout, 10*time.Second),
			IdleTimeout:       orDefault(cfg.IdleTimeout, 120*time.Second),
			WriteTimeout:      0,
		},
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
