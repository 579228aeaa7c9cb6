package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chatgateway-backend/internal/http/response"
	"github.com/yungbote/chatgateway-backend/internal/platform/apierr"
)

var errPaymentsDisabled = errors.New("payments are coming soon")

// MaxBodyBytes caps request bodies; reads past the limit fail binding.
func MaxBodyBytes(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// RequirePayments rejects every payment route while payments are switched off.
func RequirePayments(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			response.AbortAPIError(c, apierr.New(http.StatusForbidden, apierr.CodePaymentsDisabled, errPaymentsDisabled))
			return
		}
		c.Next()
	}
}
