package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/chatgateway-backend/internal/http/response"
	"github.com/yungbote/chatgateway-backend/internal/platform/apierr"
	"github.com/yungbote/chatgateway-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
	"github.com/yungbote/chatgateway-backend/internal/services/auth"
)

// ClaimsKey holds the verified *auth.SessionClaims in the gin context.
const ClaimsKey = "session_claims"

var errMissingToken = errors.New("missing or invalid token")

type SessionParser interface {
	ParseSession(token string) (*auth.SessionClaims, error)
}

type AuthMiddleware struct {
	log      *logger.Logger
	sessions SessionParser
}

func NewAuthMiddleware(log *logger.Logger, sessions SessionParser) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), sessions: sessions}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := BearerOrQueryToken(c)
		if tokenString == "" {
			response.AbortAPIError(c, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthenticated, errMissingToken))
			return
		}
		claims, err := am.sessions.ParseSession(tokenString)
		if err != nil {
			am.log.Debug("session rejected", "error", err)
			response.AbortAPIError(c, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthenticated, err))
			return
		}
		id, err := claims.Identity()
		if err != nil || id.UserID == uuid.Nil {
			response.AbortAPIError(c, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthenticated, auth.ErrInvalidSession))
			return
		}

		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{
			TokenString: tokenString,
			UserID:      id.UserID,
			Email:       id.Email,
			DisplayName: id.DisplayName,
			AvatarURL:   id.AvatarURL,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// BearerOrQueryToken reads ?token= first, then the Authorization header.
// EventSource clients cannot set headers, hence the query form.
func BearerOrQueryToken(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
