package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chatgateway-backend/internal/http/middleware"
	"github.com/yungbote/chatgateway-backend/internal/http/response"
	"github.com/yungbote/chatgateway-backend/internal/platform/apierr"
	"github.com/yungbote/chatgateway-backend/internal/services/auth"
)

var errMissingIDToken = errors.New("authorization header missing")

type AuthHandler struct {
	auth auth.Service
}

func NewAuthHandler(authService auth.Service) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// GoogleLogin exchanges a Google ID token, sent as the bearer credential,
// for a gateway session token.
func (ah *AuthHandler) GoogleLogin(c *gin.Context) {
	idToken := middleware.BearerOrQueryToken(c)
	if idToken == "" {
		response.RespondAPIError(c, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthenticated, errMissingIDToken))
		return
	}
	sess, err := ah.auth.LoginWithGoogle(c.Request.Context(), idToken)
	if err != nil {
		response.RespondAPIError(c, toAPIError(err))
		return
	}
	response.RespondOK(c, gin.H{
		"access_token": sess.AccessToken,
		"token_type":   sess.TokenType,
	})
}

// Verify echoes the claims of the session token.
func (ah *AuthHandler) Verify(c *gin.Context) {
	claims, ok := c.Get(middleware.ClaimsKey)
	if !ok {
		response.RespondAPIError(c, toAPIError(auth.ErrInvalidSession))
		return
	}
	response.RespondOK(c, gin.H{"token_info": claims})
}
