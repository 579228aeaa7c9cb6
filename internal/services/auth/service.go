// Package auth signs users in with Google and issues the gateway's own
// session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"

	userrepo "github.com/yungbote/chatgateway-backend/internal/data/repos/user"
	"github.com/yungbote/chatgateway-backend/internal/domain/user"
	"github.com/yungbote/chatgateway-backend/internal/platform/dbctx"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

var ErrInvalidGoogleToken = errors.New("invalid or expired Google ID token")

type Session struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	User        *user.User `json:"user"`
}

type Service interface {
	// LoginWithGoogle verifies the ID token, upserts the user and issues a
	// session token.
	LoginWithGoogle(ctx context.Context, idToken string) (*Session, error)
	ParseSession(token string) (*SessionClaims, error)
}

type service struct {
	log      *logger.Logger
	verifier GoogleVerifier
	sessions *Sessions
	users    userrepo.UserRepo
}

func NewService(baseLog *logger.Logger, verifier GoogleVerifier, sessions *Sessions, users userrepo.UserRepo) Service {
	return &service{
		log:      baseLog.With("service", "AuthService"),
		verifier: verifier,
		sessions: sessions,
		users:    users,
	}
}

func (s *service) LoginWithGoogle(ctx context.Context, idToken string) (*Session, error) {
	gid, err := s.verifier.VerifyGoogleIDToken(ctx, idToken)
	if err != nil {
		s.log.Debug("google token rejected", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidGoogleToken, err)
	}

	u, err := s.users.UpsertByGoogleSub(dbctx.Context{Ctx: ctx}, &user.User{
		GoogleSub:   gid.Sub,
		Email:       gid.Email,
		DisplayName: gid.Name,
		AvatarURL:   gid.Picture,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	token, err := s.sessions.IssueSession(Identity{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	})
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	s.log.Info("user signed in", "user_id", u.ID)
	return &Session{AccessToken: token, TokenType: "bearer", User: u}, nil
}

func (s *service) ParseSession(token string) (*SessionClaims, error) {
	return s.sessions.ParseSession(token)
}
