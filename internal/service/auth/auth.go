// internal/service/auth/auth.go
package auth

import (
	"context"
	"fmt"
	"strings"

	"fleetdesk-service/internal/domain/auth"
	"fleetdesk-service/internal/identity"
	xerrors "fleetdesk-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// IdentityProvider is the part of the identity client the auth flows use.
type IdentityProvider interface {
	ExchangeCodeForSession(ctx context.Context, code string, cm identity.CookieMethods) (*auth.User, error)
	SignInWithPassword(ctx context.Context, email, password string, cm identity.CookieMethods) (*auth.User, error)
	SendMagicLink(ctx context.Context, email, redirectTo string, cm identity.CookieMethods) error
	SignOut(ctx context.Context, cm identity.CookieMethods) error
}

type LoginLimiter interface {
	CheckLoginAttempt(ctx context.Context, ip, email string) (bool, int64, error)
	ResetLoginAttempts(ctx context.Context, ip, email string) error
}

type AuthService struct {
	provider IdentityProvider
	limiter  LoginLimiter
	logger   *zap.Logger
}

// NewAuthService wires the sign-in flows. limiter may be nil.
func NewAuthService(provider IdentityProvider, limiter LoginLimiter, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		provider: provider,
		limiter:  limiter,
		logger:   logger,
	}
}

// SignIn checks the login rate limit and signs in with email and password.
func (s *AuthService) SignIn(ctx context.Context, req *auth.SignInRequest, cm identity.CookieMethods) (*auth.User, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", xerrors.ErrInvalidInput)
	}

	if err := s.checkAttempt(ctx, req.IPAddress, email); err != nil {
		return nil, err
	}

	user, err := s.provider.SignInWithPassword(ctx, email, req.Password, cm)
	if err != nil {
		s.logger.Info("password sign-in failed",
			zap.String("email", email),
			zap.String("ip", req.IPAddress),
			zap.Error(err),
		)
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.ResetLoginAttempts(ctx, req.IPAddress, email); err != nil {
			s.logger.Warn("failed to reset login attempts", zap.Error(err))
		}
	}

	s.logger.Info("user signed in", zap.String("user_id", user.ID))
	return user, nil
}

// SendMagicLink emails a one-time sign-in link that returns to redirectTo.
func (s *AuthService) SendMagicLink(ctx context.Context, req *auth.MagicLinkRequest, ip, redirectTo string, cm identity.CookieMethods) error {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return fmt.Errorf("%w: email is required", xerrors.ErrInvalidInput)
	}

	if err := s.checkAttempt(ctx, ip, email); err != nil {
		return err
	}

	if err := s.provider.SendMagicLink(ctx, email, redirectTo, cm); err != nil {
		s.logger.Error("failed to send magic link", zap.String("email", email), zap.Error(err))
		return err
	}

	s.logger.Info("magic link sent", zap.String("email", email))
	return nil
}

// ExchangeCode consumes a one-time code. A failed exchange is not retried.
func (s *AuthService) ExchangeCode(ctx context.Context, code string, cm identity.CookieMethods) (*auth.User, error) {
	user, err := s.provider.ExchangeCodeForSession(ctx, code, cm)
	if err != nil {
		return nil, err
	}
	s.logger.Info("auth code exchanged", zap.String("user_id", user.ID))
	return user, nil
}

// SignOut ends the session. Cookies are cleared even if the provider call fails.
func (s *AuthService) SignOut(ctx context.Context, cm identity.CookieMethods) error {
	if err := s.provider.SignOut(ctx, cm); err != nil {
		s.logger.Warn("provider sign-out failed", zap.Error(err))
		return err
	}
	return nil
}

// checkAttempt lets the attempt through when the limiter itself fails.
func (s *AuthService) checkAttempt(ctx context.Context, ip, email string) error {
	if s.limiter == nil {
		return nil
	}

	allowed, remaining, err := s.limiter.CheckLoginAttempt(ctx, ip, email)
	if err != nil {
		s.logger.Warn("rate limiter error", zap.Error(err))
		return nil
	}
	if !allowed {
		return fmt.Errorf("%w: too many login attempts", xerrors.ErrRateLimited)
	}

	s.logger.Debug("login attempt", zap.String("ip", ip), zap.Int64("remaining", remaining))
	return nil
}
