// internal/middleware/gate.go
package middleware

import (
	"context"
	"time"

	"fleetdesk-service/internal/domain/auth"
	"fleetdesk-service/internal/identity"
	"fleetdesk-service/internal/pkg/response"
	"fleetdesk-service/internal/pkg/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionResolver finds the signed-in user, refreshing the session through
// the cookie methods when needed.
type SessionResolver interface {
	GetUser(ctx context.Context, cm identity.CookieMethods) (*auth.User, error)
}

// RoleResolver maps a user to a role. It never fails.
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID string) (auth.Role, bool)
}

type GateConfig struct {
	Timeout         time.Duration
	FailClosed      bool
	ExcludePrefixes []string
}

// Gate authorizes every non-asset request by session and role.
type Gate struct {
	sessions SessionResolver
	roles    RoleResolver
	policy   Policy
	assets   AssetMatcher
	timeout  time.Duration
	logger   *zap.Logger
}

func NewGate(sessions SessionResolver, roles RoleResolver, cfg GateConfig, logger *zap.Logger) *Gate {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		sessions: sessions,
		roles:    roles,
		policy:   Policy{FailClosed: cfg.FailClosed},
		assets:   NewAssetMatcher(cfg.ExcludePrefixes),
		timeout:  cfg.Timeout,
		logger:   logger,
	}
}

func (g *Gate) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if g.assets.Match(path) {
			c.Next()
			return
		}

		carrier := session.NewCarrier(c.Request)
		c.Set(ctxCarrier, carrier)

		ctx, cancel := context.WithTimeout(c.Request.Context(), g.timeout)
		subject := g.resolve(ctx, c, carrier)
		cancel()

		decision := g.policy.Decide(path, subject)
		g.logger.Debug("gate decision",
			zap.String("path", path),
			zap.Bool("authenticated", subject.Authenticated),
			zap.String("role", subject.Role.String()),
			zap.String("action", decision.Action.String()),
			zap.String("location", decision.Location),
		)

		// Refreshed session cookies go out with either outcome.
		carrier.WriteTo(c.Writer)

		if decision.Action == ActionRedirect {
			response.Redirect(c, decision.Location)
			return
		}

		c.Next()
	}
}

func (g *Gate) resolve(ctx context.Context, c *gin.Context, carrier *session.Carrier) Subject {
	user, err := g.sessions.GetUser(ctx, carrier)
	if err != nil {
		g.logger.Warn("session lookup failed, treating request as signed out",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		return Subject{}
	}
	if user == nil {
		return Subject{}
	}

	role, defaulted := g.roles.ResolveRole(ctx, user.ID)

	c.Set(ctxUser, user)
	c.Set(ctxRole, role)

	return Subject{Authenticated: true, Role: role, Defaulted: defaulted}
}
