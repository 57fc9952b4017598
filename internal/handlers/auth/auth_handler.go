// internal/handlers/auth/auth_handler.go
package auth

import (
	"context"
	"net/url"
	"strings"

	"fleetdesk-service/internal/domain/auth"
	"fleetdesk-service/internal/identity"
	"fleetdesk-service/internal/middleware"
	xerrors "fleetdesk-service/internal/pkg/errors"
	"fleetdesk-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	callbackPath        = "/auth/callback"
	errAuthCode         = "/login?error=auth_code_error"
	errInvalidCreds     = "/login?error=invalid_credentials"
	errTooManyAttempts  = "/login?error=too_many_attempts"
	errInvalidRequest   = "/login?error=invalid_request"
	errAuthUnavailable  = "/login?error=auth_unavailable"
	errMagicLinkFailed  = "/login?error=magic_link_failed"
	magicLinkSentTarget = "/login?sent=1"
)

type Service interface {
	SignIn(ctx context.Context, req *auth.SignInRequest, cm identity.CookieMethods) (*auth.User, error)
	SendMagicLink(ctx context.Context, req *auth.MagicLinkRequest, ip, redirectTo string, cm identity.CookieMethods) error
	ExchangeCode(ctx context.Context, code string, cm identity.CookieMethods) (*auth.User, error)
	SignOut(ctx context.Context, cm identity.CookieMethods) error
}

type AuthHandler struct {
	authService Service
	siteURL     string
	logger      *zap.Logger
}

// NewAuthHandler builds the auth routes. siteURL, when set, is the origin
// used for post-login redirects; otherwise it is taken from the request.
func NewAuthHandler(authService Service, siteURL string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		siteURL:     strings.TrimRight(siteURL, "/"),
		logger:      logger,
	}
}

// ========== Code exchange ==========

// Callback handles GET /auth/callback?code=&next=
func (h *AuthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	next := SanitizeNext(c.Query("next"))
	origin := h.origin(c)
	carrier := middleware.CarrierFrom(c)

	if code != "" {
		_, err := h.authService.ExchangeCode(c.Request.Context(), code, carrier)
		if err == nil {
			carrier.WriteTo(c.Writer)
			response.Redirect(c, origin+next)
			return
		}
		h.logger.Warn("auth code exchange failed", zap.Error(err))
	}

	carrier.WriteTo(c.Writer)
	response.Redirect(c, origin+errAuthCode)
}

// ========== Password sign-in ==========

// Login handles POST /login with form or JSON credentials.
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.SignInRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Redirect(c, errInvalidRequest)
		return
	}
	req.IPAddress = c.ClientIP()

	carrier := middleware.CarrierFrom(c)
	_, err := h.authService.SignIn(c.Request.Context(), &req, carrier)
	carrier.WriteTo(c.Writer)

	switch {
	case err == nil:
		response.Redirect(c, "/")
	case xerrors.Is(err, xerrors.ErrRateLimited):
		response.Redirect(c, errTooManyAttempts)
	case xerrors.Is(err, xerrors.ErrUnauthorized), xerrors.Is(err, xerrors.ErrInvalidInput):
		response.Redirect(c, errInvalidCreds)
	default:
		h.logger.Error("sign-in failed", zap.String("email", req.Email), zap.Error(err))
		response.Redirect(c, errAuthUnavailable)
	}
}

// MagicLink handles POST /login/magic-link
func (h *AuthHandler) MagicLink(c *gin.Context) {
	var req auth.MagicLinkRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Redirect(c, errInvalidRequest)
		return
	}

	redirectTo := h.origin(c) + callbackPath + "?next=" + url.QueryEscape(SanitizeNext(req.Next))

	carrier := middleware.CarrierFrom(c)
	err := h.authService.SendMagicLink(c.Request.Context(), &req, c.ClientIP(), redirectTo, carrier)
	carrier.WriteTo(c.Writer)

	switch {
	case err == nil:
		response.Redirect(c, magicLinkSentTarget)
	case xerrors.Is(err, xerrors.ErrRateLimited):
		response.Redirect(c, errTooManyAttempts)
	default:
		response.Redirect(c, errMagicLinkFailed)
	}
}

// ========== Sign-out ==========

// SignOut always lands on the login page, even if the provider call failed.
func (h *AuthHandler) SignOut(c *gin.Context) {
	carrier := middleware.CarrierFrom(c)
	if err := h.authService.SignOut(c.Request.Context(), carrier); err != nil {
		h.logger.Warn("sign-out incomplete", zap.Error(err))
	}
	carrier.WriteTo(c.Writer)
	response.Redirect(c, "/login")
}

// SanitizeNext keeps only local absolute paths. Anything else, including
// scheme-relative "//host" targets, becomes "/".
func SanitizeNext(next string) string {
	if next == "" || next[0] != '/' {
		return "/"
	}
	if len(next) > 1 && (next[1] == '/' || next[1] == '\\') {
		return "/"
	}
	if strings.ContainsAny(next, "\r\n") {
		return "/"
	}
	return next
}

func (h *AuthHandler) origin(c *gin.Context) string {
	if h.siteURL != "" {
		return h.siteURL
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}

	host := c.Request.Host
	if fwd := c.GetHeader("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}

	return scheme + "://" + host
}

// RegisterRoutes mounts the auth endpoints.
func (h *AuthHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET(callbackPath, h.Callback)
	r.POST("/auth/signout", h.SignOut)
	// drivers are confined to /driver, so they sign out from there
	r.POST("/driver/signout", h.SignOut)
	r.POST("/login", h.Login)
	r.POST("/login/magic-link", h.MagicLink)
}
