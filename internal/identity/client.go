// internal/identity/client.go
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"fleetdesk-service/internal/domain/auth"
	xerrors "fleetdesk-service/internal/pkg/errors"
	"fleetdesk-service/internal/pkg/jwt"
	"fleetdesk-service/internal/pkg/session"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const codeVerifierSuffix = "-code-verifier"

// CookieMethods is how the client reads and writes the session cookies of
// the current request. session.Carrier implements it.
type CookieMethods interface {
	GetAll() []*http.Cookie
	SetAll(cookies []session.CookieToSet)
}

// Revocations tracks sessions signed out before their access token expired.
type Revocations interface {
	IsSessionRevoked(ctx context.Context, sessionID string) (bool, error)
	RevokeSession(ctx context.Context, sessionID string, ttl time.Duration) error
}

type Config struct {
	ClientID      string
	ClientSecret  string
	APIKey        string
	AuthorizeURL  string
	TokenURL      string
	OTPURL        string
	LogoutURL     string
	RedirectURL   string
	CookieName    string
	CookieOptions session.Options
	RefreshMargin time.Duration
}

// Client talks to the hosted identity provider on behalf of one request at
// a time. It holds no per-request state.
type Client struct {
	oauth         *oauth2.Config
	verifier      *jwt.Verifier
	revocations   Revocations
	httpClient    *http.Client
	apiKey        string
	otpURL        string
	logoutURL     string
	cookieName    string
	cookieOpts    session.Options
	refreshMargin time.Duration
	logger        *zap.Logger
}

func NewClient(cfg Config, verifier *jwt.Verifier, revocations Revocations, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("identity provider token URL is required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("access token verifier is required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "sb-auth-token"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthorizeURL,
				TokenURL: cfg.TokenURL,
				// Never let the library retry a request: codes are single use.
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		verifier:      verifier,
		revocations:   revocations,
		httpClient:    httpClient,
		apiKey:        cfg.APIKey,
		otpURL:        cfg.OTPURL,
		logoutURL:     cfg.LogoutURL,
		cookieName:    cfg.CookieName,
		cookieOpts:    cfg.CookieOptions,
		refreshMargin: cfg.RefreshMargin,
		logger:        logger,
	}, nil
}

// GetUser resolves the signed-in user from the session cookies, refreshing
// the session when its access token is expired or about to expire. Refreshed
// tokens are written back through cm.
//
// No session, an unreadable session and a refresh the provider rejects all
// return (nil, nil). An error means the provider could not be asked; cookies
// are left untouched in that case.
func (c *Client) GetUser(ctx context.Context, cm CookieMethods) (*auth.User, error) {
	cookies := cm.GetAll()

	sess, err := session.DecodeSession(c.cookieName, cookies)
	if errors.Is(err, xerrors.ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		c.logger.Debug("discarding unreadable session cookie", zap.Error(err))
		c.clear(cm, cookies)
		return nil, nil
	}

	if sess.AccessToken != "" && time.Until(sess.Expiry()) > c.refreshMargin {
		claims, err := c.verifier.Verify(sess.AccessToken)
		if err == nil {
			return c.activeUser(ctx, claims, cm, cookies), nil
		}
		if !jwt.IsExpired(err) {
			c.logger.Debug("discarding session with invalid access token", zap.Error(err))
			c.clear(cm, cookies)
			return nil, nil
		}
	}

	return c.refresh(ctx, sess, cm, cookies)
}

func (c *Client) refresh(ctx context.Context, sess *session.SessionData, cm CookieMethods, cookies []*http.Cookie) (*auth.User, error) {
	if sess.RefreshToken == "" {
		c.clear(cm, cookies)
		return nil, nil
	}

	tok, err := c.oauth.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: sess.RefreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			c.logger.Debug("provider rejected refresh token",
				zap.Int("status", statusOf(re)),
				zap.String("error_code", re.ErrorCode),
			)
			c.clear(cm, cookies)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = sess.RefreshToken
	}

	claims, err := c.persist(tok, cm, cookies)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("session refreshed", zap.String("user_id", claims.Subject))
	return c.activeUser(ctx, claims, cm, cm.GetAll()), nil
}

// ExchangeCodeForSession trades a single-use authorization code for a
// session. A PKCE verifier left by SendMagicLink is sent and then cleared.
func (c *Client) ExchangeCodeForSession(ctx context.Context, code string, cm CookieMethods) (*auth.User, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", xerrors.ErrCodeExchange)
	}

	var opts []oauth2.AuthCodeOption
	verifierName := c.cookieName + codeVerifierSuffix
	for _, ck := range cm.GetAll() {
		if ck.Name == verifierName && ck.Value != "" {
			opts = append(opts, oauth2.VerifierOption(ck.Value))
			cm.SetAll([]session.CookieToSet{{Name: verifierName, Options: c.cookieOpts.Expired()}})
			break
		}
	}

	tok, err := c.oauth.Exchange(c.withHTTPClient(ctx), code, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrCodeExchange, err)
	}

	claims, err := c.persist(tok, cm, cm.GetAll())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrCodeExchange, err)
	}

	return userFromClaims(claims), nil
}

// SignInWithPassword uses the password grant and persists the new session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string, cm CookieMethods) (*auth.User, error) {
	tok, err := c.oauth.PasswordCredentialsToken(c.withHTTPClient(ctx), email, password)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, fmt.Errorf("%w: %s", xerrors.ErrUnauthorized, re.ErrorCode)
		}
		return nil, fmt.Errorf("%w: %v", xerrors.ErrUpstream, err)
	}

	claims, err := c.persist(tok, cm, cm.GetAll())
	if err != nil {
		return nil, err
	}

	return userFromClaims(claims), nil
}

type otpRequest struct {
	Email               string `json:"email"`
	CreateUser          bool   `json:"create_user"`
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method"`
}

// SendMagicLink asks the provider to email a sign-in link that lands on
// redirectTo with a code. The PKCE verifier is kept in a short-lived cookie.
func (c *Client) SendMagicLink(ctx context.Context, email, redirectTo string, cm CookieMethods) error {
	if c.otpURL == "" {
		return fmt.Errorf("magic link sign-in is not configured")
	}

	verifier := oauth2.GenerateVerifier()
	body, err := json.Marshal(otpRequest{
		Email:               email,
		CodeChallenge:       oauth2.S256ChallengeFromVerifier(verifier),
		CodeChallengeMethod: "s256",
	})
	if err != nil {
		return fmt.Errorf("failed to encode otp request: %w", err)
	}

	u, err := url.Parse(c.otpURL)
	if err != nil {
		return fmt.Errorf("invalid otp url: %w", err)
	}
	q := u.Query()
	q.Set("redirect_to", redirectTo)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build otp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAPIKey(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: otp request: %v", xerrors.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: otp endpoint returned HTTP %d", xerrors.ErrUpstream, resp.StatusCode)
	}

	opts := c.cookieOpts
	opts.MaxAge = int((10 * time.Minute).Seconds())
	cm.SetAll([]session.CookieToSet{{Name: c.cookieName + codeVerifierSuffix, Value: verifier, Options: opts}})
	return nil
}

// SignOut ends the session at the provider, marks it revoked locally and
// clears the cookies. Cookies are cleared even when the provider call fails.
func (c *Client) SignOut(ctx context.Context, cm CookieMethods) error {
	cookies := cm.GetAll()
	defer c.clear(cm, cookies)

	sess, err := session.DecodeSession(c.cookieName, cookies)
	if err != nil || sess.AccessToken == "" {
		return nil
	}

	if claims, err := c.verifier.Verify(sess.AccessToken); err == nil && c.revocations != nil && claims.SessionID != "" {
		ttl := time.Hour
		if claims.ExpiresAt != nil {
			ttl = time.Until(claims.ExpiresAt.Time)
		}
		if err := c.revocations.RevokeSession(ctx, claims.SessionID, ttl); err != nil {
			c.logger.Warn("failed to revoke session", zap.String("user_id", claims.Subject), zap.Error(err))
		}
	}

	if c.logoutURL == "" {
		return nil
	}
	return c.remoteLogout(ctx, sess.AccessToken)
}

func (c *Client) remoteLogout(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.logoutURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build logout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	c.setAPIKey(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: logout request: %v", xerrors.ErrUpstream, err)
	}
	defer resp.Body.Close()

	// 401/404 mean the session is already gone.
	if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: logout endpoint returned HTTP %d", xerrors.ErrUpstream, resp.StatusCode)
	}
	return nil
}

// persist verifies the provider's fresh token and writes it as the session.
func (c *Client) persist(tok *oauth2.Token, cm CookieMethods, existing []*http.Cookie) (*jwt.Claims, error) {
	claims, err := c.verifier.Verify(tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("provider issued an unverifiable token: %w", err)
	}

	expiresAt := tok.Expiry
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	sess := &session.SessionData{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		ExpiresAt:    expiresAt.Unix(),
		User:         &session.SessionUser{ID: claims.Subject, Email: claims.Email},
	}

	sets, err := session.EncodeSession(c.cookieName, sess, existing, c.cookieOpts)
	if err != nil {
		return nil, err
	}
	cm.SetAll(sets)

	return claims, nil
}

// activeUser returns the user unless the session was signed out elsewhere.
// A failing revocation store does not lock users out.
func (c *Client) activeUser(ctx context.Context, claims *jwt.Claims, cm CookieMethods, cookies []*http.Cookie) *auth.User {
	if c.revocations != nil && claims.SessionID != "" {
		revoked, err := c.revocations.IsSessionRevoked(ctx, claims.SessionID)
		if err != nil {
			c.logger.Warn("revocation check failed", zap.String("user_id", claims.Subject), zap.Error(err))
		} else if revoked {
			c.clear(cm, cookies)
			return nil
		}
	}
	return userFromClaims(claims)
}

func (c *Client) clear(cm CookieMethods, cookies []*http.Cookie) {
	if sets := session.ClearSession(c.cookieName, cookies, c.cookieOpts); len(sets) > 0 {
		cm.SetAll(sets)
	}
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *Client) setAPIKey(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
}

func userFromClaims(claims *jwt.Claims) *auth.User {
	u := &auth.User{
		ID:        claims.Subject,
		Email:     claims.Email,
		Phone:     claims.Phone,
		SessionID: claims.SessionID,
	}
	if claims.ExpiresAt != nil {
		u.ExpiresAt = claims.ExpiresAt.Time
	}
	return u
}

func statusOf(re *oauth2.RetrieveError) int {
	if re.Response == nil {
		return 0
	}
	return re.Response.StatusCode
}
