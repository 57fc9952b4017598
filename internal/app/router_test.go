package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fleetdesk-service/internal/domain/auth"
	authHandler "fleetdesk-service/internal/handlers/auth"
	pagesHandler "fleetdesk-service/internal/handlers/pages"
	placesHandler "fleetdesk-service/internal/handlers/places"
	"fleetdesk-service/internal/identity"
	"fleetdesk-service/internal/middleware"
	xerrors "fleetdesk-service/internal/pkg/errors"
	"fleetdesk-service/internal/pkg/session"
	placesUsecase "fleetdesk-service/internal/service/places"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubIdentity resolves the user from a plain "uid" cookie and refreshes
// every session it sees.
type stubIdentity struct{}

func (stubIdentity) GetUser(_ context.Context, cm identity.CookieMethods) (*auth.User, error) {
	for _, ck := range cm.GetAll() {
		if ck.Name == "uid" {
			cm.SetAll([]session.CookieToSet{{Name: "sb-auth-token", Value: "refreshed-" + ck.Value}})
			return &auth.User{ID: ck.Value}, nil
		}
	}
	return nil, nil
}

type stubRoles map[string]auth.Role

func (s stubRoles) ResolveRole(_ context.Context, userID string) (auth.Role, bool) {
	if r, ok := s[userID]; ok {
		return r, false
	}
	return auth.RoleAdmin, true
}

type stubAuth struct{}

func (stubAuth) SignIn(context.Context, *auth.SignInRequest, identity.CookieMethods) (*auth.User, error) {
	return nil, xerrors.ErrUnauthorized
}

func (stubAuth) SendMagicLink(context.Context, *auth.MagicLinkRequest, string, string, identity.CookieMethods) error {
	return nil
}

func (stubAuth) ExchangeCode(_ context.Context, code string, _ identity.CookieMethods) (*auth.User, error) {
	if code != "abc" {
		return nil, xerrors.ErrCodeExchange
	}
	return &auth.User{ID: "new"}, nil
}

func (stubAuth) SignOut(context.Context, identity.CookieMethods) error { return nil }

const upstreamKey = "SECRET-PLACES-KEY"

// stubPlaces counts upstream calls. The input and place id "fail" return an
// error carrying the API key, as a raw transport error would.
type stubPlaces struct {
	calls int
}

func (s *stubPlaces) Autocomplete(_ context.Context, input, _ string) ([]placesUsecase.Prediction, error) {
	s.calls++
	if input == "fail" {
		return nil, fmt.Errorf("%w: Get \"http://places.test/autocomplete/json?key=%s\": connection refused", xerrors.ErrUpstream, upstreamKey)
	}
	return []placesUsecase.Prediction{}, nil
}

func (s *stubPlaces) Details(_ context.Context, placeID, _ string) (*placesUsecase.Address, error) {
	s.calls++
	if placeID == "fail.png" {
		return nil, fmt.Errorf("%w: Get \"http://places.test/details/json?key=%s\": connection refused", xerrors.ErrUpstream, upstreamKey)
	}
	return nil, xerrors.ErrNotFound
}

func newTestEngine() *gin.Engine {
	r, _ := newTestEngineWithPlaces()
	return r
}

func newTestEngineWithPlaces() (*gin.Engine, *stubPlaces) {
	places := &stubPlaces{}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	gate := middleware.NewGate(stubIdentity{}, stubRoles{"d1": auth.ParseRole("Driver"), "a1": auth.RoleAdmin}, middleware.GateConfig{}, zap.NewNop())
	r.Use(middleware.RecoveryMiddleware(zap.NewNop()), middleware.LoggingMiddleware(zap.NewNop()), gate.Handler())
	SetupRouter(r, &Handlers{
		AuthHandler:   authHandler.NewAuthHandler(stubAuth{}, "https://fleet.example.com", zap.NewNop()),
		PagesHandler:  pagesHandler.NewPagesHandler(),
		PlacesHandler: placesHandler.NewPlacesHandler(places, zap.NewNop()),
		Health:        func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) },
	})
	return r, places
}

func TestRouter_gatedRoutes(t *testing.T) {
	r := newTestEngine()

	tests := []struct {
		name     string
		uid      string
		path     string
		status   int
		location string
	}{
		{"anonymous dashboard", "", "/", http.StatusFound, "/login"},
		{"anonymous places api", "", "/api/v1/places/autocomplete?input=moi", http.StatusFound, "/login"},
		{"anonymous login page", "", "/login", http.StatusOK, ""},
		{"health bypasses gate", "", "/healthz", http.StatusOK, ""},
		{"driver dashboard", "d1", "/", http.StatusFound, "/driver/delivery"},
		{"driver delivery", "d1", "/driver/delivery", http.StatusOK, ""},
		{"admin invoices", "a1", "/invoices", http.StatusOK, ""},
		{"admin driver page", "a1", "/driver/history", http.StatusFound, "/"},
		{"admin login page", "a1", "/login", http.StatusFound, "/"},
		{"no profile driver page", "ghost", "/driver/anything", http.StatusFound, "/"},
		{"admin places api", "a1", "/api/v1/places/autocomplete?input=moi", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.uid != "" {
				req.AddCookie(&http.Cookie{Name: "uid", Value: tt.uid})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.status, w.Code)
			require.Equal(t, tt.location, w.Header().Get("Location"))
			require.NotEmpty(t, w.Header().Get("X-Request-ID"))

			if tt.uid != "" {
				var refreshed string
				for _, ck := range w.Result().Cookies() {
					if ck.Name == "sb-auth-token" {
						refreshed = ck.Value
					}
				}
				require.Equal(t, "refreshed-"+tt.uid, refreshed)
			}
		})
	}
}

func TestRouter_callback(t *testing.T) {
	r := newTestEngine()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&next=/update-password", nil))
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "https://fleet.example.com/update-password", w.Header().Get("Location"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/callback?code=used&next=/update-password", nil))
	require.Equal(t, "https://fleet.example.com/login?error=auth_code_error", w.Header().Get("Location"))
}

func TestRouter_assetPathsOnGatedRoutes(t *testing.T) {
	tests := []struct {
		name     string
		uid      string
		path     string
		status   int
		location string
		calls    int
	}{
		{"api image place id", "", "/api/v1/places/x.png", http.StatusFound, "/login", 0},
		{"api upper-case extension", "", "/api/v1/places/abc.SVG", http.StatusFound, "/login", 0},
		{"api autocomplete with extension", "", "/api/v1/places/autocomplete.webp", http.StatusFound, "/login", 0},
		{"api under static-looking segment", "", "/api/static/app.js", http.StatusFound, "/login", 0},
		{"admin api image id reaches handler", "a1", "/api/v1/places/x.png", http.StatusNotFound, "", 1},
		{"driver api image id", "d1", "/api/v1/places/x.png", http.StatusFound, "/driver/delivery", 0},
		{"page image has no route", "", "/driver/logo.png", http.StatusNotFound, "", 0},
		{"invoice image has no route", "", "/invoices/report.png", http.StatusNotFound, "", 0},
		{"page without extension", "", "/driver/history", http.StatusFound, "/login", 0},
		{"static prefix", "", "/static/app.js", http.StatusNotFound, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, places := newTestEngineWithPlaces()

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.uid != "" {
				req.AddCookie(&http.Cookie{Name: "uid", Value: tt.uid})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.status, w.Code)
			require.Equal(t, tt.location, w.Header().Get("Location"))
			require.Equal(t, tt.calls, places.calls)
		})
	}
}

func TestRouter_upstreamErrorsStayServerSide(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"autocomplete", "/api/v1/places/autocomplete?input=fail"},
		{"details", "/api/v1/places/fail.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, places := newTestEngineWithPlaces()

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.AddCookie(&http.Cookie{Name: "uid", Value: "a1"})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, http.StatusBadGateway, w.Code)
			require.Equal(t, 1, places.calls)
			require.Contains(t, w.Body.String(), `"message":"address lookup unavailable"`)
			require.NotContains(t, w.Body.String(), upstreamKey)
			require.NotContains(t, w.Body.String(), "places.test")
		})
	}
}
