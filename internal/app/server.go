// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fleetdesk-service/internal/config"
	"fleetdesk-service/internal/db"
	"fleetdesk-service/internal/domain/auth"
	authHandler "fleetdesk-service/internal/handlers/auth"
	pagesHandler "fleetdesk-service/internal/handlers/pages"
	placesHandler "fleetdesk-service/internal/handlers/places"
	"fleetdesk-service/internal/identity"
	"fleetdesk-service/internal/middleware"
	"fleetdesk-service/internal/pkg/jwt"
	"fleetdesk-service/internal/pkg/session"
	"fleetdesk-service/internal/repository/postgres"
	authUsecase "fleetdesk-service/internal/service/auth"
	placesUsecase "fleetdesk-service/internal/service/places"
	"fleetdesk-service/internal/service/profile"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sessionCookieMaxAge = 400 * 24 * time.Hour

type Server struct {
	cfg        config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	httpServer *http.Server
	db         *postgres.DB
	redis      *redis.Client
}

func NewServer() (*Server, error) {
	cfg := config.Load()

	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		gin.SetMode(gin.ReleaseMode)
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return &Server{cfg: cfg, engine: gin.New(), logger: logger}, nil
}

// Start connects the stores, wires every component and serves until
// Shutdown is called.
func (s *Server) Start() error {
	ctx := context.Background()
	logger := s.logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	s.db = postgres.NewDB(pool)
	logger.Info("connected to PostgreSQL")

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Address:  s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       s.cfg.RedisDB,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	s.redis = redisClient
	logger.Info("connected to Redis", zap.String("addr", s.cfg.RedisAddr))

	// ----- JWT Verifier -----
	verifier, err := jwt.LoadVerifier(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}

	// ----- Session Manager & Rate Limiter -----
	sessionManager := session.NewManager(redisClient)
	rateLimiter := session.NewRateLimiter(redisClient, s.cfg.LoginMaxAttempts, s.cfg.LoginAttemptWindow)

	// ----- Identity Provider -----
	identityClient, err := identity.NewClient(identity.Config{
		ClientID:     s.cfg.Auth.ClientID,
		ClientSecret: s.cfg.Auth.ClientSecret,
		APIKey:       s.cfg.Auth.APIKey,
		AuthorizeURL: s.cfg.Auth.AuthorizeURL,
		TokenURL:     s.cfg.Auth.TokenURL,
		OTPURL:       s.cfg.Auth.OTPURL,
		LogoutURL:    s.cfg.Auth.LogoutURL,
		RedirectURL:  callbackURL(s.cfg.SiteURL),
		CookieName:   s.cfg.Auth.CookieName,
		CookieOptions: session.Options{
			Path:     "/",
			Domain:   s.cfg.Auth.CookieDomain,
			MaxAge:   int(sessionCookieMaxAge.Seconds()),
			HttpOnly: true,
			Secure:   s.cfg.Auth.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		},
		RefreshMargin: s.cfg.Auth.RefreshMargin,
	}, verifier, sessionManager, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to build identity client: %w", err)
	}

	// ----- Repositories -----
	profileRepo := postgres.NewProfileRepository(s.db.Pool())

	// ----- Services (Usecases) -----
	roleService := profile.NewRoleService(
		profileRepo,
		profile.NewRedisRoleCache(redisClient),
		s.cfg.ProfileRoleCacheTTL,
		auth.ParseRole(s.cfg.ProfileDefaultRole),
		logger,
	)
	authService := authUsecase.NewAuthService(identityClient, rateLimiter, logger)
	placesService := placesUsecase.NewClient(placesUsecase.Config{
		APIKey:  s.cfg.PlacesAPIKey,
		BaseURL: s.cfg.PlacesBaseURL,
		Country: s.cfg.PlacesCountry,
	}, logger)

	// ----- Middlewares -----
	gate := middleware.NewGate(identityClient, roleService, middleware.GateConfig{
		Timeout:         s.cfg.GateTimeout,
		FailClosed:      s.cfg.GateFailClosed,
		ExcludePrefixes: s.cfg.GateExcludePrefixes,
	}, logger)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		gate.Handler(),
	)

	// ----- Router -----
	SetupRouter(s.engine, &Handlers{
		AuthHandler:   authHandler.NewAuthHandler(authService, s.cfg.SiteURL, logger),
		PagesHandler:  pagesHandler.NewPagesHandler(),
		PlacesHandler: placesHandler.NewPlacesHandler(placesService, logger),
		Health:        s.health,
	})

	// ----- Start HTTP -----
	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("server listening", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the store pools.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.redis != nil {
		if cerr := s.redis.Close(); cerr != nil {
			s.logger.Warn("failed to close Redis", zap.Error(cerr))
		}
	}
	if s.db != nil {
		s.db.Close()
	}
	_ = s.logger.Sync()
	return err
}

func (s *Server) health(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if s.db != nil {
		if err := s.db.Ping(c.Request.Context()); err != nil {
			status["postgres"] = "unavailable"
		}
	}
	c.JSON(http.StatusOK, status)
}

func callbackURL(siteURL string) string {
	if siteURL == "" {
		return ""
	}
	return siteURL + "/auth/callback"
}
