package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/inkpost/inkpost/internal/metrics"
	"github.com/inkpost/inkpost/internal/middleware"
	"github.com/inkpost/inkpost/internal/service"
)

// RouterConfig wires services and middleware settings into the HTTP API.
type RouterConfig struct {
	Logger *slog.Logger

	Posts *service.PostService
	Auth  *service.AuthService

	Tokens      middleware.TokenVerifier
	Revocations middleware.RevocationChecker
	RateLimiter middleware.IPRateLimiter

	Recorder    metrics.Recorder
	Snapshotter metrics.Snapshotter

	DB    HealthChecker
	Cache HealthChecker

	Security  middleware.SecurityConfig
	CORS      middleware.CORSConfig
	LoginRate middleware.RateLimitConfig
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	h := New()
	healthHandler := NewHealthHandler(cfg.DB, cfg.Cache)
	metricsHandler := NewMetricsHandler(cfg.Snapshotter)
	postHandler := NewPostHandler(cfg.Posts, cfg.Logger)
	authHandler := NewAuthHandler(cfg.Auth, cfg.Logger)

	if cfg.Security.MaxRequestBodySize <= 0 {
		cfg.Security.MaxRequestBodySize = middleware.DefaultSecurityConfig().MaxRequestBodySize
	}

	loginRate := cfg.LoginRate
	loginRate.Logger = cfg.Logger
	loginRate.Limiter = cfg.RateLimiter
	loginRate.Recorder = cfg.Recorder

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))

	// Probes and metrics (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.MaxBodySize(cfg.Security.MaxRequestBodySize))
		r.Use(middleware.Authenticate(middleware.AuthConfig{
			Logger:      cfg.Logger,
			Tokens:      cfg.Tokens,
			Revocations: cfg.Revocations,
		}))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.Signup)
			r.With(middleware.RateLimitLogin(loginRate)).Post("/login", authHandler.Login)
			r.With(middleware.RequireAuth).Post("/logout", authHandler.Logout)
			r.With(middleware.RequireAuth).Get("/me", authHandler.Me)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", postHandler.List)
			r.Get("/{id}", postHandler.Get)
			r.With(middleware.RequireAuth).Post("/", postHandler.Create)
			r.With(middleware.RequireAuth).Put("/{id}", postHandler.Update)
			r.With(middleware.RequireAuth).Delete("/{id}", postHandler.Delete)
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
