// Package apitest assembles the full HTTP API over in-memory stores so that
// handler and contract tests exercise the real router and middleware chain.
package apitest

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/handler"
	"github.com/inkpost/inkpost/internal/metrics"
	"github.com/inkpost/inkpost/internal/middleware"
	"github.com/inkpost/inkpost/internal/service"
	"github.com/inkpost/inkpost/internal/testutil/memstore"
)

// API is an in-process instance of the HTTP API.
type API struct {
	Handler     http.Handler
	Store       *memstore.Store
	Revocations *memstore.Revocations
	Tokens      *auth.TokenService
	Metrics     *metrics.InMemoryRecorder
}

// Option adjusts the router configuration before the API is built.
type Option func(*handler.RouterConfig)

// WithLoginRateLimit enables the login limiter with the given bucket.
func WithLoginRateLimit(rps float64, burst int) Option {
	return func(cfg *handler.RouterConfig) {
		cfg.LoginRate.Enabled = true
		cfg.LoginRate.RPS = rps
		cfg.LoginRate.Burst = burst
	}
}

// New builds an API over empty in-memory stores. The login limiter has no
// shared store, so when enabled it runs on the in-process fallback.
func New(t testing.TB, opts ...Option) *API {
	t.Helper()

	key, err := auth.GenerateTokenKey()
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, time.Hour)
	require.NoError(t, err)

	logger := slog.New(slog.DiscardHandler)
	store := memstore.New()
	revocations := memstore.NewRevocations()
	recorder := metrics.NewInMemory()

	posts := service.NewPostService(store, nil, 0, recorder, logger)
	authSvc := service.NewAuthService(store, auth.NewBcryptHasher(bcrypt.MinCost), tokens, revocations, recorder, logger)

	cfg := handler.RouterConfig{
		Logger:      logger,
		Posts:       posts,
		Auth:        authSvc,
		Tokens:      tokens,
		Revocations: revocations,
		Recorder:    recorder,
		Snapshotter: recorder,
		Security:    middleware.SecurityConfig{IsDevelopment: true, MaxRequestBodySize: 1 << 20},
		CORS:        middleware.DefaultCORSConfig(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &API{
		Handler:     handler.NewRouter(cfg),
		Store:       store,
		Revocations: revocations,
		Tokens:      tokens,
		Metrics:     recorder,
	}
}

// Do sends a request through the router. body, when non-nil, is encoded as
// JSON; a string body is sent verbatim.
func (a *API) Do(t testing.TB, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, req)
	return rec
}

// Decode unmarshals a response body into out.
func Decode(t testing.TB, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

// SignupAndLogin creates an account and returns its id and access token.
func (a *API) SignupAndLogin(t testing.TB, name, email string) (string, string) {
	t.Helper()

	const password = "correct horse battery"

	rec := a.Do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.Do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var login struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	Decode(t, rec, &login)
	return login.User.ID, login.AccessToken
}
