package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pingFunc adapts a function to HealthChecker.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func healthy(context.Context) error { return nil }

func serveHealth(t *testing.T, handler http.HandlerFunc, path string) (int, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestHealthHandler_HealthzIgnoresDependencies(t *testing.T) {
	down := pingFunc(func(context.Context) error { return errors.New("dial tcp 127.0.0.1:5432: connect: connection refused") })
	h := NewHealthHandler(down, down)

	code, resp := serveHealth(t, h.Healthz, "/healthz")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Checks)
}

func TestHealthHandler_Readyz(t *testing.T) {
	pgDown := pingFunc(func(context.Context) error {
		return errors.New(`failed to connect to host=db user=inkpost database=inkpost: password authentication failed`)
	})
	redisDown := pingFunc(func(context.Context) error { return errors.New("redis: connection pool timeout") })

	tests := []struct {
		name       string
		db, cache  HealthChecker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{"all healthy", pingFunc(healthy), pingFunc(healthy), http.StatusOK, "ok",
			map[string]string{"postgres": "ok", "redis": "ok"}},
		{"postgres down", pgDown, pingFunc(healthy), http.StatusServiceUnavailable, "unhealthy",
			map[string]string{"postgres": "error", "redis": "ok"}},
		{"redis down", pingFunc(healthy), redisDown, http.StatusServiceUnavailable, "unhealthy",
			map[string]string{"postgres": "ok", "redis": "error"}},
		{"nothing configured", nil, nil, http.StatusOK, "ok",
			map[string]string{"postgres": "not configured", "redis": "not configured"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := serveHealth(t, NewHealthHandler(tt.db, tt.cache).Readyz, "/readyz")

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantChecks, resp.Checks)
		})
	}
}

func TestHealthHandler_ReadyzHidesErrorDetails(t *testing.T) {
	db := pingFunc(func(context.Context) error {
		return errors.New("failed to connect to host=db user=inkpost password=s3cret")
	})
	h := NewHealthHandler(db, pingFunc(healthy))

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "s3cret")
	assert.NotContains(t, rec.Body.String(), "host=db")
}

func TestHealthHandler_ReadyzBoundsPings(t *testing.T) {
	var deadlineSet bool
	db := pingFunc(func(ctx context.Context) error {
		_, deadlineSet = ctx.Deadline()
		return nil
	})

	code, _ := serveHealth(t, NewHealthHandler(db, nil).Readyz, "/readyz")

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, deadlineSet, "pings must run under readyTimeout")
}
