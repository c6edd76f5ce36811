// Package contract provides contract tests that validate API responses against the OpenAPI spec.
package contract

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkpost/inkpost/internal/handler/dto"
	"github.com/inkpost/inkpost/internal/testutil/apitest"
)

// serverURL must match the first entry of the document's servers list.
const serverURL = "http://localhost:8080"

// specPath returns the location of the OpenAPI document.
func specPath(t *testing.T) string {
	t.Helper()

	if path := os.Getenv("OPENAPI_SPEC_PATH"); path != "" {
		return path
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Join(wd, "..", "..", "docs", "api", "openapi.yaml")
}

// loadSpec loads and validates the OpenAPI spec.
func loadSpec(t *testing.T) (*openapi3.T, routers.Router) {
	t.Helper()

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	path := specPath(t)
	spec, err := loader.LoadFromFile(path)
	require.NoError(t, err, "load OpenAPI spec from %s", path)
	require.NoError(t, spec.Validate(context.Background()), "OpenAPI spec validation")

	router, err := gorillamux.NewRouter(spec)
	require.NoError(t, err)

	return spec, router
}

// checker sends requests through the in-process API and validates every
// response against the documented operation.
type checker struct {
	api    *apitest.API
	router routers.Router
}

func newChecker(t *testing.T, opts ...apitest.Option) *checker {
	t.Helper()
	_, router := loadSpec(t)
	return &checker{api: apitest.New(t, opts...), router: router}
}

// do performs the request and fails the test if the response does not
// match the documented status, headers and body schema.
func (c *checker) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	rec := c.api.Do(t, method, path, token, body)

	req, err := http.NewRequest(method, serverURL+path, nil)
	require.NoError(t, err)

	route, pathParams, err := c.router.FindRoute(req)
	require.NoError(t, err, "route %s %s not documented", method, path)

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
		},
		Status: rec.Code,
		Header: rec.Header(),
		Body:   io.NopCloser(bytes.NewReader(rec.Body.Bytes())),
		Options: &openapi3filter.Options{
			IncludeResponseStatus: true,
		},
	}
	err = openapi3filter.ValidateResponse(context.Background(), input)
	assert.NoError(t, err, "%s %s -> %d: %s", method, path, rec.Code, rec.Body.String())

	return rec
}

// TestOpenAPISpecValid ensures the OpenAPI spec is valid.
func TestOpenAPISpecValid(t *testing.T) {
	spec, _ := loadSpec(t)

	expectedPaths := []string{
		"/healthz",
		"/readyz",
		"/metrics",
		"/api/v1/auth/signup",
		"/api/v1/auth/login",
		"/api/v1/auth/logout",
		"/api/v1/auth/me",
		"/api/v1/posts",
		"/api/v1/posts/{id}",
	}
	for _, path := range expectedPaths {
		assert.NotNil(t, spec.Paths.Find(path), "expected path %s", path)
	}
}

func TestProbes(t *testing.T) {
	c := newChecker(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			rec := c.do(t, http.MethodGet, path, "", nil)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestAuthEndpoints(t *testing.T) {
	c := newChecker(t)

	const password = "correct horse battery"

	rec := c.do(t, http.MethodPost, "/api/v1/auth/signup", "", dto.SignupRequest{
		Name: "Ada", Email: "ada@example.com", Password: password,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"signup duplicate", http.MethodPost, "/api/v1/auth/signup",
			dto.SignupRequest{Name: "Ada", Email: "ada@example.com", Password: password}, http.StatusConflict},
		{"signup invalid", http.MethodPost, "/api/v1/auth/signup",
			dto.SignupRequest{Name: "", Email: "nope", Password: "x"}, http.StatusBadRequest},
		{"signup malformed", http.MethodPost, "/api/v1/auth/signup", "{", http.StatusBadRequest},
		{"login wrong password", http.MethodPost, "/api/v1/auth/login",
			dto.LoginRequest{Email: "ada@example.com", Password: "wrong password"}, http.StatusUnauthorized},
		{"login unknown email", http.MethodPost, "/api/v1/auth/login",
			dto.LoginRequest{Email: "nobody@example.com", Password: password}, http.StatusUnauthorized},
		{"me anonymous", http.MethodGet, "/api/v1/auth/me", nil, http.StatusUnauthorized},
		{"logout anonymous", http.MethodPost, "/api/v1/auth/logout", nil, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := c.do(t, tc.method, tc.path, "", tc.body)
			assert.Equal(t, tc.status, rec.Code)
		})
	}

	t.Run("session", func(t *testing.T) {
		rec := c.do(t, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{
			Email: "ada@example.com", Password: password,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var login dto.LoginResponse
		apitest.Decode(t, rec, &login)

		rec = c.do(t, http.MethodGet, "/api/v1/auth/me", login.AccessToken, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = c.do(t, http.MethodPost, "/api/v1/auth/logout", login.AccessToken, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = c.do(t, http.MethodGet, "/api/v1/auth/me", login.AccessToken, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLoginRateLimited(t *testing.T) {
	c := newChecker(t, apitest.WithLoginRateLimit(0.001, 1))

	body := dto.LoginRequest{Email: "ada@example.com", Password: "whatever it is"}
	rec := c.do(t, http.MethodPost, "/api/v1/auth/login", "", body)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(t, http.MethodPost, "/api/v1/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestPostEndpoints(t *testing.T) {
	c := newChecker(t)
	_, owner := c.api.SignupAndLogin(t, "Ada", "ada@example.com")
	_, other := c.api.SignupAndLogin(t, "Bob", "bob@example.com")

	rec := c.do(t, http.MethodPost, "/api/v1/posts", owner, dto.PostRequest{
		Title: "First", Content: "hello", Tags: []string{"Go", "go", " db "},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var post dto.PostResponse
	apitest.Decode(t, rec, &post)
	item := "/api/v1/posts/" + strconv.FormatInt(post.ID, 10)

	for i := range 3 {
		rec = c.do(t, http.MethodPost, "/api/v1/posts", owner, dto.PostRequest{
			Title: "Filler " + strconv.Itoa(i), Content: "more",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
	}{
		{"get", http.MethodGet, item, "", nil, http.StatusOK},
		{"get missing", http.MethodGet, "/api/v1/posts/999999", "", nil, http.StatusNotFound},
		{"get invalid id", http.MethodGet, "/api/v1/posts/abc", "", nil, http.StatusBadRequest},
		{"list first page", http.MethodGet, "/api/v1/posts?limit=2", "", nil, http.StatusOK},
		{"list after cursor", http.MethodGet, "/api/v1/posts?limit=2&cursor=" + strconv.FormatInt(post.ID+2, 10), "", nil, http.StatusOK},
		{"list search", http.MethodGet, "/api/v1/posts?q=first", "", nil, http.StatusOK},
		{"list all", http.MethodGet, "/api/v1/posts?all=true", "", nil, http.StatusOK},
		{"list bad limit", http.MethodGet, "/api/v1/posts?limit=ten", "", nil, http.StatusBadRequest},
		{"create anonymous", http.MethodPost, "/api/v1/posts", "", dto.PostRequest{Title: "x", Content: "y"}, http.StatusUnauthorized},
		{"create invalid", http.MethodPost, "/api/v1/posts", owner, dto.PostRequest{Title: " ", Content: ""}, http.StatusBadRequest},
		{"update by other user", http.MethodPut, item, other, dto.PostRequest{Title: "Hijack", Content: "no"}, http.StatusNotFound},
		{"delete by other user", http.MethodDelete, item, other, nil, http.StatusNotFound},
		{"update", http.MethodPut, item, owner, dto.PostRequest{Title: "First, edited", Content: "hello again", Tags: []string{"go"}}, http.StatusOK},
		{"delete", http.MethodDelete, item, owner, nil, http.StatusNoContent},
		{"get deleted", http.MethodGet, item, "", nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := c.do(t, tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}
