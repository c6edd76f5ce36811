package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/inkpost/inkpost/internal/handler/dto"
	"github.com/inkpost/inkpost/internal/service"
)

func TestHandler_NotFound(t *testing.T) {
	h := New()

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()

	h.NotFound(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}

	var response dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Code != "NOT_FOUND" {
		t.Errorf("unexpected error code: %s", response.Code)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := New()

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/posts/1", nil)
	rec := httptest.NewRecorder()

	h.MethodNotAllowed(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}

	var response dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Code != "METHOD_NOT_ALLOWED" {
		t.Errorf("unexpected error code: %s", response.Code)
	}
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &service.ValidationError{Fields: map[string]string{"title": "is required"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", service.ErrPostNotFound, http.StatusNotFound, "POST_NOT_FOUND"},
		{"forbidden looks like not found", service.ErrForbidden, http.StatusNotFound, "POST_NOT_FOUND"},
		{"duplicate email", service.ErrDuplicateEmail, http.StatusConflict, "EMAIL_TAKEN"},
		{"authentication", service.ErrAuthenticationFailed, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"storage", fmt.Errorf("%w: create post: %w", service.ErrStorage, errors.New("conn reset")), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&logs, nil))

			rec := httptest.NewRecorder()
			handleServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), logger, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var response dto.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", response.Code, tt.wantCode)
			}

			internal := tt.wantStatus == http.StatusInternalServerError
			if internal != strings.Contains(logs.String(), "internal_error") {
				t.Errorf("internal errors must be logged, others must not; logs: %s", logs.String())
			}
			if strings.Contains(response.Error, "conn reset") {
				t.Error("storage detail leaked to client")
			}
		})
	}
}

func TestHandleServiceError_ValidationDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	err := fmt.Errorf("create: %w", &service.ValidationError{Fields: map[string]string{"tags[0]": "must be at most 50 characters"}})
	handleServiceError(rec, httptest.NewRequest(http.MethodPost, "/", nil), slog.New(slog.DiscardHandler), err)

	var response dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Details["tags[0]"] != "must be at most 50 characters" {
		t.Errorf("details = %v", response.Details)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		limit      int64
		wantOK     bool
		wantStatus int
	}{
		{"valid", `{"title":"t"}`, 1 << 10, true, 0},
		{"empty body", ``, 1 << 10, false, http.StatusBadRequest},
		{"malformed", `{"title":`, 1 << 10, false, http.StatusBadRequest},
		{"wrong type", `{"title":1}`, 1 << 10, false, http.StatusBadRequest},
		{"too large", `{"title":"` + strings.Repeat("a", 64) + `"}`, 16, false, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Body = http.MaxBytesReader(rec, req.Body, tt.limit)

			var dst dto.PostRequest
			ok := decodeJSON(rec, req, &dst)

			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok && rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
