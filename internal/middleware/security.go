// Package middleware provides HTTP middleware for the Inkpost API.
package middleware

import (
	"net/http"
)

// SecurityConfig controls the response hardening applied by Security and
// the body limit applied by MaxBodySize.
type SecurityConfig struct {
	// IsDevelopment drops HSTS so plain-HTTP local runs keep working.
	IsDevelopment bool
	// MaxRequestBodySize caps signup, login and post payloads, in bytes.
	MaxRequestBodySize int64
}

// DefaultSecurityConfig returns the production settings: HSTS on, 1MB bodies.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxRequestBodySize: 1 << 20,
	}
}

// apiHeaders are set on every response. The API serves JSON only, so
// framing, embedding and browser features are all denied.
var apiHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "0"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=(), usb=()"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Cross-Origin-Resource-Policy", "same-origin"},
	// Post bodies and /auth/me responses must not land in shared caches.
	{"Cache-Control", "no-store"},
}

const hstsValue = "max-age=31536000; includeSubDomains; preload"

// Security sets the hardening headers on every response. HSTS is only sent
// outside development.
func Security(cfg SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range apiHeaders {
				h.Set(kv[0], kv[1])
			}
			if !cfg.IsDevelopment {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			h.Del("Server")

			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySize rejects requests whose declared Content-Length exceeds
// maxBytes with 413 PAYLOAD_TOO_LARGE. Bodies without a declared length are
// cut off at maxBytes while the handler decodes them.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength > maxBytes {
				writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
