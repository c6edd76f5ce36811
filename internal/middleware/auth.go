package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/model"
)

// TokenVerifier validates an access token and returns its principal.
type TokenVerifier interface {
	Verify(token string) (*model.Principal, error)
}

// RevocationChecker reports whether a token id has been revoked by logout.
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger      *slog.Logger
	Tokens      TokenVerifier
	Revocations RevocationChecker
}

// Authenticate resolves the bearer token, if any, into a principal on the
// request context. Requests without an Authorization header pass through
// anonymously; use RequireAuth on routes that need a user. A header that is
// present but malformed, expired, forged or revoked is rejected with 401.
func Authenticate(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(header)
			if !ok {
				cfg.logFailure(r, "malformed_header")
				writeAuthError(w)
				return
			}

			principal, err := cfg.Tokens.Verify(token)
			if err != nil {
				cfg.logFailure(r, "invalid_token")
				writeAuthError(w)
				return
			}

			if cfg.Revocations != nil {
				revoked, err := cfg.Revocations.IsTokenRevoked(r.Context(), principal.TokenID)
				if err != nil {
					// Fail closed: a logged-out token must not slip through
					// while the revocation store is unreachable.
					cfg.Logger.Error("revocation check failed",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					writeAuthError(w)
					return
				}
				if revoked {
					cfg.logFailure(r, "revoked_token")
					writeAuthError(w)
					return
				}
			}

			setLogUserID(r.Context(), principal.UserID)
			ctx := auth.ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (cfg AuthConfig) logFailure(r *http.Request, reason string) {
	cfg.Logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// bearerToken extracts the token from "Bearer <token>". The scheme is
// matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials")
}
