package middleware

import (
	"net/http"

	"github.com/inkpost/inkpost/internal/auth"
)

// RequireAuth rejects anonymous requests with 401 before the handler runs.
// Must be applied after Authenticate.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.PrincipalFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
