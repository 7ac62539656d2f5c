package middleware

import (
	"net/http"

	"github.com/GustheTrader/Build-flow/internal/domain/user"
)

// RequireRole restricts a route to callers holding one of roles.
func RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	allowed := make(map[user.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				writeAuthError(w, http.StatusUnauthorized, "authorization required")
				return
			}
			if !allowed[p.Role] {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","code":"forbidden"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
