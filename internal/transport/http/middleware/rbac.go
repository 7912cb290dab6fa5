package middleware

import (
	"net/http"

	"hrims/internal/domain/role"
	"hrims/internal/transport/http/api"
)

// RequirePermission checks the resolved role. It must run after RequireAuth.
func RequirePermission(permission role.Permission) func(http.Handler) http.Handler {
	return requireRole(func(r role.Role) bool { return r.HasPermission(permission) })
}

func RequireHR() func(http.Handler) http.Handler {
	return requireRole(role.Role.IsHR)
}

func requireRole(allowed func(role.Role) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state, ok := GetSession(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
				return
			}
			if !allowed(state.Role) {
				api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
