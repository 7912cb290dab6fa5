package shared

import (
	"net/http"

	"hrims/internal/domain/role"
	"hrims/internal/transport/http/api"
	"hrims/internal/transport/http/middleware"
)

// Session returns the caller's resolved session, writing a 401 when the
// route was mounted without RequireAuth.
func Session(w http.ResponseWriter, r *http.Request) (role.SessionState, bool) {
	state, ok := middleware.GetSession(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return role.SessionState{}, false
	}
	return state, true
}
