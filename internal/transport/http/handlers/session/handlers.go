package sessionhandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"hrims/internal/domain/role"
	"hrims/internal/transport/http/api"
	"hrims/internal/transport/http/middleware"
	"hrims/internal/transport/http/shared"
)

// Refresher is satisfied by *role.SessionManager.
type Refresher interface {
	Refresh(ctx context.Context, identity role.Identity) role.SessionState
	Invalidate(uid string)
}

type Handler struct {
	Sessions Refresher
	Log      zerolog.Logger
}

func NewHandler(sessions Refresher, log zerolog.Logger) *Handler {
	return &Handler{Sessions: sessions, Log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.handleCurrent)
		r.Post("/refresh", h.handleRefresh)
	})
}

type sessionView struct {
	role.SessionState
	Permissions []string `json:"grantedPermissions"`
}

func viewOf(state role.SessionState) sessionView {
	granted := make([]string, 0, len(role.AllPermissions))
	for _, perm := range role.AllPermissions {
		if state.Role.HasPermission(perm) {
			granted = append(granted, perm.String())
		}
	}
	return sessionView{SessionState: state, Permissions: granted}
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	state, ok := shared.Session(w, r)
	if !ok {
		return
	}
	api.Success(w, viewOf(state), middleware.GetRequestID(r.Context()))
}

// handleRefresh drops the cached role and resolves it again from the
// directory, e.g. after HR changed the caller's position.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	state, ok := shared.Session(w, r)
	if !ok {
		return
	}
	h.Sessions.Invalidate(state.Identity.UID)
	fresh := h.Sessions.Refresh(r.Context(), state.Identity)
	if fresh.Degraded {
		h.Log.Warn().Str("uid", state.Identity.UID).Str("request_id", requestID).Msg("session refresh fell back to default role")
	}
	api.Success(w, viewOf(fresh), requestID)
}
