package notificationshandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"hrims/internal/domain/notifications"
	"hrims/internal/transport/http/api"
	"hrims/internal/transport/http/middleware"
	"hrims/internal/transport/http/shared"
)

type Handler struct {
	Service *notifications.Service
	Log     zerolog.Logger
}

func NewHandler(service *notifications.Service, log zerolog.Logger) *Handler {
	return &Handler{Service: service, Log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/{notificationID}/read", h.handleMarkRead)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	state, ok := shared.Session(w, r)
	if !ok {
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	unreadOnly := r.URL.Query().Get("unread") == "true"

	items, total, err := h.Service.List(r.Context(), state.EmployeeID(), unreadOnly, page.Limit, page.Offset)
	if err != nil {
		shared.WriteError(w, h.Log, err, requestID)
		return
	}
	api.Success(w, shared.NewPage(items, total, page), requestID)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	state, ok := shared.Session(w, r)
	if !ok {
		return
	}
	if err := h.Service.MarkRead(r.Context(), state.EmployeeID(), chi.URLParam(r, "notificationID")); err != nil {
		shared.WriteError(w, h.Log, err, requestID)
		return
	}
	api.Success(w, map[string]string{"status": "read"}, requestID)
}
