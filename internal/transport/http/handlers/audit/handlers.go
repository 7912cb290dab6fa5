package audithandler

import (
	"context"
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"hrims/internal/domain/audit"
	"hrims/internal/transport/http/api"
	"hrims/internal/transport/http/middleware"
	"hrims/internal/transport/http/shared"
)

// Reader is satisfied by *audit.Store.
type Reader interface {
	Count(ctx context.Context, filter audit.Filter) (int, error)
	List(ctx context.Context, filter audit.Filter, limit, offset int) ([]audit.Event, error)
}

type Handler struct {
	Reader Reader
	Log    zerolog.Logger
}

// NewHandler takes a nil reader when audit events only go to the log; the
// routes then return empty pages.
func NewHandler(reader Reader, log zerolog.Logger) *Handler {
	return &Handler{Reader: reader, Log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Use(middleware.RequireHR())
		r.Get("/", h.handleListEvents)
		r.Get("/export", h.handleExportEvents)
	})
}

func filterFrom(r *http.Request) audit.Filter {
	q := r.URL.Query()
	return audit.Filter{Action: q.Get("action"), Module: q.Get("module"), UserID: q.Get("userId")}
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 100, 500)
	if h.Reader == nil {
		api.Success(w, shared.NewPage([]audit.Event{}, 0, page), requestID)
		return
	}

	filter := filterFrom(r)
	total, err := h.Reader.Count(r.Context(), filter)
	if err != nil {
		h.Log.Warn().Err(err).Str("request_id", requestID).Msg("audit count failed")
	}
	events, err := h.Reader.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list audit events", requestID)
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, shared.NewPage(events, total, page), requestID)
}

const exportLimit = 10000

func (h *Handler) handleExportEvents(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var events []audit.Event
	if h.Reader != nil {
		var err error
		events, err = h.Reader.List(r.Context(), filterFrom(r), exportLimit, 0)
		if err != nil {
			api.Fail(w, http.StatusInternalServerError, "audit_export_failed", "failed to export audit events", requestID)
			return
		}
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.csv")
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "timestamp", "user_id", "username", "action", "module", "details", "ip_address", "status"}); err != nil {
		h.Log.Warn().Err(err).Msg("audit export header failed")
	}
	for _, evt := range events {
		row := []string{evt.ID, evt.Timestamp.UTC().Format(time.RFC3339), evt.UserID, evt.Username, evt.Action, evt.Module, evt.Details, evt.IPAddress, evt.Status}
		if err := writer.Write(row); err != nil {
			h.Log.Warn().Err(err).Msg("audit export row failed")
			break
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		h.Log.Warn().Err(err).Msg("audit export flush failed")
	}
}
