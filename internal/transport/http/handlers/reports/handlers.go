package reportshandler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"hrims/internal/domain/reports"
	"hrims/internal/domain/role"
	"hrims/internal/transport/http/api"
	"hrims/internal/transport/http/middleware"
	"hrims/internal/transport/http/shared"
)

type Handler struct {
	Service *reports.Service
	Log     zerolog.Logger
	now     func() time.Time
}

func NewHandler(service *reports.Service, log zerolog.Logger) *Handler {
	return &Handler{Service: service, Log: log, now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/dashboard", h.handleDashboard)
		r.With(middleware.RequirePermission(role.ViewReports)).Get("/leave-summary", h.handleLeaveSummary)
		r.With(middleware.RequirePermission(role.ViewReports)).Get("/leave-summary.pdf", h.handleLeaveSummaryPDF)
		r.With(middleware.RequireHR()).Get("/job-runs", h.handleJobRuns)
		r.With(middleware.RequireHR()).Get("/job-runs/{runID}", h.handleJobRun)
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	state, ok := shared.Session(w, r)
	if !ok {
		return
	}
	dashboard, err := h.Service.Dashboard(r.Context(), state)
	if err != nil {
		shared.WriteError(w, h.Log, err, requestID)
		return
	}
	api.Success(w, dashboard, requestID)
}

func (h *Handler) year(w http.ResponseWriter, r *http.Request) (int, bool) {
	year, ok := shared.ParseYear(r, h.now())
	if !ok {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "year", Reason: "must be a valid year"}})
	}
	return year, ok
}

func (h *Handler) handleLeaveSummary(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	state, ok := shared.Session(w, r)
	if !ok {
		return
	}
	year, ok := h.year(w, r)
	if !ok {
		return
	}
	summary, err := h.Service.LeaveSummary(r.Context(), state, year)
	if err != nil {
		shared.WriteError(w, h.Log, err, requestID)
		return
	}
	api.Success(w, summary, requestID)
}

func (h *Handler) handleLeaveSummaryPDF(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	state, ok := shared.Session(w, r)
	if !ok {
		return
	}
	year, ok := h.year(w, r)
	if !ok {
		return
	}
	pdf, err := h.Service.LeaveSummaryPDF(r.Context(), state, year)
	if err != nil {
		shared.WriteError(w, h.Log, err, requestID)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=leave-summary-%d.pdf", year))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	if _, err := w.Write(pdf); err != nil {
		h.Log.Warn().Err(err).Str("request_id", requestID).Msg("write pdf failed")
	}
}

func (h *Handler) handleJobRuns(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	state, ok := shared.Session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := reports.JobRunFilter{JobType: q.Get("jobType"), Status: q.Get("status")}

	v := shared.NewValidator()
	if raw := q.Get("startedFrom"); raw != "" {
		if from, ok := v.Date("startedFrom", raw); ok {
			filter.StartedFrom = &from
		}
	}
	if raw := q.Get("startedTo"); raw != "" {
		if to, ok := v.Date("startedTo", raw); ok {
			end := to.Add(24*time.Hour - time.Nanosecond)
			filter.StartedTo = &end
		}
	}
	if v.Reject(w, requestID) {
		return
	}

	page := shared.ParsePagination(r, 50, 200)
	runs, total, err := h.Service.JobRuns(r.Context(), state, filter, page.Limit, page.Offset)
	if err != nil {
		shared.WriteError(w, h.Log, err, requestID)
		return
	}
	api.Success(w, shared.NewPage(runs, total, page), requestID)
}

func (h *Handler) handleJobRun(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	state, ok := shared.Session(w, r)
	if !ok {
		return
	}
	run, err := h.Service.JobRun(r.Context(), state, chi.URLParam(r, "runID"))
	if err != nil {
		shared.WriteError(w, h.Log, err, requestID)
		return
	}
	api.Success(w, run, requestID)
}
