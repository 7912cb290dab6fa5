package leavehandler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"hrims/internal/domain/leave"
	"hrims/internal/domain/role"
	"hrims/internal/transport/http/api"
	"hrims/internal/transport/http/middleware"
	"hrims/internal/transport/http/shared"
)

type Handler struct {
	Service     *leave.Service
	Idempotency middleware.IdempotencyChecker
	Log         zerolog.Logger
	now         func() time.Time
}

func NewHandler(service *leave.Service, idempotency middleware.IdempotencyChecker, log zerolog.Logger) *Handler {
	return &Handler{Service: service, Idempotency: idempotency, Log: log, now: time.Now}
}

// RegisterRoutes mounts the leave routes. The router must already require
// an authenticated session.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/leave", func(r chi.Router) {
		r.Get("/types", h.handleListTypes)
		r.With(middleware.RequirePermission(role.ManageLeavePolicies)).Post("/types", h.handleCreateType)
		r.Get("/credits", h.handleListCredits)
		r.With(middleware.RequirePermission(role.ManageLeaveCredits)).Post("/credits/adjust", h.handleAdjustCredits)

		r.Get("/requests", h.handleListRequests)
		r.Get("/requests/mine", h.handleMyRequests)
		r.With(middleware.RequirePermission(role.ApproveRequests)).Get("/requests/pending", h.handlePending)
		r.With(middleware.RequireHR()).Get("/requests/pending-hr", h.handlePendingHR)
		r.With(middleware.Idempotent(h.Idempotency, h.Log)).Post("/requests", h.handleCreateRequest)
		r.Get("/requests/{requestID}", h.handleGetRequest)
		r.With(middleware.RequirePermission(role.ApproveRequests)).Post("/requests/{requestID}/pre-approve", h.handlePreApprove)
		r.With(middleware.RequireHR()).Post("/requests/{requestID}/approve", h.handleFinalApprove)
		r.With(middleware.RequireHR()).Post("/requests/{requestID}/bypass", h.handleBypass)
		r.With(middleware.RequirePermission(role.ApproveRequests)).Post("/requests/{requestID}/reject", h.handleReject)
		r.Post("/requests/{requestID}/cancel", h.handleCancel)
	})
}

// requestView is a request plus what the caller may do with it next.
type requestView struct {
	leave.LeaveRequest
	AllowedActions []leave.Action `json:"allowed_actions"`
}

func (h *Handler) view(state role.SessionState, req leave.LeaveRequest) requestView {
	actions := h.Service.AllowedActions(state, req)
	if actions == nil {
		actions = []leave.Action{}
	}
	return requestView{LeaveRequest: req, AllowedActions: actions}
}

func (h *Handler) views(state role.SessionState, reqs []leave.LeaveRequest) []requestView {
	out := make([]requestView, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, h.view(state, req))
	}
	return out
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	shared.WriteError(w, h.Log, err, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Service.LeaveTypes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if types == nil {
		types = []leave.LeaveType{}
	}
	api.Success(w, types, middleware.GetRequestID(r.Context()))
}

type leaveTypePayload struct {
	Code           string  `json:"code" validate:"required,max=20"`
	Name           string  `json:"name" validate:"required,max=100"`
	DefaultCredits float64 `json:"default_credits" validate:"gte=0"`
}

func (h *Handler) handleCreateType(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	state, ok := shared.Session(w, r)
	if !ok {
		return
	}
	var payload leaveTypePayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, requestID) {
		return
	}

	created, err := h.Service.CreateLeaveType(r.Context(), state, leave.LeaveType{
		Code:           payload.Code,
		Name:           payload.Name,
		DefaultCredits: payload.DefaultCredits,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Created(w, created, requestID)
}

func (h *Handler) handleListCredits(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	state, ok := shared.Session(w, r)
	if !ok {
		return
	}
	year, ok := shared.ParseYear(r, h.now())
	if !ok {
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "year", Reason: "must be a valid year"}})
		return
	}
	credits, err := h.Service.Credits(r.Context(), state, strings.TrimSpace(r.URL.Query().Get("employeeId")), year)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if credits == nil {
		credits = []leave.LeaveCredit{}
	}
	api.Success(w, credits, requestID)
}

type adjustCreditsPayload struct {
	EmployeeID   string  `json:"employee_id" validate:"required"`
	LeaveType    string  `json:"leave_type" validate:"required,max=100"`
	Year         int     `json:"year" validate:"omitempty,min=1900,max=9999"`
	TotalCredits float64 `json:"total_credits" validate:"gte=0"`
	Reason       string  `json:"reason" validate:"max=500"`
}

func (h *Handler) handleAdjustCredits(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	state, ok := shared.Session(w, r)
	if !ok {
		return
	}
	var payload adjustCreditsPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, requestID) {
		return
	}

	credit, err := h.Service.AdjustCredits(r.Context(), state, leave.CreditAdjustment{
		EmployeeID:   payload.EmployeeID,
		LeaveType:    payload.LeaveType,
		Year:         payload.Year,
		TotalCredits: payload.TotalCredits,
		Reason:       strings.TrimSpace(payload.Reason),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, credit, requestID)
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	state, ok := shared.Session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page := shared.ParsePagination(r, 50, 200)
	filter := leave.RequestFilter{
		Status:     leave.Status(strings.TrimSpace(q.Get("status"))),
		EmployeeID: strings.TrimSpace(q.Get("employeeId")),
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	if q.Get("year") != "" {
		year, ok := shared.ParseYear(r, h.now())
		if !ok {
			shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "year", Reason: "must be a valid year"}})
			return
		}
		filter.Year = year
	}

	result, err := h.Service.ListRequests(r.Context(), state, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, shared.NewPage(h.views(state, result.Requests), result.Total, page), requestID)
}

func (h *Handler) handleMyRequests(w http.ResponseWriter, r *http.Request) {
	state, ok := shared.Session(w, r)
	if !ok {
		return
	}
	reqs, err := h.Service.MyRequests(r.Context(), state)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, h.views(state, reqs), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	state, ok := shared.Session(w, r)
	if !ok {
		return
	}
	reqs, err := h.Service.PendingForApproval(r.Context(), state)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, h.views(state, reqs), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePendingHR(w http.ResponseWriter, r *http.Request) {
	state, ok := shared.Session(w, r)
	if !ok {
		return
	}
	reqs, err := h.Service.PendingForHRApproval(r.Context(), state)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, h.views(state, reqs), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	state, ok := shared.Session(w, r)
	if !ok {
		return
	}
	req, err := h.Service.GetRequest(r.Context(), state, chi.URLParam(r, "requestID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, h.view(state, req), middleware.GetRequestID(r.Context()))
}

type createRequestPayload struct {
	LeaveType string `json:"leave_type" validate:"required,max=100"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
	Reason    string `json:"reason" validate:"max=1000"`
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	state, ok := shared.Session(w, r)
	if !ok {
		return
	}
	var payload createRequestPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	var start, end time.Time
	if payload.StartDate != "" {
		start, _ = v.Date("start_date", payload.StartDate)
	}
	if payload.EndDate != "" {
		end, _ = v.Date("end_date", payload.EndDate)
	}
	v.DateOrder("start_date", start, "end_date", end)
	if v.Reject(w, requestID) {
		return
	}

	created, err := h.Service.CreateRequest(r.Context(), state, leave.CreateInput{
		LeaveType: payload.LeaveType,
		StartDate: start,
		EndDate:   end,
		Reason:    payload.Reason,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Created(w, h.view(state, created), requestID)
}

// transitionPayload carries every optional transition field; each action
// reads only its own.
type transitionPayload struct {
	Notes           string `json:"notes" validate:"max=1000"`
	BypassReason    string `json:"bypass_reason" validate:"max=1000"`
	RejectionReason string `json:"rejection_reason" validate:"max=1000"`
}

type transitionFunc func(r *http.Request, state role.SessionState, id string, p transitionPayload) (leave.LeaveRequest, error)

func (h *Handler) transition(run transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetRequestID(r.Context())
		state, ok := shared.Session(w, r)
		if !ok {
			return
		}
		var payload transitionPayload
		if !shared.DecodeOptionalJSON(w, r, &payload, requestID) {
			return
		}
		v := shared.NewValidator()
		v.Struct(payload)
		if v.Reject(w, requestID) {
			return
		}
		updated, err := run(r, state, chi.URLParam(r, "requestID"), payload)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		api.Success(w, h.view(state, updated), requestID)
	}
}

func (h *Handler) handlePreApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(func(r *http.Request, state role.SessionState, id string, p transitionPayload) (leave.LeaveRequest, error) {
		return h.Service.PreApprove(r.Context(), state, id, p.Notes)
	})(w, r)
}

func (h *Handler) handleFinalApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(func(r *http.Request, state role.SessionState, id string, p transitionPayload) (leave.LeaveRequest, error) {
		return h.Service.FinalApprove(r.Context(), state, id, p.Notes)
	})(w, r)
}

func (h *Handler) handleBypass(w http.ResponseWriter, r *http.Request) {
	h.transition(func(r *http.Request, state role.SessionState, id string, p transitionPayload) (leave.LeaveRequest, error) {
		return h.Service.BypassApprove(r.Context(), state, id, p.BypassReason)
	})(w, r)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.transition(func(r *http.Request, state role.SessionState, id string, p transitionPayload) (leave.LeaveRequest, error) {
		return h.Service.Reject(r.Context(), state, id, p.RejectionReason)
	})(w, r)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(func(r *http.Request, state role.SessionState, id string, _ transitionPayload) (leave.LeaveRequest, error) {
		return h.Service.Cancel(r.Context(), state, id)
	})(w, r)
}
