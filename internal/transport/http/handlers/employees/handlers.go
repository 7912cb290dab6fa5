package employeeshandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"hrims/internal/domain/directory"
	"hrims/internal/domain/leave"
	"hrims/internal/domain/role"
	"hrims/internal/transport/http/api"
	"hrims/internal/transport/http/middleware"
	"hrims/internal/transport/http/shared"
)

type Handler struct {
	Directory directory.Source
	Log       zerolog.Logger
}

func NewHandler(source directory.Source, log zerolog.Logger) *Handler {
	return &Handler{Directory: source, Log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/employees/{employeeID}", h.handleGet)
}

// canSee lets callers read their own record, HR-like managers read anyone,
// and approvers read employees inside their approval scope.
func canSee(state role.SessionState, emp directory.Employee) bool {
	if state.EmployeeID() != "" && state.EmployeeID() == emp.ID {
		return true
	}
	if state.Role.HasPermission(role.ManageEmployees) || state.Role.HasPermission(role.ViewAllRequests) {
		return true
	}
	if !state.Role.HasPermission(role.ApproveRequests) {
		return false
	}
	ref := leave.EmployeeRef{ID: emp.ID, DepartmentID: emp.DepartmentID, ProgramID: emp.ProgramID}
	return leave.InScope(leave.ActorFromSession(state), ref)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	state, ok := shared.Session(w, r)
	if !ok {
		return
	}
	emp, err := h.Directory.EmployeeByID(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		shared.WriteError(w, h.Log, err, requestID)
		return
	}
	if !canSee(state, emp) {
		// Out-of-scope records read as missing.
		api.Fail(w, http.StatusNotFound, "not_found", "resource not found", requestID)
		return
	}
	resolved := role.ResolveRole(&emp)
	directory.FilterFields(&emp, directory.Viewer{
		Self:    state.EmployeeID() == emp.ID,
		Manager: state.Role.HasPermission(role.ManageEmployees),
	})
	api.Success(w, map[string]any{
		"employee": emp,
		"role":     resolved,
	}, requestID)
}
