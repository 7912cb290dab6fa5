package leave

import (
	"strings"

	"hrims/internal/domain/role"
)

// Actor is the caller as the workflow sees it, built from a SessionState.
type Actor struct {
	UID          string
	EmployeeID   string
	Name         string
	Email        string
	DepartmentID string
	ProgramID    string
	Role         role.Role
}

func ActorFromSession(s role.SessionState) Actor {
	a := Actor{
		UID:   s.Identity.UID,
		Name:  s.Identity.DisplayName,
		Email: s.Identity.Email,
		Role:  s.Role,
	}
	if s.Employee != nil {
		a.EmployeeID = s.Employee.ID
		a.DepartmentID = s.Employee.DepartmentID
		a.ProgramID = s.Employee.ProgramID
		if name := s.Employee.FullName(); name != "" {
			a.Name = name
		}
		if a.Email == "" {
			a.Email = s.Employee.Email
		}
	}
	if a.Name == "" {
		a.Name = a.Email
	}
	return a
}

func (a Actor) IsHR() bool {
	return a.Role.IsHR()
}

// Ref is the actor as an employee reference, used when filing a request.
func (a Actor) Ref() EmployeeRef {
	first, last, _ := strings.Cut(a.Name, " ")
	return EmployeeRef{
		ID:           a.EmployeeID,
		FirstName:    first,
		LastName:     last,
		Email:        a.Email,
		DepartmentID: a.DepartmentID,
		ProgramID:    a.ProgramID,
	}
}

type TransitionInput struct {
	Notes  string
	Reason string
}

// Check decides whether actor may apply action to req. It never touches the
// backend; credit sufficiency is checked separately.
func Check(action Action, req LeaveRequest, actor Actor, in TransitionInput) error {
	switch action {
	case ActionPreApprove:
		if actor.IsHR() || !actor.Role.HasPermission(role.ApproveRequests) {
			return ErrForbidden
		}
		if isOwn(req, actor) {
			return ErrForbidden
		}
		if !InScope(actor, req.Employee) {
			return ErrOutOfScope
		}
		return requireStatus(req, StatusPending)

	case ActionFinalApprove:
		if !actor.IsHR() {
			return ErrForbidden
		}
		return requireStatus(req, StatusSupervisorApproved)

	case ActionBypassApprove:
		if !actor.IsHR() {
			return ErrForbidden
		}
		if err := requireStatus(req, StatusPending); err != nil {
			return err
		}
		if strings.TrimSpace(in.Reason) == "" {
			return invalid("bypass_reason", "is required")
		}
		return nil

	case ActionReject:
		if actor.IsHR() {
			if req.Status != StatusPending && req.Status != StatusSupervisorApproved {
				return ErrInvalidTransition
			}
		} else {
			if !actor.Role.HasPermission(role.ApproveRequests) || isOwn(req, actor) {
				return ErrForbidden
			}
			if !InScope(actor, req.Employee) {
				return ErrOutOfScope
			}
			if err := requireStatus(req, StatusPending); err != nil {
				return err
			}
		}
		if strings.TrimSpace(in.Reason) == "" {
			return invalid("rejection_reason", "is required")
		}
		return nil

	case ActionCancel:
		if !isOwn(req, actor) {
			return ErrForbidden
		}
		return requireStatus(req, StatusPending)
	}
	return ErrInvalidTransition
}

// AllowedActions lists what actor may do to req right now, ignoring the
// free-text reasons some actions require.
func AllowedActions(req LeaveRequest, actor Actor) []Action {
	sample := TransitionInput{Reason: "-"}
	var out []Action
	for _, action := range []Action{ActionPreApprove, ActionFinalApprove, ActionBypassApprove, ActionReject, ActionCancel} {
		if Check(action, req, actor, sample) == nil {
			out = append(out, action)
		}
	}
	return out
}

// CanView reports whether actor may read req.
func CanView(req LeaveRequest, actor Actor) bool {
	if isOwn(req, actor) || actor.IsHR() || actor.Role.HasPermission(role.ViewAllRequests) {
		return true
	}
	return actor.Role.HasPermission(role.ApproveRequests) && InScope(actor, req.Employee)
}

func isOwn(req LeaveRequest, actor Actor) bool {
	return actor.EmployeeID != "" && req.Employee.ID == actor.EmployeeID
}

func requireStatus(req LeaveRequest, want Status) error {
	if req.Status != want {
		return ErrInvalidTransition
	}
	return nil
}
