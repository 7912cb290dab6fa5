package leave

import "hrims/internal/domain/role"

// InScope reports whether requester falls inside the actor's approval scope.
// Empty affiliations never match.
func InScope(actor Actor, requester EmployeeRef) bool {
	switch actor.Role.ApprovalScope {
	case role.ScopeAll:
		return true
	case role.ScopeDepartment:
		return sameNonEmpty(actor.DepartmentID, requester.DepartmentID)
	case role.ScopeProgram:
		if actor.ProgramID == "" {
			return sameNonEmpty(actor.DepartmentID, requester.DepartmentID)
		}
		return sameNonEmpty(actor.ProgramID, requester.ProgramID)
	}
	return false
}

// FilterByScope keeps the requests whose employee is in the actor's scope.
func FilterByScope(actor Actor, requests []LeaveRequest) []LeaveRequest {
	out := make([]LeaveRequest, 0, len(requests))
	for _, req := range requests {
		if InScope(actor, req.Employee) {
			out = append(out, req)
		}
	}
	return out
}

func sameNonEmpty(a, b string) bool {
	return a != "" && a == b
}
