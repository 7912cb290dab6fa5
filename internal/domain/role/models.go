package role

import "fmt"

type Scope string

const (
	ScopeNone       Scope = "none"
	ScopeProgram    Scope = "program"
	ScopeDepartment Scope = "department"
	ScopeAll        Scope = "all"
)

type Permission int

const (
	ViewAllRequests Permission = iota
	ApproveRequests
	ManageLeaveCredits
	ManageLeavePolicies
	ViewReports
	ManageEmployees
)

// AllPermissions lists every permission in declaration order.
var AllPermissions = []Permission{
	ViewAllRequests,
	ApproveRequests,
	ManageLeaveCredits,
	ManageLeavePolicies,
	ViewReports,
	ManageEmployees,
}

func (p Permission) String() string {
	switch p {
	case ViewAllRequests:
		return "viewAllRequests"
	case ApproveRequests:
		return "approveRequests"
	case ManageLeaveCredits:
		return "manageLeaveCredits"
	case ManageLeavePolicies:
		return "manageLeavePolicies"
	case ViewReports:
		return "viewReports"
	case ManageEmployees:
		return "manageEmployees"
	}
	return fmt.Sprintf("Permission(%d)", int(p))
}

type Permissions struct {
	ViewAllRequests     bool `json:"viewAllRequests"`
	ApproveRequests     bool `json:"approveRequests"`
	ManageLeaveCredits  bool `json:"manageLeaveCredits"`
	ManageLeavePolicies bool `json:"manageLeavePolicies"`
	ViewReports         bool `json:"viewReports"`
	ManageEmployees     bool `json:"manageEmployees"`
}

func (p Permissions) Has(perm Permission) bool {
	switch perm {
	case ViewAllRequests:
		return p.ViewAllRequests
	case ApproveRequests:
		return p.ApproveRequests
	case ManageLeaveCredits:
		return p.ManageLeaveCredits
	case ManageLeavePolicies:
		return p.ManageLeavePolicies
	case ViewReports:
		return p.ViewReports
	case ManageEmployees:
		return p.ManageEmployees
	}
	return false
}

func allPermissions() Permissions {
	return Permissions{
		ViewAllRequests:     true,
		ApproveRequests:     true,
		ManageLeaveCredits:  true,
		ManageLeavePolicies: true,
		ViewReports:         true,
		ManageEmployees:     true,
	}
}

// Role is derived from employee data on every session refresh and replaced
// wholesale; nothing mutates a Role in place.
type Role struct {
	Level         int         `json:"level"`
	Title         string      `json:"title"`
	CanApprove    bool        `json:"canApprove"`
	ApprovalScope Scope       `json:"approvalScope"`
	Permissions   Permissions `json:"permissions"`
}

func (r Role) HasPermission(perm Permission) bool {
	return r.Permissions.Has(perm)
}

func (r Role) IsHR() bool {
	return r.Level == LevelHR
}
