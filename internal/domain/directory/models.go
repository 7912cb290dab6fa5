package directory

import "strings"

// Employee is the backend's identity record. Level fields are pointers because
// a stale cached copy may simply not carry them.
type Employee struct {
	ID                string `json:"id"`
	AuthID            string `json:"auth_id,omitempty"`
	Email             string `json:"email"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	DepartmentID      string `json:"departmentId"`
	ProgramID         string `json:"programId"`
	OfficeID          string `json:"officeId,omitempty"`
	PositionTitle     string `json:"position_title"`
	AcademicRoleLevel *int   `json:"academic_role_level,omitempty"`
	RoleLevel         *int   `json:"role_level,omitempty"`
	IsHR              bool   `json:"isHR"`
}

func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}
