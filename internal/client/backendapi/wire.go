package backendapi

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"hrims/internal/domain/directory"
	"hrims/internal/domain/leave"
)

// flexString accepts ids the backend sends as either numbers or strings.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type wireEmployee struct {
	ID                flexString `json:"id"`
	AuthID            string     `json:"auth_id"`
	Email             string     `json:"email"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	DepartmentID      flexString `json:"departmentId"`
	ProgramID         flexString `json:"programId"`
	OfficeID          flexString `json:"officeId"`
	PositionTitle     string     `json:"position_title"`
	AcademicRoleLevel *int       `json:"academic_role_level"`
	RoleLevel         *int       `json:"role_level"`
	IsHR              bool       `json:"isHR"`
}

func (w wireEmployee) toDomain() directory.Employee {
	return directory.Employee{
		ID:                string(w.ID),
		AuthID:            w.AuthID,
		Email:             w.Email,
		FirstName:         w.FirstName,
		LastName:          w.LastName,
		DepartmentID:      string(w.DepartmentID),
		ProgramID:         string(w.ProgramID),
		OfficeID:          string(w.OfficeID),
		PositionTitle:     w.PositionTitle,
		AcademicRoleLevel: w.AcademicRoleLevel,
		RoleLevel:         w.RoleLevel,
		IsHR:              w.IsHR,
	}
}

type wireEmployeeRef struct {
	ID           flexString `json:"id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	DepartmentID flexString `json:"departmentId"`
	ProgramID    flexString `json:"programId"`
}

type wireRequest struct {
	ID                      flexString      `json:"id"`
	Employee                wireEmployeeRef `json:"employee"`
	LeaveType               string          `json:"leave_type"`
	StartDate               string          `json:"start_date"`
	EndDate                 string          `json:"end_date"`
	DaysRequested           int             `json:"days_requested"`
	Reason                  string          `json:"reason"`
	Status                  string          `json:"status"`
	SupervisorApprovedBy    string          `json:"supervisor_approved_by"`
	SupervisorApprovalDate  string          `json:"supervisor_approval_date"`
	SupervisorApprovalNotes string          `json:"supervisor_approval_notes"`
	ApprovedBy              string          `json:"approved_by"`
	ApprovalDate            string          `json:"approval_date"`
	ApprovalNotes           string          `json:"approval_notes"`
	BypassReason            string          `json:"bypass_reason"`
	RejectedBy              string          `json:"rejected_by"`
	RejectionReason         string          `json:"rejection_reason"`
	CreatedAt               string          `json:"created_at"`
}

func (w wireRequest) toDomain() leave.LeaveRequest {
	start, _ := parseTime(w.StartDate)
	end, _ := parseTime(w.EndDate)
	created, _ := parseTime(w.CreatedAt)
	return leave.LeaveRequest{
		ID: string(w.ID),
		Employee: leave.EmployeeRef{
			ID:           string(w.Employee.ID),
			FirstName:    w.Employee.FirstName,
			LastName:     w.Employee.LastName,
			Email:        w.Employee.Email,
			DepartmentID: string(w.Employee.DepartmentID),
			ProgramID:    string(w.Employee.ProgramID),
		},
		LeaveType:               w.LeaveType,
		StartDate:               start,
		EndDate:                 end,
		DaysRequested:           w.DaysRequested,
		Reason:                  w.Reason,
		Status:                  leave.Status(w.Status),
		SupervisorApprovedBy:    w.SupervisorApprovedBy,
		SupervisorApprovalDate:  optionalTime(w.SupervisorApprovalDate),
		SupervisorApprovalNotes: w.SupervisorApprovalNotes,
		ApprovedBy:              w.ApprovedBy,
		ApprovalDate:            optionalTime(w.ApprovalDate),
		ApprovalNotes:           w.ApprovalNotes,
		BypassReason:            w.BypassReason,
		RejectedBy:              w.RejectedBy,
		RejectionReason:         w.RejectionReason,
		CreatedAt:               created,
	}
}

type wireCredit struct {
	ID           flexString `json:"id"`
	EmployeeID   flexString `json:"employee_id"`
	LeaveType    string     `json:"leave_type"`
	Year         int        `json:"year"`
	TotalCredits float64    `json:"total_credits"`
	UsedCredits  float64    `json:"used_credits"`
	UpdatedAt    string     `json:"updated_at"`
}

func (w wireCredit) toDomain() leave.LeaveCredit {
	updated, _ := parseTime(w.UpdatedAt)
	c := leave.LeaveCredit{
		ID:           string(w.ID),
		EmployeeID:   string(w.EmployeeID),
		LeaveType:    w.LeaveType,
		Year:         w.Year,
		TotalCredits: w.TotalCredits,
		UsedCredits:  w.UsedCredits,
		UpdatedAt:    updated,
	}
	// remaining_credits from the server is ignored; it is derived here.
	return c.Normalize()
}

type wireLeaveType struct {
	ID             flexString `json:"id"`
	Code           string     `json:"code"`
	Name           string     `json:"name"`
	DefaultCredits float64    `json:"default_credits"`
	CreatedAt      string     `json:"created_at"`
}

func (w wireLeaveType) toDomain() leave.LeaveType {
	created, _ := parseTime(w.CreatedAt)
	return leave.LeaveType{
		ID:             string(w.ID),
		Code:           w.Code,
		Name:           w.Name,
		DefaultCredits: w.DefaultCredits,
		CreatedAt:      created,
	}
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", time.DateOnly}

func parseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func optionalTime(value string) *time.Time {
	t, ok := parseTime(value)
	if !ok {
		return nil
	}
	return &t
}
