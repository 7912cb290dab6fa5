package leave

import (
	"strings"
	"time"
)

type LeaveType struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	DefaultCredits float64   `json:"default_credits"`
	CreatedAt      time.Time `json:"created_at"`
}

// EmployeeRef is the slice of the employee record a request carries.
type EmployeeRef struct {
	ID           string `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	DepartmentID string `json:"departmentId"`
	ProgramID    string `json:"programId"`
}

func (e EmployeeRef) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

type LeaveRequest struct {
	ID                      string      `json:"id"`
	Employee                EmployeeRef `json:"employee"`
	LeaveType               string      `json:"leave_type"`
	StartDate               time.Time   `json:"start_date"`
	EndDate                 time.Time   `json:"end_date"`
	DaysRequested           int         `json:"days_requested"`
	Reason                  string      `json:"reason"`
	Status                  Status      `json:"status"`
	SupervisorApprovedBy    string      `json:"supervisor_approved_by,omitempty"`
	SupervisorApprovalDate  *time.Time  `json:"supervisor_approval_date,omitempty"`
	SupervisorApprovalNotes string      `json:"supervisor_approval_notes,omitempty"`
	ApprovedBy              string      `json:"approved_by,omitempty"`
	ApprovalDate            *time.Time  `json:"approval_date,omitempty"`
	ApprovalNotes           string      `json:"approval_notes,omitempty"`
	BypassReason            string      `json:"bypass_reason,omitempty"`
	RejectedBy              string      `json:"rejected_by,omitempty"`
	RejectionReason         string      `json:"rejection_reason,omitempty"`
	CreatedAt               time.Time   `json:"created_at"`
}

// Year is the calendar year whose credits the request draws on.
func (r LeaveRequest) Year() int {
	return r.StartDate.Year()
}

type LeaveCredit struct {
	ID               string    `json:"id"`
	EmployeeID       string    `json:"employee_id"`
	LeaveType        string    `json:"leave_type"`
	Year             int       `json:"year"`
	TotalCredits     float64   `json:"total_credits"`
	UsedCredits      float64   `json:"used_credits"`
	RemainingCredits float64   `json:"remaining_credits"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Normalize recomputes RemainingCredits from total and used.
func (c LeaveCredit) Normalize() LeaveCredit {
	c.RemainingCredits = c.TotalCredits - c.UsedCredits
	if c.RemainingCredits < 0 {
		c.RemainingCredits = 0
	}
	return c
}

func (c LeaveCredit) Covers(days int) bool {
	return days > 0 && float64(days) <= c.TotalCredits-c.UsedCredits
}

// Deduct moves days from remaining to used. It never lets remaining go
// below zero.
func (c *LeaveCredit) Deduct(days int) error {
	if days <= 0 {
		return &ValidationError{Field: "days_requested", Message: "must be positive"}
	}
	if !c.Covers(days) {
		return ErrInsufficientCredits
	}
	c.UsedCredits += float64(days)
	c.RemainingCredits = c.TotalCredits - c.UsedCredits
	return nil
}

// Restore gives back days previously deducted.
func (c *LeaveCredit) Restore(days int) {
	c.UsedCredits -= float64(days)
	if c.UsedCredits < 0 {
		c.UsedCredits = 0
	}
	c.RemainingCredits = c.TotalCredits - c.UsedCredits
}

type NewRequest struct {
	Employee      EmployeeRef
	LeaveType     string
	StartDate     time.Time
	EndDate       time.Time
	DaysRequested int
	Reason        string
}

// Transition is a validated state change handed to the backend. From is the
// status the engine checked against; a backend must refuse the write when
// the stored status no longer matches.
type Transition struct {
	RequestID  string
	Action     Action
	From       Status
	To         Status
	ActorID    string
	ActorName  string
	ActorEmail string
	Notes      string
	At         time.Time
	// DeductDays is non-zero for transitions that consume credits.
	DeductDays int
	LeaveType  string
	EmployeeID string
	Year       int
}

type CreditAdjustment struct {
	EmployeeID   string
	LeaveType    string
	Year         int
	TotalCredits float64
	AdjustedBy   string
	Reason       string
}

type RequestFilter struct {
	Status       Status
	EmployeeID   string
	DepartmentID string
	Year         int
	Limit        int
	Offset       int
}

type RequestListResult struct {
	Requests []LeaveRequest
	Total    int
}
