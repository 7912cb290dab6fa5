package reports

import (
	"time"

	"hrims/internal/domain/leave"
)

// Dashboard is the landing summary for the signed-in employee. Queue counts
// are only filled for roles that own that queue.
type Dashboard struct {
	RoleTitle          string              `json:"roleTitle"`
	RoleLevel          int                 `json:"roleLevel"`
	Degraded           bool                `json:"degraded"`
	MyRequests         StatusCounts        `json:"myRequests"`
	Credits            []leave.LeaveCredit `json:"credits"`
	PendingMyApproval  *int                `json:"pendingMyApproval,omitempty"`
	AwaitingHRApproval *int                `json:"awaitingHrApproval,omitempty"`
	PendingBypass      *int                `json:"pendingBypass,omitempty"`
}

type StatusCounts map[leave.Status]int

func (c StatusCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// SummaryRow aggregates one employee's requests of one leave type.
type SummaryRow struct {
	EmployeeID   string `json:"employeeId"`
	EmployeeName string `json:"employeeName"`
	LeaveType    string `json:"leaveType"`
	Requests     int    `json:"requests"`
	ApprovedDays int    `json:"approvedDays"`
	PendingDays  int    `json:"pendingDays"`
}

type LeaveSummary struct {
	Year        int          `json:"year"`
	Scope       string       `json:"scope"`
	GeneratedAt time.Time    `json:"generatedAt"`
	GeneratedBy string       `json:"generatedBy"`
	Rows        []SummaryRow `json:"rows"`
}

type JobRun struct {
	ID          string         `json:"id"`
	JobType     string         `json:"jobType"`
	Status      string         `json:"status"`
	Details     map[string]any `json:"details"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

type JobRunFilter struct {
	JobType     string
	Status      string
	StartedFrom *time.Time
	StartedTo   *time.Time
}
