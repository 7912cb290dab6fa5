package reports

import (
	"sort"
	"strings"

	"hrims/internal/domain/leave"
)

func CountByStatus(requests []leave.LeaveRequest) StatusCounts {
	counts := StatusCounts{}
	for _, status := range leave.AllStatuses {
		counts[status] = 0
	}
	for _, req := range requests {
		counts[req.Status]++
	}
	return counts
}

// Summarize folds requests into one row per employee and leave type, ordered
// by employee name then type. Cancelled and rejected requests are not counted.
func Summarize(requests []leave.LeaveRequest) []SummaryRow {
	type key struct{ employee, leaveType string }
	rows := map[key]*SummaryRow{}
	for _, req := range requests {
		if req.Status == leave.StatusCancelled || req.Status == leave.StatusRejected {
			continue
		}
		k := key{req.Employee.ID, req.LeaveType}
		row, ok := rows[k]
		if !ok {
			name := req.Employee.FullName()
			if name == "" {
				name = req.Employee.Email
			}
			row = &SummaryRow{EmployeeID: req.Employee.ID, EmployeeName: name, LeaveType: req.LeaveType}
			rows[k] = row
		}
		row.Requests++
		switch req.Status {
		case leave.StatusApproved:
			row.ApprovedDays += req.DaysRequested
		case leave.StatusPending, leave.StatusSupervisorApproved:
			row.PendingDays += req.DaysRequested
		}
	}

	out := make([]SummaryRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].EmployeeName), strings.ToLower(out[j].EmployeeName)
		if a != b {
			return a < b
		}
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].LeaveType < out[j].LeaveType
	})
	return out
}
