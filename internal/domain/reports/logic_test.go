package reports

import (
	"testing"

	"hrims/internal/domain/leave"
)

func TestCountByStatusHasEveryStatus(t *testing.T) {
	counts := CountByStatus([]leave.LeaveRequest{{Status: leave.StatusPending}, {Status: leave.StatusPending}})
	if len(counts) != len(leave.AllStatuses) {
		t.Fatalf("expected an entry per status, got %v", counts)
	}
	if counts[leave.StatusPending] != 2 || counts[leave.StatusRejected] != 0 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestSummarizeSkipsCancelledAndRejected(t *testing.T) {
	rows := Summarize([]leave.LeaveRequest{
		{Employee: leave.EmployeeRef{ID: "2", FirstName: "zed"}, LeaveType: "Sick Leave", Status: leave.StatusApproved, DaysRequested: 1},
		{Employee: leave.EmployeeRef{ID: "1", FirstName: "Amy"}, LeaveType: "Vacation Leave", Status: leave.StatusSupervisorApproved, DaysRequested: 3},
		{Employee: leave.EmployeeRef{ID: "1", FirstName: "Amy"}, LeaveType: "Sick Leave", Status: leave.StatusCancelled, DaysRequested: 9},
		{Employee: leave.EmployeeRef{ID: "1", FirstName: "Amy"}, LeaveType: "Sick Leave", Status: leave.StatusRejected, DaysRequested: 2},
		{Employee: leave.EmployeeRef{ID: "1", FirstName: "Amy"}, LeaveType: "Vacation Leave", Status: leave.StatusRejected, DaysRequested: 4},
	})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %+v", rows)
	}
	if rows[0].EmployeeName != "Amy" || rows[0].LeaveType != "Vacation Leave" || rows[0].Requests != 1 || rows[0].PendingDays != 3 {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[1].EmployeeName != "zed" || rows[1].ApprovedDays != 1 {
		t.Fatalf("unexpected order or totals: %+v", rows)
	}
}
