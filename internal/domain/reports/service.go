package reports

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"hrims/internal/domain/leave"
	"hrims/internal/domain/role"
)

// LeaveQueries is the part of the leave service the dashboard reads.
type LeaveQueries interface {
	MyRequests(ctx context.Context, state role.SessionState) ([]leave.LeaveRequest, error)
	PendingForApproval(ctx context.Context, state role.SessionState) ([]leave.LeaveRequest, error)
	PendingForHRApproval(ctx context.Context, state role.SessionState) ([]leave.LeaveRequest, error)
	Credits(ctx context.Context, state role.SessionState, employeeID string, year int) ([]leave.LeaveCredit, error)
}

type RequestLister interface {
	ListRequests(ctx context.Context, actor leave.Actor, filter leave.RequestFilter) (leave.RequestListResult, error)
}

type JobRunStore interface {
	ListJobRuns(ctx context.Context, filter JobRunFilter, limit, offset int) ([]JobRun, error)
	CountJobRuns(ctx context.Context, filter JobRunFilter) (int, error)
	JobRunByID(ctx context.Context, runID string) (JobRun, error)
}

const (
	summaryPageSize = 500
	summaryMaxRows  = 20000
)

type Service struct {
	leave  LeaveQueries
	lister RequestLister
	runs   JobRunStore
	log    zerolog.Logger
	now    func() time.Time
}

// NewService wires the report queries. runs may be nil when there is no
// database; JobRuns then returns an empty page.
func NewService(leaveQueries LeaveQueries, lister RequestLister, runs JobRunStore, log zerolog.Logger) *Service {
	return &Service{leave: leaveQueries, lister: lister, runs: runs, log: log, now: time.Now}
}

func (s *Service) Dashboard(ctx context.Context, state role.SessionState) (Dashboard, error) {
	d := Dashboard{
		RoleTitle: state.Role.Title,
		RoleLevel: state.Role.Level,
		Degraded:  state.Degraded,
	}

	mine, err := s.leave.MyRequests(ctx, state)
	if err != nil {
		return Dashboard{}, err
	}
	d.MyRequests = CountByStatus(mine)

	credits, err := s.leave.Credits(ctx, state, "", s.now().Year())
	if err != nil {
		return Dashboard{}, err
	}
	d.Credits = credits

	switch {
	case state.IsHR():
		queue, err := s.leave.PendingForHRApproval(ctx, state)
		if err != nil {
			return Dashboard{}, err
		}
		counts := CountByStatus(queue)
		awaiting := counts[leave.StatusSupervisorApproved]
		bypass := counts[leave.StatusPending]
		d.AwaitingHRApproval = &awaiting
		d.PendingBypass = &bypass
	case state.Role.HasPermission(role.ApproveRequests):
		queue, err := s.leave.PendingForApproval(ctx, state)
		if err != nil {
			return Dashboard{}, err
		}
		n := len(queue)
		d.PendingMyApproval = &n
	}
	return d, nil
}

// LeaveSummary aggregates the year's requests inside the caller's approval
// scope. Requires viewReports.
func (s *Service) LeaveSummary(ctx context.Context, state role.SessionState, year int) (LeaveSummary, error) {
	if !state.Role.HasPermission(role.ViewReports) {
		return LeaveSummary{}, leave.ErrForbidden
	}
	if year <= 0 {
		year = s.now().Year()
	}
	actor := leave.ActorFromSession(state)

	filter := leave.RequestFilter{Year: year, Limit: summaryPageSize}
	if actor.Role.ApprovalScope == role.ScopeDepartment {
		if actor.DepartmentID == "" {
			return s.summary(state, year, nil), nil
		}
		filter.DepartmentID = actor.DepartmentID
	}

	var all []leave.LeaveRequest
	for {
		page, err := s.lister.ListRequests(ctx, actor, filter)
		if err != nil {
			return LeaveSummary{}, err
		}
		all = append(all, page.Requests...)
		filter.Offset += len(page.Requests)
		if len(page.Requests) < filter.Limit || filter.Offset >= page.Total {
			break
		}
		if len(all) >= summaryMaxRows {
			s.log.Warn().Int("year", year).Int("rows", len(all)).Msg("leave summary truncated")
			break
		}
	}
	return s.summary(state, year, leave.FilterByScope(actor, all)), nil
}

func (s *Service) summary(state role.SessionState, year int, requests []leave.LeaveRequest) LeaveSummary {
	by := state.Identity.DisplayName
	if state.Employee != nil && state.Employee.FullName() != "" {
		by = state.Employee.FullName()
	}
	return LeaveSummary{
		Year:        year,
		Scope:       string(state.Role.ApprovalScope),
		GeneratedAt: s.now().UTC(),
		GeneratedBy: by,
		Rows:        Summarize(requests),
	}
}

func (s *Service) LeaveSummaryPDF(ctx context.Context, state role.SessionState, year int) ([]byte, error) {
	summary, err := s.LeaveSummary(ctx, state, year)
	if err != nil {
		return nil, err
	}
	return RenderSummaryPDF(summary)
}

// JobRuns lists background job history for HR.
func (s *Service) JobRuns(ctx context.Context, state role.SessionState, filter JobRunFilter, limit, offset int) ([]JobRun, int, error) {
	if !state.IsHR() {
		return nil, 0, leave.ErrForbidden
	}
	if s.runs == nil {
		return []JobRun{}, 0, nil
	}
	runs, err := s.runs.ListJobRuns(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.runs.CountJobRuns(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

func (s *Service) JobRun(ctx context.Context, state role.SessionState, runID string) (JobRun, error) {
	if !state.IsHR() {
		return JobRun{}, leave.ErrForbidden
	}
	if s.runs == nil {
		return JobRun{}, ErrJobRunNotFound
	}
	return s.runs.JobRunByID(ctx, runID)
}
