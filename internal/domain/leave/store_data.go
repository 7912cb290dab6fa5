package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"hrims/internal/domain/role"
)

const requestSelect = `
    SELECT r.id::text, e.id::text, e.first_name, e.last_name, e.email, e.department_id, e.program_id,
      r.leave_type, r.start_date, r.end_date, r.days_requested, r.reason, r.status,
      COALESCE(r.supervisor_approved_by, ''), r.supervisor_approval_date, COALESCE(r.supervisor_approval_notes, ''),
      COALESCE(r.approved_by, ''), r.approval_date, COALESCE(r.approval_notes, ''),
      COALESCE(r.bypass_reason, ''), COALESCE(r.rejected_by, ''), COALESCE(r.rejection_reason, ''),
      r.created_at
    FROM leave_requests r
    JOIN employees e ON e.id = r.employee_id`

func scanRequest(row pgx.Row) (LeaveRequest, error) {
	var req LeaveRequest
	var status string
	if err := row.Scan(
		&req.ID, &req.Employee.ID, &req.Employee.FirstName, &req.Employee.LastName, &req.Employee.Email,
		&req.Employee.DepartmentID, &req.Employee.ProgramID,
		&req.LeaveType, &req.StartDate, &req.EndDate, &req.DaysRequested, &req.Reason, &status,
		&req.SupervisorApprovedBy, &req.SupervisorApprovalDate, &req.SupervisorApprovalNotes,
		&req.ApprovedBy, &req.ApprovalDate, &req.ApprovalNotes,
		&req.BypassReason, &req.RejectedBy, &req.RejectionReason,
		&req.CreatedAt,
	); err != nil {
		return LeaveRequest{}, err
	}
	req.Status = Status(status)
	return req, nil
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]LeaveRequest, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]LeaveRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func (s *Store) MyRequests(ctx context.Context, actor Actor) ([]LeaveRequest, error) {
	if actor.EmployeeID == "" {
		return []LeaveRequest{}, nil
	}
	return s.queryRequests(ctx, requestSelect+`
    WHERE r.employee_id::text = $1
    ORDER BY r.created_at DESC
  `, actor.EmployeeID)
}

// PendingForApproval returns Pending requests from employees inside the
// actor's scope, excluding the actor's own.
func (s *Store) PendingForApproval(ctx context.Context, actor Actor) ([]LeaveRequest, error) {
	query := requestSelect + " WHERE r.status = $1 AND r.employee_id::text <> $2"
	args := []any{string(StatusPending), actor.EmployeeID}

	switch actor.Role.ApprovalScope {
	case role.ScopeAll:
	case role.ScopeDepartment:
		if actor.DepartmentID == "" {
			return []LeaveRequest{}, nil
		}
		query += " AND e.department_id = $3"
		args = append(args, actor.DepartmentID)
	case role.ScopeProgram:
		switch {
		case actor.ProgramID != "":
			query += " AND e.program_id = $3"
			args = append(args, actor.ProgramID)
		case actor.DepartmentID != "":
			query += " AND e.department_id = $3"
			args = append(args, actor.DepartmentID)
		default:
			return []LeaveRequest{}, nil
		}
	default:
		return []LeaveRequest{}, nil
	}
	query += " ORDER BY r.created_at"
	return s.queryRequests(ctx, query, args...)
}

func (s *Store) PendingForHRApproval(ctx context.Context, _ Actor) ([]LeaveRequest, error) {
	return s.queryRequests(ctx, requestSelect+`
    WHERE r.status IN ($1, $2)
    ORDER BY CASE WHEN r.status = $1 THEN 0 ELSE 1 END, r.created_at
  `, string(StatusSupervisorApproved), string(StatusPending))
}

func (s *Store) ListRequests(ctx context.Context, _ Actor, filter RequestFilter) (RequestListResult, error) {
	where := " WHERE 1=1"
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where += fmt.Sprintf(" AND r.status = $%d", len(args))
	}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		where += fmt.Sprintf(" AND r.employee_id::text = $%d", len(args))
	}
	if filter.Year > 0 {
		args = append(args, filter.Year)
		where += fmt.Sprintf(" AND EXTRACT(YEAR FROM r.start_date)::int = $%d", len(args))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		where += fmt.Sprintf(" AND e.department_id = $%d", len(args))
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM leave_requests r JOIN employees e ON e.id = r.employee_id"+where, args...).Scan(&total); err != nil {
		return RequestListResult{}, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := requestSelect + where + fmt.Sprintf(" ORDER BY r.created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	requests, err := s.queryRequests(ctx, query, args...)
	if err != nil {
		return RequestListResult{}, err
	}
	return RequestListResult{Requests: requests, Total: total}, nil
}

func (s *Store) GetRequest(ctx context.Context, _ Actor, id string) (LeaveRequest, error) {
	req, err := scanRequest(s.DB.QueryRow(ctx, requestSelect+" WHERE r.id::text = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return LeaveRequest{}, ErrNotFound
	}
	return req, err
}

func (s *Store) CreateRequest(ctx context.Context, _ Actor, req NewRequest) (string, error) {
	var id string
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO leave_requests (employee_id, leave_type, start_date, end_date, days_requested, reason, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING id::text
  `, req.Employee.ID, req.LeaveType, req.StartDate, req.EndDate, req.DaysRequested, req.Reason, string(StatusPending)).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// ApplyTransition locks the request row, re-checks its status and writes the
// new state together with any credit deduction in one transaction. Two
// approvers racing on the same request serialize here; the loser gets
// ErrInvalidTransition.
func (s *Store) ApplyTransition(ctx context.Context, t Transition) (err error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var current string
	if err = tx.QueryRow(ctx, `
    SELECT status FROM leave_requests WHERE id::text = $1 FOR UPDATE
  `, t.RequestID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrNotFound
		}
		return err
	}
	if Status(current) != t.From {
		err = ErrInvalidTransition
		return err
	}

	if t.DeductDays > 0 {
		tag, execErr := tx.Exec(ctx, `
      UPDATE leave_credits
      SET used_credits = used_credits + $1, updated_at = now()
      WHERE employee_id::text = $2 AND lower(leave_type) = lower($3) AND year = $4
        AND total_credits - used_credits >= $1
    `, t.DeductDays, t.EmployeeID, t.LeaveType, t.Year)
		if execErr != nil {
			err = execErr
			return err
		}
		if tag.RowsAffected() == 0 {
			err = ErrInsufficientCredits
			return err
		}
	}

	query, args := transitionStatement(t)
	if _, err = tx.Exec(ctx, query, args...); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func transitionStatement(t Transition) (string, []any) {
	by := t.ActorName
	if by == "" {
		by = t.ActorEmail
	}
	switch t.Action {
	case ActionPreApprove:
		return `UPDATE leave_requests
      SET status = $2, supervisor_approved_by = $3, supervisor_approval_date = $4, supervisor_approval_notes = $5, updated_at = now()
      WHERE id::text = $1`, []any{t.RequestID, string(t.To), by, t.At, t.Notes}
	case ActionFinalApprove:
		return `UPDATE leave_requests
      SET status = $2, approved_by = $3, approval_date = $4, approval_notes = $5, updated_at = now()
      WHERE id::text = $1`, []any{t.RequestID, string(t.To), by, t.At, t.Notes}
	case ActionBypassApprove:
		return `UPDATE leave_requests
      SET status = $2, approved_by = $3, approval_date = $4, bypass_reason = $5, updated_at = now()
      WHERE id::text = $1`, []any{t.RequestID, string(t.To), by, t.At, t.Notes}
	case ActionReject:
		return `UPDATE leave_requests
      SET status = $2, rejected_by = $3, rejection_reason = $4, updated_at = now()
      WHERE id::text = $1`, []any{t.RequestID, string(t.To), by, t.Notes}
	}
	return `UPDATE leave_requests SET status = $2, updated_at = now() WHERE id::text = $1`, []any{t.RequestID, string(t.To)}
}

const creditColumns = `id::text, employee_id::text, leave_type, year, total_credits, used_credits, updated_at`

func scanCredit(row pgx.Row) (LeaveCredit, error) {
	var c LeaveCredit
	if err := row.Scan(&c.ID, &c.EmployeeID, &c.LeaveType, &c.Year, &c.TotalCredits, &c.UsedCredits, &c.UpdatedAt); err != nil {
		return LeaveCredit{}, err
	}
	return c.Normalize(), nil
}

func (s *Store) Credit(ctx context.Context, employeeID, leaveType string, year int) (LeaveCredit, error) {
	c, err := scanCredit(s.DB.QueryRow(ctx, `
    SELECT `+creditColumns+`
    FROM leave_credits
    WHERE employee_id::text = $1 AND lower(leave_type) = lower($2) AND year = $3
  `, employeeID, strings.TrimSpace(leaveType), year))
	if errors.Is(err, pgx.ErrNoRows) {
		return LeaveCredit{}, ErrNotFound
	}
	return c, err
}

func (s *Store) Credits(ctx context.Context, employeeID string, year int) ([]LeaveCredit, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+creditColumns+`
    FROM leave_credits
    WHERE employee_id::text = $1 AND year = $2
    ORDER BY leave_type
  `, employeeID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	credits := make([]LeaveCredit, 0)
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

// AdjustCredit sets the total allotment, creating the row when missing. The
// table constraint refuses totals below what is already used.
func (s *Store) AdjustCredit(ctx context.Context, adj CreditAdjustment) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO leave_credits (employee_id, leave_type, year, total_credits, used_credits)
    VALUES ($1,$2,$3,$4,0)
    ON CONFLICT (employee_id, (lower(leave_type)), year)
    DO UPDATE SET total_credits = EXCLUDED.total_credits, updated_at = now()
  `, adj.EmployeeID, adj.LeaveType, adj.Year, adj.TotalCredits)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23514" {
		return invalid("total_credits", "must not be below used credits")
	}
	return err
}

func (s *Store) LeaveTypes(ctx context.Context) ([]LeaveType, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, code, name, default_credits, created_at
    FROM leave_types
    ORDER BY name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := make([]LeaveType, 0)
	for rows.Next() {
		var t LeaveType
		if err := rows.Scan(&t.ID, &t.Code, &t.Name, &t.DefaultCredits, &t.CreatedAt); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (s *Store) CreateLeaveType(ctx context.Context, payload LeaveType) (string, error) {
	var id string
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO leave_types (code, name, default_credits)
    VALUES ($1,$2,$3)
    RETURNING id::text
  `, payload.Code, payload.Name, payload.DefaultCredits).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}
