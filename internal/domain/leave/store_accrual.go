package leave

import (
	"context"

	"github.com/jackc/pgx/v5"
)

var _ ProvisionStore = (*Store)(nil)

func (s *Store) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return s.DB.Begin(ctx)
}

func (s *Store) ListLeaveTypesTx(ctx context.Context, tx pgx.Tx) ([]LeaveType, error) {
	rows, err := tx.Query(ctx, `
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

func (s *Store) InsertMissingCreditsTx(ctx context.Context, tx pgx.Tx, leaveType LeaveType, year int) (int64, error) {
	tag, err := tx.Exec(ctx, `
    INSERT INTO leave_credits (employee_id, leave_type, year, total_credits, used_credits)
    SELECT e.id, $1, $2, $3, 0
    FROM employees e
    ON CONFLICT (employee_id, (lower(leave_type)), year) DO NOTHING
  `, leaveType.Name, year, leaveType.DefaultCredits)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
