package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"hrims/internal/platform/querier"
)

const employeeColumns = `
    id::text, COALESCE(auth_id, ''), email, first_name, last_name, department_id, program_id,
    office_id, position_title, academic_role_level, role_level, is_hr`

// Store reads employees from Postgres.
type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) EmployeeByEmail(ctx context.Context, email string) (Employee, error) {
	return s.one(ctx, "lower(email) = lower($1)", strings.TrimSpace(email))
}

func (s *Store) EmployeeByID(ctx context.Context, id string) (Employee, error) {
	return s.one(ctx, "id::text = $1", id)
}

func (s *Store) EmployeeByAuthID(ctx context.Context, authID string) (Employee, error) {
	return s.one(ctx, "auth_id = $1", authID)
}

func (s *Store) one(ctx context.Context, where string, arg string) (Employee, error) {
	row := s.DB.QueryRow(ctx, "SELECT "+employeeColumns+" FROM employees WHERE "+where, arg)
	emp, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrNotFound
	}
	if err != nil {
		return Employee{}, fmt.Errorf("load employee: %w", err)
	}
	return emp, nil
}

// ListEmployees returns the whole directory ordered by name. The yearly credit
// provisioning job and the HR report use it.
func (s *Store) ListEmployees(ctx context.Context) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+employeeColumns+" FROM employees ORDER BY last_name, first_name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

func scanEmployee(row pgx.Row) (Employee, error) {
	var emp Employee
	var academic, legacy *int32
	if err := row.Scan(
		&emp.ID, &emp.AuthID, &emp.Email, &emp.FirstName, &emp.LastName, &emp.DepartmentID, &emp.ProgramID,
		&emp.OfficeID, &emp.PositionTitle, &academic, &legacy, &emp.IsHR,
	); err != nil {
		return Employee{}, err
	}
	emp.AcademicRoleLevel = intPtr(academic)
	emp.RoleLevel = intPtr(legacy)
	return emp, nil
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	out := int(*v)
	return &out
}
