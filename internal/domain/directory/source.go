package directory

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("employee not found")

// Source is the employee directory collaborator. Implementations return
// ErrNotFound (possibly wrapped) when no employee matches.
type Source interface {
	EmployeeByEmail(ctx context.Context, email string) (Employee, error)
	EmployeeByID(ctx context.Context, id string) (Employee, error)
	EmployeeByAuthID(ctx context.Context, authID string) (Employee, error)
}
