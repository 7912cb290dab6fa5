package leave

import "context"

// Backend is the system of record for requests and credits. The Postgres
// Store and the REST client both implement it; the service does every
// local check before calling it and re-reads after every write.
type Backend interface {
	MyRequests(ctx context.Context, actor Actor) ([]LeaveRequest, error)
	PendingForApproval(ctx context.Context, actor Actor) ([]LeaveRequest, error)
	PendingForHRApproval(ctx context.Context, actor Actor) ([]LeaveRequest, error)
	ListRequests(ctx context.Context, actor Actor, filter RequestFilter) (RequestListResult, error)
	GetRequest(ctx context.Context, actor Actor, id string) (LeaveRequest, error)
	CreateRequest(ctx context.Context, actor Actor, req NewRequest) (string, error)
	ApplyTransition(ctx context.Context, t Transition) error
	Credit(ctx context.Context, employeeID, leaveType string, year int) (LeaveCredit, error)
	Credits(ctx context.Context, employeeID string, year int) ([]LeaveCredit, error)
	AdjustCredit(ctx context.Context, adj CreditAdjustment) error
	LeaveTypes(ctx context.Context) ([]LeaveType, error)
	CreateLeaveType(ctx context.Context, t LeaveType) (string, error)
}

var _ Backend = (*Store)(nil)
