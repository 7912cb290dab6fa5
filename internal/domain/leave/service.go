package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hrims/internal/domain/audit"
	"hrims/internal/domain/role"
	"hrims/internal/requestctx"
)

// AuditLogger receives one event per write. *audit.Service satisfies it.
type AuditLogger interface {
	LogEvent(evt audit.Event)
}

// TransitionRecorder counts workflow outcomes. *metrics.Collector satisfies it.
type TransitionRecorder interface {
	Transition(action, outcome string)
}

// Notifier hears about every successful write. It must not block.
// *notifications.Service satisfies it.
type Notifier interface {
	RequestChanged(req LeaveRequest, action Action, actor Actor)
}

// Service runs every local check before touching the backend and re-reads
// after each write. It keeps no request state of its own.
type Service struct {
	backend Backend
	audit   AuditLogger
	metrics TransitionRecorder
	notify  Notifier
	log     zerolog.Logger
	now     func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notify = n }
}

func NewService(backend Backend, auditLog AuditLogger, metrics TransitionRecorder, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{backend: backend, audit: auditLog, metrics: metrics, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	LeaveType string
	StartDate time.Time
	EndDate   time.Time
	Reason    string
}

func (s *Service) MyRequests(ctx context.Context, state role.SessionState) ([]LeaveRequest, error) {
	actor := ActorFromSession(state)
	if actor.EmployeeID == "" {
		return []LeaveRequest{}, nil
	}
	return s.backend.MyRequests(ctx, actor)
}

// PendingForApproval is the supervisor queue. The backend scopes it and the
// result is filtered again so an over-broad backend cannot leak requests.
func (s *Service) PendingForApproval(ctx context.Context, state role.SessionState) ([]LeaveRequest, error) {
	actor := ActorFromSession(state)
	if actor.IsHR() || !actor.Role.HasPermission(role.ApproveRequests) {
		return nil, ErrForbidden
	}
	requests, err := s.backend.PendingForApproval(ctx, actor)
	if err != nil {
		return nil, err
	}
	out := make([]LeaveRequest, 0, len(requests))
	for _, req := range FilterByScope(actor, requests) {
		if req.Status == StatusPending && !isOwn(req, actor) {
			out = append(out, req)
		}
	}
	return out, nil
}

func (s *Service) PendingForHRApproval(ctx context.Context, state role.SessionState) ([]LeaveRequest, error) {
	actor := ActorFromSession(state)
	if !actor.IsHR() {
		return nil, ErrForbidden
	}
	return s.backend.PendingForHRApproval(ctx, actor)
}

func (s *Service) ListRequests(ctx context.Context, state role.SessionState, filter RequestFilter) (RequestListResult, error) {
	actor := ActorFromSession(state)
	if !actor.IsHR() && !actor.Role.HasPermission(role.ViewAllRequests) {
		return RequestListResult{}, ErrForbidden
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return RequestListResult{}, invalid("status", "unknown status")
	}
	return s.backend.ListRequests(ctx, actor, filter)
}

func (s *Service) GetRequest(ctx context.Context, state role.SessionState, id string) (LeaveRequest, error) {
	actor := ActorFromSession(state)
	req, err := s.backend.GetRequest(ctx, actor, id)
	if err != nil {
		return LeaveRequest{}, err
	}
	if !CanView(req, actor) {
		return LeaveRequest{}, ErrForbidden
	}
	return req, nil
}

// AllowedActions is what the caller may do to the request right now.
func (s *Service) AllowedActions(state role.SessionState, req LeaveRequest) []Action {
	return AllowedActions(req, ActorFromSession(state))
}

func (s *Service) CreateRequest(ctx context.Context, state role.SessionState, in CreateInput) (LeaveRequest, error) {
	actor := ActorFromSession(state)
	if actor.EmployeeID == "" {
		return LeaveRequest{}, ErrForbidden
	}
	newReq := NewRequest{
		Employee:  actor.Ref(),
		LeaveType: strings.TrimSpace(in.LeaveType),
		StartDate: DateOnly(in.StartDate),
		EndDate:   DateOnly(in.EndDate),
		Reason:    strings.TrimSpace(in.Reason),
	}
	if err := ValidateDates(newReq.StartDate, newReq.EndDate, s.now()); err != nil {
		return LeaveRequest{}, s.rejected(ActionCreate, err)
	}
	if newReq.LeaveType == "" {
		return LeaveRequest{}, s.rejected(ActionCreate, invalid("leave_type", "is required"))
	}
	leaveType, err := s.canonicalLeaveType(ctx, newReq.LeaveType)
	if err != nil {
		return LeaveRequest{}, s.failed(ActionCreate, err)
	}
	newReq.LeaveType = leaveType

	credit, err := s.backend.Credit(ctx, actor.EmployeeID, newReq.LeaveType, newReq.StartDate.Year())
	if err != nil && !errors.Is(err, ErrNotFound) {
		return LeaveRequest{}, s.failed(ActionCreate, err)
	}
	days, err := ValidateNewRequest(newReq, credit, s.now())
	if err != nil {
		return LeaveRequest{}, s.rejected(ActionCreate, err)
	}
	newReq.DaysRequested = days

	id, err := s.backend.CreateRequest(ctx, actor, newReq)
	if err != nil {
		return LeaveRequest{}, s.failed(ActionCreate, err)
	}
	s.count(ActionCreate, "ok")
	s.record(ctx, actor, ActionCreate, fmt.Sprintf("request %s: %s, %d day(s) from %s", id, newReq.LeaveType, days, newReq.StartDate.Format(time.DateOnly)))
	return s.refetch(ctx, actor, ActionCreate, id)
}

func (s *Service) PreApprove(ctx context.Context, state role.SessionState, id, notes string) (LeaveRequest, error) {
	return s.apply(ctx, state, id, ActionPreApprove, TransitionInput{Notes: notes})
}

func (s *Service) FinalApprove(ctx context.Context, state role.SessionState, id, notes string) (LeaveRequest, error) {
	return s.apply(ctx, state, id, ActionFinalApprove, TransitionInput{Notes: notes})
}

func (s *Service) BypassApprove(ctx context.Context, state role.SessionState, id, reason string) (LeaveRequest, error) {
	return s.apply(ctx, state, id, ActionBypassApprove, TransitionInput{Reason: reason})
}

func (s *Service) Reject(ctx context.Context, state role.SessionState, id, reason string) (LeaveRequest, error) {
	return s.apply(ctx, state, id, ActionReject, TransitionInput{Reason: reason})
}

func (s *Service) Cancel(ctx context.Context, state role.SessionState, id string) (LeaveRequest, error) {
	return s.apply(ctx, state, id, ActionCancel, TransitionInput{})
}

func (s *Service) apply(ctx context.Context, state role.SessionState, id string, action Action, in TransitionInput) (LeaveRequest, error) {
	actor := ActorFromSession(state)
	in.Notes = strings.TrimSpace(in.Notes)
	in.Reason = strings.TrimSpace(in.Reason)

	// Input-only checks first so a missing reason never costs a round trip.
	if err := checkInput(action, in); err != nil {
		return LeaveRequest{}, s.rejected(action, err)
	}

	req, err := s.backend.GetRequest(ctx, actor, id)
	if err != nil {
		return LeaveRequest{}, s.failed(action, err)
	}
	if err := Check(action, req, actor, in); err != nil {
		return LeaveRequest{}, s.rejected(action, err)
	}

	t := Transition{
		RequestID:  req.ID,
		Action:     action,
		From:       req.Status,
		To:         action.Target(),
		ActorID:    actor.EmployeeID,
		ActorName:  actor.Name,
		ActorEmail: actor.Email,
		Notes:      in.Notes,
		At:         s.now().UTC(),
		LeaveType:  req.LeaveType,
		EmployeeID: req.Employee.ID,
		Year:       req.Year(),
	}
	if action == ActionBypassApprove || action == ActionReject {
		t.Notes = in.Reason
	}

	if action.DeductsCredits() {
		credit, err := s.backend.Credit(ctx, req.Employee.ID, req.LeaveType, req.Year())
		if err != nil && !errors.Is(err, ErrNotFound) {
			return LeaveRequest{}, s.failed(action, err)
		}
		if err := credit.Deduct(req.DaysRequested); err != nil {
			return LeaveRequest{}, s.rejected(action, err)
		}
		t.DeductDays = req.DaysRequested
	}

	if err := s.backend.ApplyTransition(ctx, t); err != nil {
		return LeaveRequest{}, s.failed(action, err)
	}
	s.count(action, "ok")

	details := fmt.Sprintf("request %s: %s -> %s", req.ID, t.From, t.To)
	if t.Notes != "" {
		details += ": " + t.Notes
	}
	s.record(ctx, actor, action, details)

	return s.refetch(ctx, actor, action, req.ID)
}

// refetch returns what the backend now holds and tells the notifier.
func (s *Service) refetch(ctx context.Context, actor Actor, action Action, id string) (LeaveRequest, error) {
	fresh, err := s.backend.GetRequest(ctx, actor, id)
	if err != nil {
		return LeaveRequest{}, err
	}
	if s.notify != nil {
		s.notify.RequestChanged(fresh, action, actor)
	}
	return fresh, nil
}

func checkInput(action Action, in TransitionInput) error {
	switch action {
	case ActionBypassApprove:
		if in.Reason == "" {
			return invalid("bypass_reason", "is required")
		}
	case ActionReject:
		if in.Reason == "" {
			return invalid("rejection_reason", "is required")
		}
	}
	return nil
}

// Credits returns the caller's own balances, or another employee's when the
// caller is HR or manages credits.
func (s *Service) Credits(ctx context.Context, state role.SessionState, employeeID string, year int) ([]LeaveCredit, error) {
	actor := ActorFromSession(state)
	if employeeID == "" {
		employeeID = actor.EmployeeID
	}
	if employeeID == "" {
		return []LeaveCredit{}, nil
	}
	if employeeID != actor.EmployeeID && !actor.IsHR() && !actor.Role.HasPermission(role.ManageLeaveCredits) {
		return nil, ErrForbidden
	}
	if year <= 0 {
		year = s.now().Year()
	}
	return s.backend.Credits(ctx, employeeID, year)
}

func (s *Service) AdjustCredits(ctx context.Context, state role.SessionState, adj CreditAdjustment) (LeaveCredit, error) {
	actor := ActorFromSession(state)
	if !actor.Role.HasPermission(role.ManageLeaveCredits) {
		return LeaveCredit{}, ErrForbidden
	}
	adj.LeaveType = strings.TrimSpace(adj.LeaveType)
	switch {
	case adj.EmployeeID == "":
		return LeaveCredit{}, invalid("employee_id", "is required")
	case adj.LeaveType == "":
		return LeaveCredit{}, invalid("leave_type", "is required")
	case adj.TotalCredits < 0:
		return LeaveCredit{}, invalid("total_credits", "must not be negative")
	}
	if adj.Year <= 0 {
		adj.Year = s.now().Year()
	}
	leaveType, err := s.canonicalLeaveType(ctx, adj.LeaveType)
	if err != nil {
		return LeaveCredit{}, err
	}
	adj.LeaveType = leaveType

	current, err := s.backend.Credit(ctx, adj.EmployeeID, adj.LeaveType, adj.Year)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return LeaveCredit{}, err
	}
	if err == nil && adj.TotalCredits < current.UsedCredits {
		return LeaveCredit{}, invalid("total_credits", "must not be below used credits")
	}

	adj.AdjustedBy = actor.Name
	if err := s.backend.AdjustCredit(ctx, adj); err != nil {
		return LeaveCredit{}, err
	}
	s.recordModule(ctx, actor, "adjust_credits", "leave_credits",
		fmt.Sprintf("employee %s %s %d: total %.1f", adj.EmployeeID, adj.LeaveType, adj.Year, adj.TotalCredits))
	return s.backend.Credit(ctx, adj.EmployeeID, adj.LeaveType, adj.Year)
}

// canonicalLeaveType maps name onto the configured leave type's spelling so
// credit rows are keyed consistently. Unknown names pass through unchanged.
func (s *Service) canonicalLeaveType(ctx context.Context, name string) (string, error) {
	types, err := s.backend.LeaveTypes(ctx)
	if err != nil {
		return "", err
	}
	for _, t := range types {
		if strings.EqualFold(strings.TrimSpace(t.Name), name) {
			return t.Name, nil
		}
	}
	return name, nil
}

func (s *Service) LeaveTypes(ctx context.Context) ([]LeaveType, error) {
	return s.backend.LeaveTypes(ctx)
}

func (s *Service) CreateLeaveType(ctx context.Context, state role.SessionState, t LeaveType) (LeaveType, error) {
	actor := ActorFromSession(state)
	if !actor.Role.HasPermission(role.ManageLeavePolicies) {
		return LeaveType{}, ErrForbidden
	}
	t.Code = strings.ToUpper(strings.TrimSpace(t.Code))
	t.Name = strings.TrimSpace(t.Name)
	switch {
	case t.Code == "":
		return LeaveType{}, invalid("code", "is required")
	case t.Name == "":
		return LeaveType{}, invalid("name", "is required")
	case t.DefaultCredits < 0:
		return LeaveType{}, invalid("default_credits", "must not be negative")
	}
	id, err := s.backend.CreateLeaveType(ctx, t)
	if err != nil {
		return LeaveType{}, err
	}
	t.ID = id
	s.recordModule(ctx, actor, "create_leave_type", "leave_types", fmt.Sprintf("%s %s", t.Code, t.Name))
	return t, nil
}

func (s *Service) rejected(action Action, err error) error {
	outcome := "invalid"
	switch {
	case errors.Is(err, ErrValidation):
		outcome = "validation"
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrOutOfScope):
		outcome = "forbidden"
	case errors.Is(err, ErrInsufficientCredits):
		outcome = "insufficient_credits"
	}
	s.count(action, outcome)
	return err
}

func (s *Service) failed(action Action, err error) error {
	if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrInsufficientCredits) {
		return s.rejected(action, err)
	}
	if errors.Is(err, ErrNotFound) {
		s.count(action, "not_found")
		return err
	}
	s.count(action, "backend_error")
	s.log.Warn().Err(err).Str("action", string(action)).Msg("leave backend call failed")
	return fmt.Errorf("leave %s: %w", action, err)
}

func (s *Service) count(action Action, outcome string) {
	if s.metrics != nil {
		s.metrics.Transition(string(action), outcome)
	}
}

func (s *Service) record(ctx context.Context, actor Actor, action Action, details string) {
	s.recordModule(ctx, actor, string(action), auditModule, details)
}

func (s *Service) recordModule(ctx context.Context, actor Actor, action, module, details string) {
	if s.audit == nil {
		return
	}
	username := actor.Email
	if username == "" {
		username = actor.Name
	}
	s.audit.LogEvent(audit.Event{
		UserID:    actor.UID,
		Username:  username,
		Action:    action,
		Module:    module,
		Details:   details,
		IPAddress: requestctx.GetClientIP(ctx),
		Status:    audit.StatusSuccess,
	})
}
