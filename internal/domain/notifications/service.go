package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"hrims/internal/domain/leave"
)

var ErrNotFound = errors.New("notification not found")

type Notification struct {
	ID         string     `json:"id"`
	EmployeeID string     `json:"employeeId"`
	Type       string     `json:"type"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	RequestID  string     `json:"requestId,omitempty"`
	ReadAt     *time.Time `json:"readAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type Mail struct {
	From    string
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// Publisher fans events out to other services. *events.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

type Enqueuer interface {
	Submit(jobType string, run func(context.Context) (any, error)) bool
}

// LeaveEvent is the payload published for every workflow change.
type LeaveEvent struct {
	Type          string    `json:"type"`
	RequestID     string    `json:"requestId"`
	EmployeeID    string    `json:"employeeId"`
	EmployeeEmail string    `json:"employeeEmail,omitempty"`
	DepartmentID  string    `json:"departmentId,omitempty"`
	ProgramID     string    `json:"programId,omitempty"`
	LeaveType     string    `json:"leaveType"`
	StartDate     string    `json:"startDate"`
	EndDate       string    `json:"endDate"`
	Days          int       `json:"daysRequested"`
	Status        string    `json:"status"`
	ActorID       string    `json:"actorId,omitempty"`
	ActorName     string    `json:"actorName,omitempty"`
	At            time.Time `json:"at"`
}

// Service turns leave workflow changes into an event on the bus, an inbox
// row and an email for the requester. Every channel is optional.
type Service struct {
	store     StoreAPI
	mailer    Mailer
	publisher Publisher
	jobs      Enqueuer
	from      string
	log       zerolog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithStore(store StoreAPI) Option {
	return func(s *Service) { s.store = store }
}

func WithMailer(mailer Mailer, from string) Option {
	return func(s *Service) {
		s.mailer = mailer
		s.from = from
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithJobs(jobs Enqueuer) Option {
	return func(s *Service) { s.jobs = jobs }
}

func New(log zerolog.Logger, opts ...Option) *Service {
	s := &Service{log: log, from: "no-reply@hrims.local", now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasInbox reports whether notifications are persisted.
func (s *Service) HasInbox() bool {
	return s != nil && s.store != nil
}

// RequestChanged is called by the leave service after a successful write.
// Delivery happens on the job worker; failures are logged and dropped.
func (s *Service) RequestChanged(req leave.LeaveRequest, action leave.Action, actor leave.Actor) {
	if s == nil {
		return
	}
	ntype, ok := typeFor(action)
	if !ok {
		return
	}
	evt := LeaveEvent{
		Type:          ntype,
		RequestID:     req.ID,
		EmployeeID:    req.Employee.ID,
		EmployeeEmail: req.Employee.Email,
		DepartmentID:  req.Employee.DepartmentID,
		ProgramID:     req.Employee.ProgramID,
		LeaveType:     req.LeaveType,
		StartDate:     req.StartDate.Format(time.DateOnly),
		EndDate:       req.EndDate.Format(time.DateOnly),
		Days:          req.DaysRequested,
		Status:        string(req.Status),
		ActorID:       actor.EmployeeID,
		ActorName:     actor.Name,
		At:            s.now().UTC(),
	}

	deliver := func(ctx context.Context) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		s.deliver(ctx, req, evt, actor)
		return nil, nil
	}
	if s.jobs == nil {
		go func() { _, _ = deliver(context.Background()) }()
		return
	}
	if !s.jobs.Submit(jobType, deliver) {
		s.log.Warn().Str("request_id", req.ID).Str("type", ntype).Msg("notification dropped, queue full")
	}
}

func (s *Service) deliver(ctx context.Context, req leave.LeaveRequest, evt LeaveEvent, actor leave.Actor) {
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, "leave."+evt.Type, evt); err != nil {
			s.log.Warn().Err(err).Str("request_id", req.ID).Msg("leave event publish failed")
		}
	}

	// The requester already knows about their own submissions and cancellations.
	if req.Employee.ID == "" || req.Employee.ID == actor.EmployeeID {
		return
	}
	title, body := messageFor(evt, req)

	if s.store != nil {
		n := Notification{EmployeeID: req.Employee.ID, Type: evt.Type, Title: title, Body: body, RequestID: req.ID}
		if err := s.store.CreateNotification(ctx, n); err != nil {
			s.log.Warn().Err(err).Str("request_id", req.ID).Msg("notification insert failed")
		}
	}
	if s.mailer != nil && req.Employee.Email != "" {
		m := Mail{From: s.from, To: req.Employee.Email, Subject: title, Body: body}
		if err := s.mailer.Send(ctx, m); err != nil {
			s.log.Warn().Err(err).Str("request_id", req.ID).Msg("notification email send failed")
		}
	}
}

func (s *Service) List(ctx context.Context, employeeID string, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	if s.store == nil || employeeID == "" {
		return []Notification{}, 0, nil
	}
	items, err := s.store.ListNotifications(ctx, employeeID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountNotifications(ctx, employeeID, unreadOnly)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) MarkRead(ctx context.Context, employeeID, notificationID string) error {
	if s.store == nil || employeeID == "" {
		return ErrNotFound
	}
	return s.store.MarkRead(ctx, employeeID, notificationID)
}

func typeFor(action leave.Action) (string, bool) {
	switch action {
	case leave.ActionCreate:
		return TypeLeaveSubmitted, true
	case leave.ActionPreApprove:
		return TypeLeavePreApproved, true
	case leave.ActionFinalApprove, leave.ActionBypassApprove:
		return TypeLeaveApproved, true
	case leave.ActionReject:
		return TypeLeaveRejected, true
	case leave.ActionCancel:
		return TypeLeaveCancelled, true
	}
	return "", false
}

func messageFor(evt LeaveEvent, req leave.LeaveRequest) (string, string) {
	span := fmt.Sprintf("%s leave from %s to %s (%d day(s))", req.LeaveType, evt.StartDate, evt.EndDate, req.DaysRequested)
	switch evt.Type {
	case TypeLeavePreApproved:
		return "Leave request endorsed to HR",
			fmt.Sprintf("%s endorsed your %s. It now waits for HR approval.", evt.ActorName, span)
	case TypeLeaveApproved:
		return "Leave request approved",
			fmt.Sprintf("%s approved your %s.", evt.ActorName, span)
	case TypeLeaveRejected:
		body := fmt.Sprintf("%s rejected your %s.", evt.ActorName, span)
		if req.RejectionReason != "" {
			body += " Reason: " + req.RejectionReason
		}
		return "Leave request rejected", body
	case TypeLeaveCancelled:
		return "Leave request cancelled", fmt.Sprintf("Your %s was cancelled.", span)
	}
	return "Leave request submitted", fmt.Sprintf("A %s was filed for you.", span)
}
