package audit

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Event is one append-only audit entry. IDs are ULIDs so they sort by time.
type Event struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Module    string    `json:"module"`
	Details   string    `json:"details"`
	IPAddress string    `json:"ipAddress"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type Sink interface {
	Record(ctx context.Context, evt Event) error
}

type Filter struct {
	Action string
	Module string
	UserID string
}

// Enqueuer is the slice of the job service the audit service needs.
type Enqueuer interface {
	Submit(jobType string, run func(context.Context) (any, error)) bool
}

type FailureRecorder interface {
	AuditFailed()
}

// Service writes audit events without ever failing the caller.
type Service struct {
	sink    Sink
	jobs    Enqueuer
	log     zerolog.Logger
	metrics FailureRecorder
	now     func() time.Time
}

func NewService(sink Sink, jobs Enqueuer, log zerolog.Logger, metrics FailureRecorder) *Service {
	return &Service{sink: sink, jobs: jobs, log: log, metrics: metrics, now: time.Now}
}

// LogEvent stamps evt and hands it to the sink in the background. Failures
// are logged at warn level and swallowed.
func (s *Service) LogEvent(evt Event) {
	if s == nil || s.sink == nil {
		return
	}
	evt = s.stamp(evt)

	write := func(ctx context.Context) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.sink.Record(ctx, evt); err != nil {
			s.failed(evt, err)
		}
		return nil, nil
	}

	if s.jobs == nil {
		go func() { _, _ = write(context.Background()) }()
		return
	}
	if !s.jobs.Submit("audit_write", write) {
		s.failed(evt, errQueueFull)
	}
}

func (s *Service) stamp(evt Event) Event {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = s.now().UTC()
	}
	if evt.ID == "" {
		evt.ID = ulid.MustNew(ulid.Timestamp(evt.Timestamp), ulid.DefaultEntropy()).String()
	}
	if evt.Status == "" {
		evt.Status = StatusSuccess
	}
	return evt
}

func (s *Service) failed(evt Event, err error) {
	if s.metrics != nil {
		s.metrics.AuditFailed()
	}
	s.log.Warn().
		Err(err).
		Str("audit_id", evt.ID).
		Str("action", evt.Action).
		Str("module", evt.Module).
		Msg("audit write failed")
}

type auditError string

func (e auditError) Error() string { return string(e) }

const errQueueFull = auditError("audit queue full")

// LogSink writes events to the structured log. It is the sink when no
// database is configured.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (l *LogSink) Record(_ context.Context, evt Event) error {
	l.log.Info().
		Str("audit_id", evt.ID).
		Str("user_id", evt.UserID).
		Str("username", evt.Username).
		Str("action", evt.Action).
		Str("module", evt.Module).
		Str("details", evt.Details).
		Str("ip", evt.IPAddress).
		Str("status", evt.Status).
		Time("timestamp", evt.Timestamp).
		Msg("audit")
	return nil
}
