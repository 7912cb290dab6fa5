package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"hrims/internal/platform/querier"
)

const (
	JobAuditWrite      = "audit_write"
	JobCreditProvision = "credit_provision"
	JobRetention       = "retention"
)

// Service runs background work on a single worker fed by a bounded queue.
// When DB is set, tracked jobs leave a row in job_runs.
type Service struct {
	DB    querier.Querier
	log   zerolog.Logger
	queue chan job

	schedules []schedule
}

type job struct {
	Type    string
	Tracked bool
	Run     func(context.Context) (any, error)
}

type schedule struct {
	jobType  string
	interval time.Duration
	run      func(context.Context) (any, error)
}

func New(db querier.Querier, log zerolog.Logger, queueSize int) *Service {
	if queueSize <= 0 {
		queueSize = 128
	}
	return &Service{
		DB:    db,
		log:   log,
		queue: make(chan job, queueSize),
	}
}

// Every registers run to be enqueued on each interval tick once Start is
// called. It must be called before Start.
func (s *Service) Every(jobType string, interval time.Duration, run func(context.Context) (any, error)) {
	if interval <= 0 {
		return
	}
	s.schedules = append(s.schedules, schedule{jobType: jobType, interval: interval, run: run})
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	for _, sch := range s.schedules {
		go s.schedule(ctx, sch)
	}
}

// Enqueue queues a tracked job. A full queue drops the job with a warning.
func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) bool {
	return s.push(job{Type: jobType, Tracked: true, Run: run})
}

// Submit queues a job that is not recorded in job_runs.
func (s *Service) Submit(jobType string, run func(context.Context) (any, error)) bool {
	return s.push(job{Type: jobType, Run: run})
}

func (s *Service) push(j job) bool {
	select {
	case s.queue <- j:
		return true
	default:
		s.log.Warn().Str("job_type", j.Type).Msg("job queue full")
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Tracked: true, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				s.log.Warn().Err(err).Str("job_type", j.Type).Msg("job run failed")
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	track := j.Tracked && s.DB != nil
	runID := ""
	if track {
		if err := s.DB.QueryRow(ctx, `
      INSERT INTO job_runs (job_type, status)
      VALUES ($1,$2)
      RETURNING id::text
    `, j.Type, "running").Scan(&runID); err != nil {
			s.log.Warn().Err(err).Msg("job run insert failed")
		}
	}

	details, err := j.Run(ctx)
	if runID == "" {
		return details, err
	}

	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		s.log.Warn().Err(marshalErr).Msg("job details marshal failed")
		detailsJSON = []byte("{}")
	}
	if _, updErr := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id::text = $3
  `, status, detailsJSON, runID); updErr != nil {
		s.log.Warn().Err(updErr).Msg("job run update failed")
	}
	return details, err
}

func (s *Service) schedule(ctx context.Context, sch schedule) {
	ticker := time.NewTicker(sch.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(sch.jobType, sch.run)
		}
	}
}
