package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"hrims/internal/platform/querier"
)

// Categories of locally kept data that expire. Leave requests and credits
// belong to the system of record and are never purged here.
const (
	CategoryAudit         = "audit"
	CategoryNotifications = "notifications"
	CategoryIdempotency   = "idempotency"
	CategoryJobRuns       = "job_runs"
)

// Policy keeps rows of Category for Days days. Days <= 0 keeps them forever.
type Policy struct {
	Category string `json:"category"`
	Days     int    `json:"days"`
}

type Summary struct {
	Deleted map[string]int64 `json:"deleted"`
}

// Apply deletes rows of category older than cutoff and returns how many went.
// Unread notifications are kept regardless of age.
func Apply(ctx context.Context, db querier.Querier, category string, cutoff time.Time) (int64, error) {
	var query string
	switch category {
	case CategoryAudit:
		query = "DELETE FROM audit_logs WHERE created_at < $1"
	case CategoryNotifications:
		query = "DELETE FROM notifications WHERE read_at IS NOT NULL AND created_at < $1"
	case CategoryIdempotency:
		query = "DELETE FROM idempotency_keys WHERE created_at < $1"
	case CategoryJobRuns:
		query = "DELETE FROM job_runs WHERE completed_at IS NOT NULL AND started_at < $1"
	default:
		return 0, nil
	}
	tag, err := db.Exec(ctx, query, cutoff)
	return tag.RowsAffected(), err
}

// Run applies every policy in order. It stops at the first failure and
// returns what was deleted so far.
func Run(ctx context.Context, db querier.Querier, policies []Policy, now time.Time, log zerolog.Logger) (Summary, error) {
	summary := Summary{Deleted: map[string]int64{}}
	for _, p := range policies {
		if p.Days <= 0 {
			continue
		}
		cutoff := now.AddDate(0, 0, -p.Days)
		n, err := Apply(ctx, db, p.Category, cutoff)
		summary.Deleted[p.Category] += n
		if err != nil {
			return summary, err
		}
		if n > 0 {
			log.Info().Str("category", p.Category).Int64("deleted", n).Time("cutoff", cutoff).Msg("retention applied")
		}
	}
	return summary, nil
}
