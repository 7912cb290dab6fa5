package leave

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type ProvisionSummary struct {
	Year           int `json:"year"`
	LeaveTypes     int `json:"leaveTypes"`
	CreditsCreated int `json:"creditsCreated"`
}

type ProvisionStore interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	ListLeaveTypesTx(ctx context.Context, tx pgx.Tx) ([]LeaveType, error)
	InsertMissingCreditsTx(ctx context.Context, tx pgx.Tx, leaveType LeaveType, year int) (int64, error)
}

// ProvisionCredits gives every employee a credit row for each leave type in
// year, using the type's default allotment. Existing rows are left alone, so
// running it twice is harmless.
func ProvisionCredits(ctx context.Context, store ProvisionStore, year int, log zerolog.Logger) (ProvisionSummary, error) {
	summary := ProvisionSummary{Year: year}

	tx, err := store.BeginTx(ctx)
	if err != nil {
		return summary, err
	}

	types, err := store.ListLeaveTypesTx(ctx, tx)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Warn().Err(rbErr).Msg("credit provisioning rollback failed")
		}
		return summary, err
	}

	for _, lt := range types {
		created, err := store.InsertMissingCreditsTx(ctx, tx, lt, year)
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Warn().Err(rbErr).Msg("credit provisioning rollback failed")
			}
			return summary, err
		}
		summary.LeaveTypes++
		summary.CreditsCreated += int(created)
	}

	if err := tx.Commit(ctx); err != nil {
		return summary, err
	}
	return summary, nil
}
