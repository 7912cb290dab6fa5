package retention

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

type execRecorder struct {
	queries []string
	cutoffs []time.Time
	failOn  string
}

func (e *execRecorder) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.queries = append(e.queries, sql)
	if len(args) == 1 {
		if cutoff, ok := args[0].(time.Time); ok {
			e.cutoffs = append(e.cutoffs, cutoff)
		}
	}
	if e.failOn != "" && strings.Contains(sql, e.failOn) {
		return pgconn.CommandTag{}, errors.New("boom")
	}
	return pgconn.NewCommandTag("DELETE 2"), nil
}

func (e *execRecorder) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (e *execRecorder) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

func (e *execRecorder) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("not used")
}

var now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func TestRunAppliesEachPolicy(t *testing.T) {
	db := &execRecorder{}
	policies := []Policy{
		{Category: CategoryAudit, Days: 365},
		{Category: CategoryNotifications, Days: 90},
		{Category: CategoryIdempotency, Days: 0},
	}

	summary, err := Run(context.Background(), db, policies, now, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(db.queries) != 2 {
		t.Fatalf("expected 2 deletes, got %d", len(db.queries))
	}
	if summary.Deleted[CategoryAudit] != 2 || summary.Deleted[CategoryNotifications] != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if want := now.AddDate(-1, 0, 0); !db.cutoffs[0].Equal(want) {
		t.Fatalf("expected audit cutoff %s, got %s", want, db.cutoffs[0])
	}
}

func TestNotificationsKeepUnread(t *testing.T) {
	db := &execRecorder{}
	if _, err := Apply(context.Background(), db, CategoryNotifications, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(db.queries[0], "read_at IS NOT NULL") {
		t.Fatalf("unread notifications must be kept: %s", db.queries[0])
	}
}

func TestUnknownCategoryIsIgnored(t *testing.T) {
	db := &execRecorder{}
	n, err := Apply(context.Background(), db, "leave", now)
	if err != nil || n != 0 || len(db.queries) != 0 {
		t.Fatalf("expected no-op, got n=%d err=%v queries=%d", n, err, len(db.queries))
	}
}

func TestRunStopsOnFailure(t *testing.T) {
	db := &execRecorder{failOn: "audit_logs"}
	policies := []Policy{
		{Category: CategoryAudit, Days: 30},
		{Category: CategoryJobRuns, Days: 30},
	}
	if _, err := Run(context.Background(), db, policies, now, zerolog.Nop()); err == nil {
		t.Fatal("expected error")
	}
	if len(db.queries) != 1 {
		t.Fatalf("expected to stop after the failing delete, got %d queries", len(db.queries))
	}
}
