package leave

import (
	"errors"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCalculateBusinessDaysSingleDay(t *testing.T) {
	// 2026-03-07 is a Saturday, 2026-03-08 a Sunday.
	if got := CalculateBusinessDays(day(2026, 3, 7), day(2026, 3, 7)); got != 1 {
		t.Fatalf("saturday should count, got %d", got)
	}
	if got := CalculateBusinessDays(day(2026, 3, 8), day(2026, 3, 8)); got != 0 {
		t.Fatalf("sunday should not count, got %d", got)
	}
	if got := CalculateBusinessDays(day(2026, 3, 9), day(2026, 3, 9)); got != 1 {
		t.Fatalf("monday should count, got %d", got)
	}
}

func TestCalculateBusinessDaysRanges(t *testing.T) {
	cases := []struct {
		start, end time.Time
		want       int
	}{
		{day(2026, 3, 2), day(2026, 3, 6), 5},
		{day(2026, 3, 2), day(2026, 3, 8), 6},
		{day(2026, 3, 2), day(2026, 3, 15), 12},
		{day(2026, 3, 6), day(2026, 3, 2), 0},
		{time.Date(2026, 3, 2, 17, 30, 0, 0, time.UTC), time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC), 2},
	}
	for _, tc := range cases {
		if got := CalculateBusinessDays(tc.start, tc.end); got != tc.want {
			t.Fatalf("%s..%s: got %d want %d", tc.start.Format(time.DateOnly), tc.end.Format(time.DateOnly), got, tc.want)
		}
	}
}

func TestCalculateBusinessDaysMonotonic(t *testing.T) {
	start := day(2026, 1, 1)
	prev := 0
	for i := 0; i < 120; i++ {
		got := CalculateBusinessDays(start, start.AddDate(0, 0, i))
		if got < prev {
			t.Fatalf("count decreased at offset %d: %d < %d", i, got, prev)
		}
		prev = got
	}
}

func TestValidateDates(t *testing.T) {
	today := day(2026, 3, 2)
	if err := ValidateDates(day(2026, 3, 2), day(2026, 3, 4), today); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateDates(day(2026, 3, 5), day(2026, 3, 4), today); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for reversed range, got %v", err)
	}
	if err := ValidateDates(day(2026, 3, 1), day(2026, 3, 4), today); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for past start, got %v", err)
	}
	if err := ValidateDates(time.Time{}, day(2026, 3, 4), today); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for missing start, got %v", err)
	}
}

func TestValidateDatesComparesCalendarDays(t *testing.T) {
	west := time.FixedZone("UTC-5", -5*60*60)
	east := time.FixedZone("UTC+8", 8*60*60)

	// 09:00 on 2 March west of UTC; the request starts on 2 March as parsed
	// from the payload (UTC midnight).
	if err := ValidateDates(day(2026, 3, 2), day(2026, 3, 3), time.Date(2026, 3, 2, 9, 0, 0, 0, west)); err != nil {
		t.Fatalf("start today should be accepted west of UTC: %v", err)
	}
	if err := ValidateDates(day(2026, 3, 2), day(2026, 3, 3), time.Date(2026, 3, 2, 7, 0, 0, 0, east)); err != nil {
		t.Fatalf("start today should be accepted east of UTC: %v", err)
	}
	if err := ValidateDates(day(2026, 3, 1), day(2026, 3, 3), time.Date(2026, 3, 2, 23, 30, 0, 0, west)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for yesterday, got %v", err)
	}
}

func TestValidateNewRequest(t *testing.T) {
	today := day(2026, 3, 2)
	credit := LeaveCredit{TotalCredits: 10, UsedCredits: 2}

	days, err := ValidateNewRequest(NewRequest{LeaveType: "Vacation Leave", StartDate: day(2026, 3, 2), EndDate: day(2026, 3, 6)}, credit, today)
	if err != nil || days != 5 {
		t.Fatalf("expected 5 days, got %d, %v", days, err)
	}

	_, err = ValidateNewRequest(NewRequest{LeaveType: "Vacation Leave", StartDate: day(2026, 3, 2), EndDate: day(2026, 3, 14)}, credit, today)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected insufficient credits, got %v", err)
	}

	_, err = ValidateNewRequest(NewRequest{LeaveType: "Vacation Leave", StartDate: day(2026, 3, 8), EndDate: day(2026, 3, 8)}, credit, today)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "end_date" {
		t.Fatalf("expected no-working-days error, got %v", err)
	}

	_, err = ValidateNewRequest(NewRequest{StartDate: day(2026, 3, 2), EndDate: day(2026, 3, 2)}, credit, today)
	if !errors.As(err, &verr) || verr.Field != "leave_type" {
		t.Fatalf("expected leave_type error, got %v", err)
	}
}

func TestLeaveCreditDeduct(t *testing.T) {
	c := LeaveCredit{TotalCredits: 10, UsedCredits: 2}
	if err := c.Deduct(5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.UsedCredits != 7 || c.RemainingCredits != 3 {
		t.Fatalf("unexpected credit after deduct: %+v", c)
	}
	if err := c.Deduct(4); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected insufficient credits, got %v", err)
	}
	if c.UsedCredits != 7 {
		t.Fatalf("failed deduct must not change credit: %+v", c)
	}
	c.Restore(5)
	if c.UsedCredits != 2 || c.RemainingCredits != 8 {
		t.Fatalf("unexpected credit after restore: %+v", c)
	}
}
