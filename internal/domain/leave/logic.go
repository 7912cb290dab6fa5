package leave

import (
	"strings"
	"time"
)

// CalculateBusinessDays counts the days from start to end inclusive,
// skipping Sundays. Saturdays count. Returns 0 when end is before start.
func CalculateBusinessDays(start, end time.Time) int {
	start = DateOnly(start)
	end = DateOnly(end)
	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Sunday {
			days++
		}
	}
	return days
}

// DateOnly returns t's calendar date, as read in t's own location, at UTC
// midnight. Dates from different zones then compare by calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ValidateDates(start, end, today time.Time) error {
	if start.IsZero() {
		return invalid("start_date", "is required")
	}
	if end.IsZero() {
		return invalid("end_date", "is required")
	}
	start, end, today = DateOnly(start), DateOnly(end), DateOnly(today)
	if end.Before(start) {
		return invalid("end_date", "must not be before start_date")
	}
	if start.Before(today) {
		return invalid("start_date", "must not be in the past")
	}
	return nil
}

// ValidateNewRequest runs every local check for a new request and returns
// the business-day count to store.
func ValidateNewRequest(req NewRequest, credit LeaveCredit, today time.Time) (int, error) {
	if strings.TrimSpace(req.LeaveType) == "" {
		return 0, invalid("leave_type", "is required")
	}
	if err := ValidateDates(req.StartDate, req.EndDate, today); err != nil {
		return 0, err
	}
	if req.StartDate.Year() != req.EndDate.Year() {
		return 0, invalid("end_date", "must fall in the same year as start_date")
	}
	days := CalculateBusinessDays(req.StartDate, req.EndDate)
	if days < 1 {
		return 0, invalid("end_date", "range contains no working days")
	}
	if !credit.Covers(days) {
		return 0, ErrInsufficientCredits
	}
	return days, nil
}
