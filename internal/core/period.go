package core

import (
	"fmt"
	"time"
)

// Period selects the trailing range a spending report covers.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// ParsePeriod validates a period string. Empty input defaults to week,
// matching the report job's default cadence.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodWeek, PeriodMonth, PeriodYear:
		return Period(s), nil
	case "":
		return PeriodWeek, nil
	}
	return "", fmt.Errorf("unknown period: %q", s)
}

// Range returns the trailing [from, to] date range for the period,
// relative to now. to is always today.
func (p Period) Range(now time.Time) (from, to Date) {
	to = DateOf(now)
	switch p {
	case PeriodMonth:
		from = DateOf(now.AddDate(0, -1, 0))
	case PeriodYear:
		from = DateOf(now.AddDate(-1, 0, 0))
	default:
		from = to.AddDays(-7)
	}
	return from, to
}

// Label is the human form used in report emails and subjects.
func (p Period) Label() string {
	switch p {
	case PeriodMonth:
		return "this month"
	case PeriodYear:
		return "this year"
	default:
		return "this week"
	}
}
