package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatusCounts tracks how transactions were classified during aggregation.
// Only posted and pending transactions can contribute to totals; the rest is
// surfaced for diagnostics.
type StatusCounts struct {
	Posted       int
	Pending      int
	PendingToday int
	Other        int
}

// Totals accumulates spend over the five summary windows. Values are exact
// decimals and always >= 0; formatting happens in Summary.
type Totals struct {
	Yesterday  decimal.Decimal
	Last7Days  decimal.Decimal
	Last30Days decimal.Decimal
	ThisWeek   decimal.Decimal
	ThisMonth  decimal.Decimal

	Counts StatusCounts
}

// Summary is the wire form of Totals: five currency strings.
type Summary struct {
	DailySpend     string `json:"dailySpend"`
	WeeklySpend    string `json:"weeklySpend"`
	MonthlySpend   string `json:"monthlySpend"`
	ThisWeekSpend  string `json:"thisWeekSpend"`
	ThisMonthSpend string `json:"thisMonthSpend"`
}

// Format renders each window total as a USD currency string.
func (t Totals) Format() Summary {
	return Summary{
		DailySpend:     FormatUSD(t.Yesterday),
		WeeklySpend:    FormatUSD(t.Last7Days),
		MonthlySpend:   FormatUSD(t.Last30Days),
		ThisWeekSpend:  FormatUSD(t.ThisWeek),
		ThisMonthSpend: FormatUSD(t.ThisMonth),
	}
}

// windows holds the lower boundaries for the five summary buckets, all
// normalized to calendar days in now's location.
type windows struct {
	today      Date
	yesterday  Date
	last7Days  Date
	last30Days Date
	weekStart  Date
	monthStart Date
}

func windowsAt(now time.Time) windows {
	today := DateOf(now)

	// Monday starts the week; a Sunday belongs to the week begun the prior
	// Monday.
	wd := int(now.Weekday())
	if wd == 0 {
		wd = 7
	}

	return windows{
		today:      today,
		yesterday:  today.AddDays(-1),
		last7Days:  today.AddDays(-7),
		last30Days: today.AddDays(-30),
		weekStart:  today.AddDays(-(wd - 1)),
		monthStart: Date{Year: today.Year, Month: today.Month, Day: 1},
	}
}

// Aggregate buckets spend into the five summary windows relative to now.
//
// Accounts sharing an enrollment are counted once (first occurrence wins),
// since the provider returns the same transaction list for every account
// linked under one enrollment. Only completed days count: a transaction
// dated today is excluded from every window regardless of status, because
// today's data is still provisional. Posted and pending transactions follow
// the same spend rule — negative amounts only, added as absolute values —
// with all boundary checks done on real calendar dates.
//
// The whole computation uses now's location; callers choose the timezone
// policy by constructing now accordingly.
func Aggregate(accounts []AccountTransactions, now time.Time) Totals {
	w := windowsAt(now)

	totals := Totals{
		Yesterday:  decimal.Zero,
		Last7Days:  decimal.Zero,
		Last30Days: decimal.Zero,
		ThisWeek:   decimal.Zero,
		ThisMonth:  decimal.Zero,
	}

	seen := make(map[string]bool, len(accounts))
	for _, acct := range accounts {
		if acct.EnrollmentID != "" {
			if seen[acct.EnrollmentID] {
				continue
			}
			seen[acct.EnrollmentID] = true
		}

		for _, tx := range acct.Transactions {
			switch tx.Status {
			case StatusPosted:
				totals.Counts.Posted++
			case StatusPending:
				if tx.Date.Equal(w.today) {
					totals.Counts.PendingToday++
					continue
				}
				totals.Counts.Pending++
			default:
				totals.Counts.Other++
				continue
			}

			if !tx.Spend() {
				continue
			}
			if !tx.Date.Before(w.today) {
				continue
			}
			spend := tx.Amount.Abs()

			if tx.Date.Equal(w.yesterday) {
				totals.Yesterday = totals.Yesterday.Add(spend)
			}
			if !tx.Date.Before(w.last7Days) {
				totals.Last7Days = totals.Last7Days.Add(spend)
			}
			if !tx.Date.Before(w.last30Days) {
				totals.Last30Days = totals.Last30Days.Add(spend)
			}
			if !tx.Date.Before(w.weekStart) {
				totals.ThisWeek = totals.ThisWeek.Add(spend)
			}
			if !tx.Date.Before(w.monthStart) {
				totals.ThisMonth = totals.ThisMonth.Add(spend)
			}
		}
	}

	return totals
}
