package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// Wednesday 2024-06-12 15:04 UTC is the reference point for most cases.
var wednesday = time.Date(2024, 6, 12, 15, 4, 0, 0, time.UTC)

func tx(t *testing.T, date, amount string, status TransactionStatus) Transaction {
	t.Helper()
	d, err := ParseDate(date)
	if err != nil {
		t.Fatalf("parse date %q: %v", date, err)
	}
	amt, err := ParseAmount(amount)
	if err != nil {
		t.Fatalf("parse amount %q: %v", amount, err)
	}
	return Transaction{Date: d, Amount: amt, Status: status}
}

func singleAccount(txs ...Transaction) []AccountTransactions {
	return []AccountTransactions{{EnrollmentID: "enr_1", AccountID: "acc_1", Transactions: txs}}
}

func TestAggregateWorkedExample(t *testing.T) {
	// Yesterday -10.00 posted, 8 days ago -5.00 posted.
	totals := Aggregate(singleAccount(
		tx(t, "2024-06-11", "-10.00", StatusPosted),
		tx(t, "2024-06-04", "-5.00", StatusPosted),
	), wednesday)

	got := totals.Format()
	if got.DailySpend != "$10.00" {
		t.Errorf("dailySpend = %s, want $10.00", got.DailySpend)
	}
	if got.WeeklySpend != "$10.00" {
		t.Errorf("weeklySpend = %s, want $10.00", got.WeeklySpend)
	}
	if got.MonthlySpend != "$15.00" {
		t.Errorf("monthlySpend = %s, want $15.00", got.MonthlySpend)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	cases := []struct {
		name     string
		accounts []AccountTransactions
	}{
		{"no accounts", nil},
		{"no transactions", singleAccount()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Aggregate(tc.accounts, wednesday).Format()
			for field, v := range map[string]string{
				"dailySpend":     got.DailySpend,
				"weeklySpend":    got.WeeklySpend,
				"monthlySpend":   got.MonthlySpend,
				"thisWeekSpend":  got.ThisWeekSpend,
				"thisMonthSpend": got.ThisMonthSpend,
			} {
				if v != "$0.00" {
					t.Errorf("%s = %s, want $0.00", field, v)
				}
			}
		})
	}
}

func TestAggregateYesterdaySum(t *testing.T) {
	totals := Aggregate(singleAccount(
		tx(t, "2024-06-11", "-3.33", StatusPosted),
		tx(t, "2024-06-11", "-4.50", StatusPosted),
		tx(t, "2024-06-11", "-0.01", StatusPosted),
	), wednesday)

	if want := decimal.RequireFromString("7.84"); !totals.Yesterday.Equal(want) {
		t.Errorf("yesterday = %s, want %s", totals.Yesterday, want)
	}
}

func TestAggregateWindowMonotonicity(t *testing.T) {
	// Posted negative transactions spread over the trailing 30 days.
	totals := Aggregate(singleAccount(
		tx(t, "2024-06-11", "-10.00", StatusPosted), // yesterday
		tx(t, "2024-06-08", "-20.00", StatusPosted), // within 7 days
		tx(t, "2024-05-20", "-40.00", StatusPosted), // within 30 days
	), wednesday)

	if totals.Last30Days.LessThan(totals.Last7Days) {
		t.Errorf("last30Days %s < last7Days %s", totals.Last30Days, totals.Last7Days)
	}
	if totals.Last7Days.LessThan(totals.Yesterday) {
		t.Errorf("last7Days %s < yesterday %s", totals.Last7Days, totals.Yesterday)
	}
}

func TestAggregateTodayExcluded(t *testing.T) {
	cases := []struct {
		name   string
		status TransactionStatus
	}{
		{"pending today", StatusPending},
		{"posted today", StatusPosted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			totals := Aggregate(singleAccount(tx(t, "2024-06-12", "-25.00", tc.status)), wednesday)
			for window, v := range map[string]decimal.Decimal{
				"yesterday":  totals.Yesterday,
				"last7Days":  totals.Last7Days,
				"last30Days": totals.Last30Days,
				"thisWeek":   totals.ThisWeek,
				"thisMonth":  totals.ThisMonth,
			} {
				if !v.IsZero() {
					t.Errorf("%s = %s, want 0", window, v)
				}
			}
		})
	}
}

func TestAggregateEnrollmentDedup(t *testing.T) {
	txs := []Transaction{
		tx(t, "2024-06-11", "-10.00", StatusPosted),
		tx(t, "2024-06-05", "-5.00", StatusPosted),
	}
	single := Aggregate([]AccountTransactions{
		{EnrollmentID: "enr_1", AccountID: "acc_1", Transactions: txs},
	}, wednesday)
	duplicated := Aggregate([]AccountTransactions{
		{EnrollmentID: "enr_1", AccountID: "acc_1", Transactions: txs},
		{EnrollmentID: "enr_1", AccountID: "acc_2", Transactions: txs},
	}, wednesday)

	if !single.Last30Days.Equal(duplicated.Last30Days) {
		t.Errorf("duplicate enrollment changed total: %s vs %s", duplicated.Last30Days, single.Last30Days)
	}

	// Distinct enrollments do count twice.
	separate := Aggregate([]AccountTransactions{
		{EnrollmentID: "enr_1", AccountID: "acc_1", Transactions: txs},
		{EnrollmentID: "enr_2", AccountID: "acc_2", Transactions: txs},
	}, wednesday)
	if !separate.Last30Days.Equal(single.Last30Days.Mul(decimal.NewFromInt(2))) {
		t.Errorf("separate enrollments total = %s, want doubled %s", separate.Last30Days, single.Last30Days.Mul(decimal.NewFromInt(2)))
	}
}

func TestAggregatePositiveAmountsIgnored(t *testing.T) {
	totals := Aggregate(singleAccount(
		tx(t, "2024-06-11", "100.00", StatusPosted), // refund
		tx(t, "2024-06-10", "50.00", StatusPending), // pending credit
		tx(t, "2024-06-11", "-10.00", StatusPosted),
	), wednesday)

	if want := decimal.RequireFromString("10.00"); !totals.Last7Days.Equal(want) {
		t.Errorf("last7Days = %s, want %s", totals.Last7Days, want)
	}
}

func TestAggregatePendingSpendCounted(t *testing.T) {
	// Pending spend from a completed day follows the same rule as posted
	// spend: absolute value, real calendar-date window checks.
	totals := Aggregate(singleAccount(
		tx(t, "2024-06-11", "-8.25", StatusPending),
	), wednesday)

	want := decimal.RequireFromString("8.25")
	if !totals.Yesterday.Equal(want) {
		t.Errorf("yesterday = %s, want %s", totals.Yesterday, want)
	}
	if !totals.Last7Days.Equal(want) {
		t.Errorf("last7Days = %s, want %s", totals.Last7Days, want)
	}
	if !totals.ThisWeek.Equal(want) {
		t.Errorf("thisWeek = %s, want %s", totals.ThisWeek, want)
	}
	if totals.Counts.Pending != 1 {
		t.Errorf("pending count = %d, want 1", totals.Counts.Pending)
	}
}

func TestAggregatePendingAcrossMonthBoundary(t *testing.T) {
	// Saturday 2024-06-01: the week started Monday 2024-05-27. A pending
	// transaction from May 31 (day-of-month 31) is inside this week even
	// though its day number exceeds today's.
	saturday := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	totals := Aggregate(singleAccount(
		tx(t, "2024-05-31", "-12.00", StatusPending),
	), saturday)

	want := decimal.RequireFromString("12.00")
	if !totals.ThisWeek.Equal(want) {
		t.Errorf("thisWeek = %s, want %s", totals.ThisWeek, want)
	}
	// May 31 is outside June's month-to-date window.
	if !totals.ThisMonth.IsZero() {
		t.Errorf("thisMonth = %s, want 0", totals.ThisMonth)
	}
}

func TestAggregateWeekStartsMonday(t *testing.T) {
	// Sunday 2024-06-16: the current week started Monday 2024-06-10.
	sunday := time.Date(2024, 6, 16, 12, 0, 0, 0, time.UTC)
	totals := Aggregate(singleAccount(
		tx(t, "2024-06-10", "-7.00", StatusPosted), // Monday, in week
		tx(t, "2024-06-09", "-9.00", StatusPosted), // prior Sunday, out
	), sunday)

	if want := decimal.RequireFromString("7.00"); !totals.ThisWeek.Equal(want) {
		t.Errorf("thisWeek = %s, want %s", totals.ThisWeek, want)
	}
}

func TestAggregateMidnightBoundaries(t *testing.T) {
	// Just after midnight: yesterday flips, window lower bounds move.
	justPastMidnight := time.Date(2024, 6, 12, 0, 0, 1, 0, time.UTC)
	totals := Aggregate(singleAccount(
		tx(t, "2024-06-11", "-1.00", StatusPosted),  // yesterday
		tx(t, "2024-06-05", "-2.00", StatusPosted),  // exactly 7 days back, included
		tx(t, "2024-06-04", "-4.00", StatusPosted),  // 8 days back, weekly excluded
		tx(t, "2024-05-13", "-8.00", StatusPosted),  // exactly 30 days back, included
		tx(t, "2024-05-12", "-16.00", StatusPosted), // 31 days back, excluded
	), justPastMidnight)

	if want := decimal.RequireFromString("1.00"); !totals.Yesterday.Equal(want) {
		t.Errorf("yesterday = %s, want %s", totals.Yesterday, want)
	}
	if want := decimal.RequireFromString("3.00"); !totals.Last7Days.Equal(want) {
		t.Errorf("last7Days = %s, want %s", totals.Last7Days, want)
	}
	if want := decimal.RequireFromString("15.00"); !totals.Last30Days.Equal(want) {
		t.Errorf("last30Days = %s, want %s", totals.Last30Days, want)
	}
}

func TestAggregateUnknownStatusDiagnosticsOnly(t *testing.T) {
	totals := Aggregate(singleAccount(
		tx(t, "2024-06-11", "-10.00", "reversed"),
	), wednesday)

	if !totals.Last30Days.IsZero() {
		t.Errorf("last30Days = %s, want 0", totals.Last30Days)
	}
	if totals.Counts.Other != 1 {
		t.Errorf("other count = %d, want 1", totals.Counts.Other)
	}
}

func TestAggregateTimezonePolicy(t *testing.T) {
	// 2024-06-12 01:00 in UTC+10 is still 2024-06-11 in UTC. The window
	// math must follow now's location, not the host's.
	loc := time.FixedZone("UTC+10", 10*3600)
	early := time.Date(2024, 6, 12, 1, 0, 0, 0, loc)

	totals := Aggregate(singleAccount(
		tx(t, "2024-06-11", "-10.00", StatusPosted),
	), early)

	if want := decimal.RequireFromString("10.00"); !totals.Yesterday.Equal(want) {
		t.Errorf("yesterday = %s, want %s", totals.Yesterday, want)
	}
}
