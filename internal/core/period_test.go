package core

import (
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	cases := []struct {
		input   string
		want    Period
		wantErr bool
	}{
		{"week", PeriodWeek, false},
		{"month", PeriodMonth, false},
		{"year", PeriodYear, false},
		{"", PeriodWeek, false},
		{"quarter", "", true},
		{"WEEK", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParsePeriod(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParsePeriod(%q) = %v, want error", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePeriod(%q): %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("ParsePeriod(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestPeriodRange(t *testing.T) {
	now := time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)
	cases := []struct {
		period   Period
		wantFrom Date
	}{
		{PeriodWeek, Date{2024, time.June, 5}},
		{PeriodMonth, Date{2024, time.May, 12}},
		{PeriodYear, Date{2023, time.June, 12}},
	}
	for _, tc := range cases {
		t.Run(string(tc.period), func(t *testing.T) {
			from, to := tc.period.Range(now)
			if from != tc.wantFrom {
				t.Errorf("from = %v, want %v", from, tc.wantFrom)
			}
			if want := (Date{2024, time.June, 12}); to != want {
				t.Errorf("to = %v, want %v", to, want)
			}
		})
	}
}

func TestPeriodLabel(t *testing.T) {
	if got := PeriodMonth.Label(); got != "this month" {
		t.Errorf("month label = %q", got)
	}
	if got := PeriodWeek.Label(); got != "this week" {
		t.Errorf("week label = %q", got)
	}
}
