package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		input   string
		want    Date
		wantErr bool
	}{
		{"2024-06-12", Date{2024, time.June, 12}, false},
		{"2024-02-29", Date{2024, time.February, 29}, false},
		{"2023-02-29", Date{}, true},
		{"2024-13-01", Date{}, true},
		{"12/06/2024", Date{}, true},
		{"", Date{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseDate(tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidDate) {
					t.Fatalf("ParseDate(%q) err = %v, want ErrInvalidDate", tc.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q): %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("ParseDate(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestDateAddDays(t *testing.T) {
	cases := []struct {
		name string
		base Date
		days int
		want Date
	}{
		{"same month", Date{2024, time.June, 12}, -1, Date{2024, time.June, 11}},
		{"month boundary", Date{2024, time.June, 1}, -1, Date{2024, time.May, 31}},
		{"year boundary", Date{2024, time.January, 1}, -1, Date{2023, time.December, 31}},
		{"leap day", Date{2024, time.March, 1}, -1, Date{2024, time.February, 29}},
		{"forward", Date{2024, time.June, 28}, 5, Date{2024, time.July, 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.base.AddDays(tc.days); got != tc.want {
				t.Errorf("%v.AddDays(%d) = %v, want %v", tc.base, tc.days, got, tc.want)
			}
		})
	}
}

func TestDateOrdering(t *testing.T) {
	a := Date{2024, time.May, 31}
	b := Date{2024, time.June, 1}

	if !a.Before(b) {
		t.Errorf("%v should be before %v", a, b)
	}
	if !b.After(a) {
		t.Errorf("%v should be after %v", b, a)
	}
	if a.Before(a) || a.After(a) {
		t.Errorf("%v should not order against itself", a)
	}
	if !a.Equal(a) {
		t.Errorf("%v should equal itself", a)
	}
}

func TestDateOfUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	// 2024-06-12 02:00 UTC is 2024-06-11 21:00 in UTC-5.
	instant := time.Date(2024, 6, 12, 2, 0, 0, 0, time.UTC).In(loc)

	if got, want := DateOf(instant), (Date{2024, time.June, 11}); got != want {
		t.Errorf("DateOf = %v, want %v", got, want)
	}
}

func TestDateString(t *testing.T) {
	if got, want := (Date{2024, time.June, 2}).String(), "2024-06-02"; got != want {
		t.Errorf("String = %q, want %q", got, want)
	}
}
