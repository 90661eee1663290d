package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "-87.50", "-87.50", false},
		{"positive", "12.30", "12.30", false},
		{"integer", "-5", "-5", false},
		{"whitespace", "  -3.25 ", "-3.25", false},
		{"zero", "0", "0", false},
		{"empty", "", "", true},
		{"blank", "   ", "", true},
		{"nan", "NaN", "", true},
		{"garbage", "12.3abc", "", true},
		{"currency symbol", "$10.00", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAmount(tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Fatalf("ParseAmount(%q) err = %v, want ErrInvalidAmount", tc.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q): %v", tc.input, err)
			}
			if want := decimal.RequireFromString(tc.want); !got.Equal(want) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tc.input, got, want)
			}
		})
	}
}

func TestFormatUSD(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"0", "$0.00"},
		{"1", "$1.00"},
		{"10.5", "$10.50"},
		{"999.99", "$999.99"},
		{"1000", "$1,000.00"},
		{"1234.56", "$1,234.56"},
		{"1234567.89", "$1,234,567.89"},
		{"0.005", "$0.01"},
		{"-42.10", "-$42.10"},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			if got := FormatUSD(decimal.RequireFromString(tc.input)); got != tc.want {
				t.Errorf("FormatUSD(%s) = %s, want %s", tc.input, got, tc.want)
			}
		})
	}
}
