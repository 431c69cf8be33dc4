package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"12.34", 1234, false},
		{"12,34", 1234, false},
		{"12", 1200, false},
		{"0.5", 50, false},
		{"12.345", 1235, false}, // half-up on third decimal
		{"12.344", 1234, false},
		{"", 0, true},
		{"-5", 0, true},
		{"+5", 0, true},
		{"0", 0, true},
		{"abc", 0, true},
		{"1.2.3", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDecimalToCents(%q) expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDecimalToCents(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDecimalToCents(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestMoneyDivRound(t *testing.T) {
	cases := []struct {
		cents int64
		n     int64
		want  int64
	}{
		{9000, 3, 3000},
		{10000, 3, 3333},
		{100, 3, 33},
		{101, 2, 51}, // .5 rounds up
		{100, 0, 0},
	}
	for _, tc := range cases {
		got := Money{Cents: tc.cents}.DivRound(tc.n)
		if got.Cents != tc.want {
			t.Errorf("Money{%d}.DivRound(%d) = %d, want %d", tc.cents, tc.n, got.Cents, tc.want)
		}
	}
}

func TestMoneyString(t *testing.T) {
	if got := (Money{Cents: 1234}).String(); got != "12.34" {
		t.Errorf("got %q, want 12.34", got)
	}
	if got := (Money{Cents: -5}).String(); got != "-0.05" {
		t.Errorf("got %q, want -0.05", got)
	}
	if got := (Money{}).String(); got != "0.00" {
		t.Errorf("got %q, want 0.00", got)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -10}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}
