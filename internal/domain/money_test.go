package domain

import (
	"math"
	"testing"
)

func TestCentsFromAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		expected int64
		wantErr  bool
	}{
		{name: "zero", amount: 0, expected: 0},
		{name: "whole amount", amount: 250, expected: 25000},
		{name: "two decimals", amount: 199.99, expected: 19999},
		{name: "rounds up", amount: 10.006, expected: 1001},
		{name: "rounds down", amount: 10.004, expected: 1000},
		{name: "float representation of 0.1+0.2", amount: 0.1 + 0.2, expected: 30},
		{name: "negative rejected", amount: -1, wantErr: true},
		{name: "NaN rejected", amount: math.NaN(), wantErr: true},
		{name: "positive infinity rejected", amount: math.Inf(1), wantErr: true},
		{name: "negative infinity rejected", amount: math.Inf(-1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CentsFromAmount(tt.amount)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("CentsFromAmount(%v) expected error, got %d", tt.amount, got)
				}
				if ErrorCode(err) != EINVALID {
					t.Errorf("error code = %q, want %q", ErrorCode(err), EINVALID)
				}
				return
			}
			if err != nil {
				t.Fatalf("CentsFromAmount(%v) unexpected error: %v", tt.amount, err)
			}
			if got != tt.expected {
				t.Errorf("CentsFromAmount(%v) = %d, want %d", tt.amount, got, tt.expected)
			}
		})
	}
}

func TestAmountFromCents(t *testing.T) {
	if got := AmountFromCents(19999); got != 199.99 {
		t.Errorf("AmountFromCents(19999) = %v, want 199.99", got)
	}
	if got := AmountFromCents(0); got != 0 {
		t.Errorf("AmountFromCents(0) = %v, want 0", got)
	}
}

func TestFormatCents(t *testing.T) {
	tests := []struct {
		cents    int64
		expected string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{1050, "10.50"},
		{19999, "199.99"},
	}

	for _, tt := range tests {
		if got := FormatCents(tt.cents); got != tt.expected {
			t.Errorf("FormatCents(%d) = %q, want %q", tt.cents, got, tt.expected)
		}
	}
}
