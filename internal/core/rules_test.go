package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundDown(t *testing.T) {
	cases := []struct {
		value string
		step  string
		want  string
	}{
		{"0.123456", "0.001", "0.123"},
		{"5.999", "0.5", "5.5"},
		{"2", "0.1", "2"},
		{"0.0009", "0.001", "0"},
		{"7.77", "0", "7.77"},
	}
	for _, tc := range cases {
		value := decimal.RequireFromString(tc.value)
		step := decimal.RequireFromString(tc.step)
		got := RoundDown(value, step)
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("RoundDown(%s, %s) = %s, want %s", tc.value, tc.step, got.String(), tc.want)
		}
	}
}

func TestFloorToLot(t *testing.T) {
	lot := LotConstraint{
		MinQty:   decimal.RequireFromString("0.001"),
		StepSize: decimal.RequireFromString("0.0001"),
	}
	got := FloorToLot(decimal.RequireFromString("0.12349"), lot)
	if !got.Equal(decimal.RequireFromString("0.1234")) {
		t.Fatalf("FloorToLot() = %s, want 0.1234", got.String())
	}
}

func TestRoundSignificant(t *testing.T) {
	cases := []struct {
		value  string
		digits int32
		want   string
	}{
		// quantities from a 3-level dip ladder against 17360 available at price 50000
		{"0.0385777777", 4, "0.03858"},
		{"0.0868", 4, "0.0868"},
		{"0.1984", 4, "0.1984"},
		{"12345.6", 4, "12350"},
		{"0", 4, "0"},
	}
	for _, tc := range cases {
		got := RoundSignificant(decimal.RequireFromString(tc.value), tc.digits)
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("RoundSignificant(%s, %d) = %s, want %s", tc.value, tc.digits, got.String(), tc.want)
		}
	}
}
