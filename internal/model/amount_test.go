package model

import (
	"math/big"
	"testing"
)

func TestToRawAmount(t *testing.T) {
	cases := []struct {
		amount   float64
		decimals uint8
		want     string
	}{
		{0.001, 18, "1000000000000000"},
		{1234.5, 18, "1234500000000000000000"},
		{1, 6, "1000000"},
		{0, 18, "0"},
		{0.000001, 6, "1"},
		{42, 0, "42"},
	}

	for _, tc := range cases {
		got, err := ToRawAmount(tc.amount, tc.decimals)
		if err != nil {
			t.Fatalf("ToRawAmount(%v, %d): %v", tc.amount, tc.decimals, err)
		}
		if got.String() != tc.want {
			t.Fatalf("ToRawAmount(%v, %d) = %s, want %s", tc.amount, tc.decimals, got, tc.want)
		}
	}
}

func TestToRawAmountNegative(t *testing.T) {
	if _, err := ToRawAmount(-1, 18); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

func TestParseDecimalAmountTruncates(t *testing.T) {
	got, err := ParseDecimalAmount("0.1234567", 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != "123456" {
		t.Fatalf("got %s, want 123456", got)
	}
}

func TestParseDecimalAmountRejectsScientific(t *testing.T) {
	if _, err := ParseDecimalAmount("1e18", 18); err == nil {
		t.Fatalf("expected error for scientific notation")
	}
}

func TestAmountRoundTrip(t *testing.T) {
	for decimals := uint8(0); decimals <= 18; decimals++ {
		raw, err := ParseDecimalAmount("1234.5", decimals)
		if err != nil {
			t.Fatalf("decimals %d: %v", decimals, err)
		}
		back := FormatRawAmount(raw, decimals)
		reparsed, err := ParseDecimalAmount(back, decimals)
		if err != nil {
			t.Fatalf("decimals %d reparse: %v", decimals, err)
		}
		if raw.Cmp(reparsed) != 0 {
			t.Fatalf("decimals %d: %s did not round-trip (%s -> %s)", decimals, raw, back, reparsed)
		}
	}
}

func TestFormatRawAmount(t *testing.T) {
	raw, _ := new(big.Int).SetString("1234500000000000000000", 10)
	if got := FormatRawAmount(raw, 18); got != "1234.5" {
		t.Fatalf("got %q, want 1234.5", got)
	}
	if got := FormatRawAmount(big.NewInt(1), 6); got != "0.000001" {
		t.Fatalf("got %q, want 0.000001", got)
	}
}
