package util

import "testing"

func TestCleanCurrency(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  float64
	}{
		{name: "rupiah dot thousands comma decimals", input: "Rp 1.500.000,00", want: 1500000},
		{name: "comma thousands dot decimals", input: "1,000.00", want: 1000},
		{name: "empty", input: "", want: 0},
		{name: "letters", input: "abc", want: 0},
		{name: "int passthrough", input: 100, want: 100},
		{name: "float passthrough", input: 12.5, want: 12.5},
		{name: "comma two decimals", input: "1250,50", want: 1250.5},
		{name: "comma thousands", input: "12,500", want: 12500},
		{name: "several comma thousands", input: "1,250,000", want: 1250000},
		{name: "plain dot decimal", input: "75000.50", want: 75000.5},
		{name: "rp with dot prefix", input: "Rp. 2.750,25", want: 2750.25},
		{name: "idr prefix", input: "IDR 3,000.00", want: 3000},
		{name: "spaces inside", input: "  1 250 ", want: 1250},
		{name: "trailing dash", input: "1500,-", want: 1500},
		{name: "quoted", input: `"0,25"`, want: 0.25},
		{name: "nan is invalid", input: "NaN", want: 0},
		{name: "nil", input: nil, want: 0},
		{name: "unknown type", input: struct{}{}, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CleanCurrency(tc.input)
			if got != tc.want {
				t.Fatalf("CleanCurrency(%v) = %v want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestParseNumberState(t *testing.T) {
	cases := []struct {
		input string
		want  NumberState
	}{
		{input: "", want: NumberAbsent},
		{input: "   ", want: NumberAbsent},
		{input: "Rp", want: NumberInvalid},
		{input: "n/a", want: NumberInvalid},
		{input: "0", want: NumberOK},
		{input: "0,00", want: NumberOK},
	}
	for _, tc := range cases {
		got := ParseNumberString(tc.input)
		if got.State != tc.want {
			t.Fatalf("ParseNumberString(%q).State = %v want %v", tc.input, got.State, tc.want)
		}
		if got.Value != 0 {
			t.Fatalf("ParseNumberString(%q).Value = %v want 0", tc.input, got.Value)
		}
	}
}

func TestNormalizeNumberTokenDotOnlyUnchanged(t *testing.T) {
	if got := NormalizeNumberToken("1.500.000"); got != "1.500.000" {
		t.Fatalf("got %q", got)
	}
}
