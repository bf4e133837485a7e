package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAndString(t *testing.T) {
	cases := []struct {
		in   string
		want Cents
		out  string
	}{
		{"2500.00", 250000, "2500.00"},
		{"0.005", 1, "0.01"},
		{"-0.005", -1, "-0.01"},
		{"12.344", 1234, "12.34"},
		{"100", 10000, "100.00"},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q) err=%v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q)=%d want=%d", tc.in, got, tc.want)
		}
		if got.String() != tc.out {
			t.Fatalf("String()=%s want=%s", got.String(), tc.out)
		}
	}
	if _, err := Parse("abc"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestApplyPercentRoundsHalfUp(t *testing.T) {
	if got := MustParse("2000.00").ApplyPercent(8000); got != MustParse("1600.00") {
		t.Fatalf("amount=%s want=1600.00", got)
	}
	// 0.05 * 50% = 0.025 -> 0.03
	if got := Cents(5).ApplyPercent(5000); got != 3 {
		t.Fatalf("amount=%d want=3", got)
	}
	// 0.01 * 33.33% = 0.003333 -> 0.00
	if got := Cents(1).ApplyPercent(3333); got != 0 {
		t.Fatalf("amount=%d want=0", got)
	}
}

func TestFromDecimal(t *testing.T) {
	d := decimal.RequireFromString("-10.125")
	if got := FromDecimal(d); got != -1013 {
		t.Fatalf("FromDecimal=%d want=-1013", got)
	}
}

func TestParsePercent(t *testing.T) {
	p, err := ParsePercent("80.00%")
	if err != nil || p != 8000 {
		t.Fatalf("p=%d err=%v want=8000", p, err)
	}
	if p.String() != "80.00" {
		t.Fatalf("String()=%s", p.String())
	}
}

func TestClamp(t *testing.T) {
	if Cents(-5).NonNegative() != 0 || Cents(5).NonNegative() != 5 {
		t.Fatalf("NonNegative mismatch")
	}
	if Max(3, 4) != 4 || Min(3, 4) != 3 {
		t.Fatalf("Max/Min mismatch")
	}
}
