// Package money holds the fixed-point monetary types used by the rule engine.
//
// Balances, losses and payouts are Cents (int64 minor units). Percentages are
// BasisPoints (hundredths of a percent). Prices and quantities stay as
// decimal.Decimal and are converted to Cents with FromDecimal at the point a
// monetary value is produced.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is an amount in minor currency units.
type Cents int64

// BasisPoints is a percentage scaled by 100: 80.00% is 8000.
type BasisPoints int64

const (
	centsPerUnit   = 100
	bpsPerPercent  = 100
	bpsPerFraction = 10000
)

var hundred = decimal.NewFromInt(centsPerUnit)

func FromUnits(units int64) Cents {
	return Cents(units * centsPerUnit)
}

// FromDecimal converts a major-unit decimal to Cents, rounding half away from zero.
func FromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Mul(hundred).Round(0).IntPart())
}

// Parse reads a major-unit amount such as "2500.00" or "-12.5".
func Parse(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("money: empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

func MustParse(s string) Cents {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

func (c Cents) Add(o Cents) Cents { return c + o }
func (c Cents) Sub(o Cents) Cents { return c - o }

func (c Cents) IsPositive() bool { return c > 0 }
func (c Cents) IsNegative() bool { return c < 0 }

// NonNegative clamps negative amounts to zero.
func (c Cents) NonNegative() Cents {
	if c < 0 {
		return 0
	}
	return c
}

func Max(a, b Cents) Cents {
	if a > b {
		return a
	}
	return b
}

func Min(a, b Cents) Cents {
	if a < b {
		return a
	}
	return b
}

// ApplyPercent returns round_half_up(c × p / 100%) in cents.
func (c Cents) ApplyPercent(p BasisPoints) Cents {
	v := decimal.NewFromInt(int64(c)).
		Mul(decimal.NewFromInt(int64(p))).
		Div(decimal.NewFromInt(bpsPerFraction))
	return Cents(v.Round(0).IntPart())
}

func ParsePercent(s string) (BasisPoints, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0, fmt.Errorf("money: empty percent")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("money: parse percent %q: %w", s, err)
	}
	return BasisPoints(d.Mul(decimal.NewFromInt(bpsPerPercent)).Round(0).IntPart()), nil
}

func PercentFromUnits(pct int64) BasisPoints {
	return BasisPoints(pct * bpsPerPercent)
}

func (p BasisPoints) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -2)
}

func (p BasisPoints) String() string {
	return p.Decimal().StringFixed(2)
}
