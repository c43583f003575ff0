package model

import (
	"fmt"
	"math/big"
	"math/bits"

	"github.com/shopspring/decimal"
)

// MaxPrecision is the largest supported number of decimal digits in a
// Fraction. 10^18 is the largest power of ten below 2^63.
const MaxPrecision = 18

// DefaultPrecision gives parts-per-billion fractions.
const DefaultPrecision = 9

// Fraction is a fixed-point value in [0, 1] expressed as Parts / 10^Precision.
//
// Fractions of different precision are never mixed; arithmetic between them
// panics.
type Fraction struct {
	Parts     uint64 `json:"parts"`
	Precision uint8  `json:"precision"`
}

// Denominator returns 10^precision.
func Denominator(precision uint8) uint64 {
	if precision > MaxPrecision {
		panic(fmt.Sprintf("fraction precision %d exceeds %d", precision, MaxPrecision))
	}
	d := uint64(1)
	for i := uint8(0); i < precision; i++ {
		d *= 10
	}
	return d
}

// ZeroFraction returns 0 at the given precision.
func ZeroFraction(precision uint8) Fraction {
	return Fraction{Parts: 0, Precision: precision}
}

// OneFraction returns the unit fraction at the given precision.
func OneFraction(precision uint8) Fraction {
	return Fraction{Parts: Denominator(precision), Precision: precision}
}

// FractionFromRational approximates p/q, rounding down. A zero denominator
// yields zero; p >= q yields one.
func FractionFromRational(p, q uint64, precision uint8) Fraction {
	denom := Denominator(precision)
	if q == 0 {
		return ZeroFraction(precision)
	}
	if p >= q {
		return OneFraction(precision)
	}
	// p < q, so hi < q and Div64 cannot overflow.
	hi, lo := bits.Mul64(p, denom)
	parts, _ := bits.Div64(hi, lo, q)
	return Fraction{Parts: parts, Precision: precision}
}

// Denominator returns 10^f.Precision.
func (f Fraction) Denominator() uint64 {
	return Denominator(f.Precision)
}

// IsOne reports whether f is the unit fraction.
func (f Fraction) IsOne() bool {
	return f.Parts == f.Denominator()
}

// Add returns f + g. The sum must not exceed one.
func (f Fraction) Add(g Fraction) Fraction {
	f.mustMatch(g)
	sum := f.Parts + g.Parts
	if sum < f.Parts || sum > f.Denominator() {
		panic(fmt.Sprintf("fraction overflow: %s + %s", f, g))
	}
	return Fraction{Parts: sum, Precision: f.Precision}
}

// Sub returns f - g. g must not exceed f.
func (f Fraction) Sub(g Fraction) Fraction {
	f.mustMatch(g)
	if g.Parts > f.Parts {
		panic(fmt.Sprintf("fraction underflow: %s - %s", f, g))
	}
	return Fraction{Parts: f.Parts - g.Parts, Precision: f.Precision}
}

// MulFloor returns floor(amount * f).
func (f Fraction) MulFloor(amount TokenAmount) TokenAmount {
	n := new(big.Int).Mul(amount.big(), new(big.Int).SetUint64(f.Parts))
	n.Quo(n, new(big.Int).SetUint64(f.Denominator()))
	return TokenAmount{v: n}
}

// Decimal returns f as an exact decimal.
func (f Fraction) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(f.Parts), -int32(f.Precision))
}

// String renders f as a fixed-point decimal, e.g. "0.333333333".
func (f Fraction) String() string {
	return f.Decimal().StringFixed(int32(f.Precision))
}

func (f Fraction) mustMatch(g Fraction) {
	if f.Precision != g.Precision {
		panic(fmt.Sprintf("fraction precision mismatch: %d vs %d", f.Precision, g.Precision))
	}
}
