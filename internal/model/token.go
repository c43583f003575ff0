package model

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// TokenAmount is a non-negative token quantity of arbitrary precision.
//
// Values are immutable: every arithmetic method allocates a new result, so
// TokenAmount can be copied freely. The zero value is zero tokens.
type TokenAmount struct {
	v *big.Int
}

// NewTokenAmount creates an amount from a uint64.
func NewTokenAmount(u uint64) TokenAmount {
	return TokenAmount{v: new(big.Int).SetUint64(u)}
}

// TokenAmountFromBig copies b into a new amount. Negative values are rejected.
func TokenAmountFromBig(b *big.Int) (TokenAmount, error) {
	if b == nil {
		return TokenAmount{}, nil
	}
	if b.Sign() < 0 {
		return TokenAmount{}, fmt.Errorf("negative token amount %s", b)
	}
	return TokenAmount{v: new(big.Int).Set(b)}, nil
}

// ParseTokenAmount parses a base-10 token amount.
func ParseTokenAmount(s string) (TokenAmount, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return TokenAmount{}, fmt.Errorf("invalid token amount %q", s)
	}
	return TokenAmountFromBig(b)
}

// MustParseTokenAmount is ParseTokenAmount for constants and tests.
func MustParseTokenAmount(s string) TokenAmount {
	a, err := ParseTokenAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a TokenAmount) big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// Big returns a copy of the amount as a big.Int.
func (a TokenAmount) Big() *big.Int {
	return new(big.Int).Set(a.big())
}

// Add returns a + b.
func (a TokenAmount) Add(b TokenAmount) TokenAmount {
	return TokenAmount{v: new(big.Int).Add(a.big(), b.big())}
}

// Sub returns a - b, or an error if b exceeds a.
func (a TokenAmount) Sub(b TokenAmount) (TokenAmount, error) {
	if a.Cmp(b) < 0 {
		return TokenAmount{}, fmt.Errorf("token underflow: %s - %s", a, b)
	}
	return TokenAmount{v: new(big.Int).Sub(a.big(), b.big())}, nil
}

// Cmp compares a and b like big.Int.Cmp.
func (a TokenAmount) Cmp(b TokenAmount) int {
	return a.big().Cmp(b.big())
}

// IsZero reports whether the amount is zero.
func (a TokenAmount) IsZero() bool {
	return a.big().Sign() == 0
}

// String renders the amount in base 10.
func (a TokenAmount) String() string {
	return a.big().String()
}

// MarshalText encodes the amount as a base-10 string.
func (a TokenAmount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes a base-10 string.
func (a *TokenAmount) UnmarshalText(text []byte) error {
	parsed, err := ParseTokenAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON encodes the amount as a quoted base-10 string so that values
// above 2^53 survive JSON consumers.
func (a TokenAmount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a quoted or bare base-10 integer.
func (a *TokenAmount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("token amount: %w", err)
		}
		s = n.String()
	}
	return a.UnmarshalText([]byte(s))
}
