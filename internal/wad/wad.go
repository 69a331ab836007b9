package wad

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits carried by a Num.
const Decimals = 18

var (
	ErrDivisionByZero      = errors.New("division by zero")
	ErrArithmeticOverflow  = errors.New("arithmetic overflow")
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")
	ErrInvalidValue        = errors.New("invalid fixed-point value")
)

var (
	one  = *uint256.NewInt(1_000_000_000_000_000_000)
	zero uint256.Int
)

// Num is an unsigned fixed-point value scaled by 10^18 (WAD).
// The zero value is 0. Num is immutable: every operation returns a new value.
type Num struct {
	u uint256.Int
}

// Zero returns 0.
func Zero() Num {
	return Num{}
}

// One returns 1.0 (10^18 raw).
func One() Num {
	return Num{u: one}
}

// FromUnits returns n whole units, i.e. n * 10^18 raw.
func FromUnits(n uint64) Num {
	var r Num
	r.u.Mul(uint256.NewInt(n), &one)
	return r
}

// FromRaw wraps an already scaled integer.
func FromRaw(raw *uint256.Int) Num {
	var r Num
	r.u.Set(raw)
	return r
}

// FromRawUint64 wraps an already scaled uint64.
func FromRawUint64(raw uint64) Num {
	return Num{u: *uint256.NewInt(raw)}
}

// FromDecimal converts an exact decimal into a Num. Negative values, values with
// more than 18 fractional digits and values that do not fit in 256 bits are rejected.
func FromDecimal(d decimal.Decimal) (Num, error) {
	if d.IsNegative() {
		return Num{}, fmt.Errorf("%w: %s is negative", ErrInvalidValue, d.String())
	}
	scaled := d.Shift(Decimals)
	if !scaled.IsInteger() {
		return Num{}, fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidValue, d.String(), Decimals)
	}
	u, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return Num{}, fmt.Errorf("%w: %s", ErrArithmeticOverflow, d.String())
	}
	return Num{u: *u}, nil
}

// Parse reads a human decimal string such as "0.03" or "1000000".
func Parse(s string) (Num, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Num{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return FromDecimal(d)
}

// MustParse is Parse for constants. It panics on malformed input.
func MustParse(s string) Num {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

// Mul returns a*b/WAD, truncated toward zero.
func Mul(a, b Num) (Num, error) {
	var prod uint256.Int
	if _, overflow := prod.MulOverflow(&a.u, &b.u); overflow {
		return Num{}, fmt.Errorf("%w: %s * %s", ErrArithmeticOverflow, a, b)
	}
	var r Num
	r.u.Div(&prod, &one)
	return r, nil
}

// Div returns a*WAD/b, truncated toward zero.
func Div(a, b Num) (Num, error) {
	if b.u.IsZero() {
		return Num{}, ErrDivisionByZero
	}
	var scaled uint256.Int
	if _, overflow := scaled.MulOverflow(&a.u, &one); overflow {
		return Num{}, fmt.Errorf("%w: %s / %s", ErrArithmeticOverflow, a, b)
	}
	var r Num
	r.u.Div(&scaled, &b.u)
	return r, nil
}

// MulDiv returns n*num/den, truncated toward zero. It scales a value by an
// integer ratio such as elapsed/term without losing precision in between.
func MulDiv(n Num, num, den uint64) (Num, error) {
	if den == 0 {
		return Num{}, ErrDivisionByZero
	}
	var prod uint256.Int
	if _, overflow := prod.MulOverflow(&n.u, uint256.NewInt(num)); overflow {
		return Num{}, fmt.Errorf("%w: %s * %d", ErrArithmeticOverflow, n, num)
	}
	var r Num
	r.u.Div(&prod, uint256.NewInt(den))
	return r, nil
}

// Add returns a+b.
func Add(a, b Num) (Num, error) {
	var r Num
	if _, overflow := r.u.AddOverflow(&a.u, &b.u); overflow {
		return Num{}, fmt.Errorf("%w: %s + %s", ErrArithmeticOverflow, a, b)
	}
	return r, nil
}

// Sum adds all values, failing on the first overflow.
func Sum(vals ...Num) (Num, error) {
	total := Zero()
	for _, v := range vals {
		var err error
		if total, err = Add(total, v); err != nil {
			return Num{}, err
		}
	}
	return total, nil
}

// Sub returns a-b. It never wraps: b > a yields ErrArithmeticUnderflow.
func Sub(a, b Num) (Num, error) {
	if a.u.Lt(&b.u) {
		return Num{}, fmt.Errorf("%w: %s - %s", ErrArithmeticUnderflow, a, b)
	}
	var r Num
	r.u.Sub(&a.u, &b.u)
	return r, nil
}

// Delta returns |a-b| and whether a-b is negative.
func Delta(a, b Num) (Num, bool) {
	var r Num
	if a.u.Lt(&b.u) {
		r.u.Sub(&b.u, &a.u)
		return r, true
	}
	r.u.Sub(&a.u, &b.u)
	return r, false
}

// Min returns the smaller of a and b.
func Min(a, b Num) Num {
	if a.LT(b) {
		return a
	}
	return b
}

// Half splits n into two parts whose sum is exactly n. The second part takes the odd unit.
func Half(n Num) (Num, Num) {
	var lo, hi Num
	lo.u.Rsh(&n.u, 1)
	hi.u.Sub(&n.u, &lo.u)
	return lo, hi
}

func (n Num) Cmp(o Num) int { return n.u.Cmp(&o.u) }
func (n Num) LT(o Num) bool { return n.u.Lt(&o.u) }
func (n Num) GT(o Num) bool { return n.u.Gt(&o.u) }
func (n Num) EQ(o Num) bool { return n.u.Eq(&o.u) }
func (n Num) LTE(o Num) bool {
	return !n.u.Gt(&o.u)
}
func (n Num) GTE(o Num) bool {
	return !n.u.Lt(&o.u)
}

func (n Num) IsZero() bool {
	return n.u.Eq(&zero)
}

// Raw returns a copy of the scaled integer.
func (n Num) Raw() *uint256.Int {
	return n.u.Clone()
}

// BigInt returns the scaled integer as a big.Int.
func (n Num) BigInt() *big.Int {
	return n.u.ToBig()
}

// Decimal returns the human value as an exact decimal.
func (n Num) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(n.u.ToBig(), -Decimals)
}

// String renders the human value, e.g. "0.03".
func (n Num) String() string {
	return n.Decimal().String()
}

// MarshalText implements encoding.TextMarshaler using the human decimal form.
func (n Num) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *Num) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*n = v
	return nil
}
