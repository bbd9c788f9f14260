// Package core provides money parsing and handling utilities.
//
// Amounts are kept as signed integer cents. Parsing and formatting go through
// decimal arithmetic so that user input never passes through a float.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrAmountOverflow = errors.New("amount out of range")
)

// MaxCents bounds the magnitude of every parsed amount and stored balance.
const MaxCents int64 = 10_000_000_000_000

// Money is a signed amount in cents.
type Money struct {
	Cents int64
}

var (
	maxCents = decimal.NewFromInt(MaxCents)
	minCents = decimal.NewFromInt(-MaxCents)
)

// ParseMoney converts a decimal string to Money with half-up rounding to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign. Zero is a valid amount. Amounts beyond MaxCents
// are rejected.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234
//	ParseMoney("-12,34") -> -1234
//	ParseMoney("1.005")  -> 101
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "eE") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Round(2).Shift(2)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// IsAmount reports whether s parses as Money.
func IsAmount(s string) bool {
	_, err := ParseMoney(s)
	return err == nil
}

// FromDecimal rounds d to cents.
func FromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Round(2).Shift(2).IntPart()}
}

// Decimal returns the amount as a decimal value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// CheckedAdd is Add that reports int64 overflow instead of wrapping.
func (m Money) CheckedAdd(o Money) (Money, error) {
	sum := m.Cents + o.Cents
	if (o.Cents > 0 && sum < m.Cents) || (o.Cents < 0 && sum > m.Cents) {
		return Money{}, ErrAmountOverflow
	}
	return Money{Cents: sum}, nil
}

// InRange reports whether m is within MaxCents of zero.
func (m Money) InRange() bool {
	return m.Cents >= -MaxCents && m.Cents <= MaxCents
}

func (m Money) Neg() Money {
	return Money{Cents: -m.Cents}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

// String formats the amount with exactly two decimals, e.g. "-30.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Float64 returns the amount for chart rendering. Use Cents for arithmetic.
func (m Money) Float64() float64 {
	f, _ := m.Decimal().Float64()
	return f
}
