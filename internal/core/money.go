// Package core provides money parsing and handling utilities.
//
// Amounts are held as shopspring decimals so that sums over a record set
// are exact and independent of summation order. They are persisted as
// plain decimal text.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a non-negative amount of the ledger's single currency.
type Money struct {
	decimal.Decimal
}

// NewMoney builds Money from a float. Intended for tests and fixtures.
func NewMoney(v float64) Money {
	return Money{Decimal: decimal.NewFromFloat(v)}
}

// ParseMoney parses user input into a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// surrounding whitespace. Signs, exponents, thousands separators, zero and
// empty input are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseMoney("12.34") -> 12.34, nil
//	ParseMoney("12,34") -> 12.34, nil
//	ParseMoney("0")     -> ErrInvalidAmount
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	if strings.Count(s, ".") > 1 || strings.ContainsAny(s, "eE") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m := Money{Decimal: d}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// ParseStoredAmount parses the amount column of a persisted row. It only
// requires the text to be numeric; range checks belong to entry time.
func ParseStoredAmount(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, err
	}
	return Money{Decimal: d}, nil
}

func (m Money) Validate() error {
	if !m.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Text is the persisted form: exact decimal text without trailing zeros.
func (m Money) Text() string {
	return m.Decimal.String()
}
