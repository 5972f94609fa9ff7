// Package core provides the expense domain model, field validation and the
// in-memory aggregation used for reporting.
//
// This file contains amount parsing and formatting. Amounts are plain
// floating-point values; no currency is attached.
package core

import (
	"math"
	"strconv"
	"strings"
)

// ParseAmount converts a decimal string to a positive amount.
//
// Surrounding whitespace is ignored. Zero, negative, NaN and infinite values
// are rejected with ErrInvalidAmount, as is anything strconv cannot parse.
//
// Examples:
//
//	ParseAmount("500.0")  -> 500, nil
//	ParseAmount(" 0.01 ") -> 0.01, nil
//	ParseAmount("0")      -> 0, ErrInvalidAmount
//	ParseAmount("-100")   -> 0, ErrInvalidAmount
//	ParseAmount("abc")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if err := ValidateAmount(v); err != nil {
		return 0, err
	}
	return v, nil
}

// ValidateAmount enforces amount > 0 on a finite value.
func ValidateAmount(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// FormatAmount renders an amount with two decimals for display.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
