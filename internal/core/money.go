// Package core provides the budget item model and its formatting helpers.
//
// This file contains functions for parsing user-entered amounts and
// rendering them back for display.
package core

import (
	"errors"
	"html/template"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts user input into a nullable non-negative decimal.
//
// Empty input yields a null value. A leading "$" is ignored. Both dot
// (12.34) and comma (12,34) decimal separators are accepted; when both are
// present commas are treated as thousands separators (1,234.50).
//
// Examples:
//
//	ParseAmount("12.34")     -> 12.34
//	ParseAmount("12,34")     -> 12.34
//	ParseAmount("$1,234.50") -> 1234.5
//	ParseAmount("")          -> null
func ParseAmount(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.NullDecimal{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, ErrInvalidAmount
	}
	return decimal.NewNullDecimal(d), nil
}

// FormatCurrency renders a decimal as dollars with thousands separators,
// e.g. "$1,234.50".
func FormatCurrency(d decimal.Decimal) string {
	d = d.Round(2)
	abs := d.Abs()
	fixed := abs.StringFixed(2)
	s := "$" + humanize.BigComma(abs.BigInt()) + fixed[len(fixed)-3:]
	if d.IsNegative() {
		return "-" + s
	}
	return s
}

// FormatAmount renders a nullable decimal for an input field; null is "".
func FormatAmount(n decimal.NullDecimal) string {
	if !n.Valid {
		return ""
	}
	return n.Decimal.String()
}

// EscapeHTML escapes untrusted text for inclusion in HTML fragments built
// outside html/template.
func EscapeHTML(s string) string {
	return template.HTMLEscapeString(s)
}
