package http

import (
	"html/template"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(sanitizeText(s))
}

// sanitizeText removes control characters except tab, newline and carriage
// return.
func sanitizeText(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"currency": core.FormatCurrency,
		"amount":   core.FormatAmount,
		"nullCurrency": func(n decimal.NullDecimal) string {
			if !n.Valid {
				return ""
			}
			return core.FormatCurrency(n.Decimal)
		},
		"comma": func(n int) string { return humanize.Comma(int64(n)) },
		"since": humanize.Time,
	}
}
