package core

import "github.com/shopspring/decimal"

// Summary carries the aggregate figures shown above the table.
type Summary struct {
	TotalCount   int             // canonical rows, excluding a pending row
	VisibleCount int             // rows in view, excluding a pending row
	TotalCost    decimal.Decimal // sum of Subtotal over the view, pending row included
}
