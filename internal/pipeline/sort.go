package pipeline

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// sortKey is a column value prepared for comparison. Null amounts and the
// pending id are not numeric.
type sortKey struct {
	num     decimal.Decimal
	numeric bool
	text    string
}

func keyOf(it core.BudgetItem, f core.Field) sortKey {
	switch f {
	case core.FieldID:
		if id, ok := it.ID.Value(); ok {
			return numberKey(decimal.NewFromInt(id))
		}
		return sortKey{text: it.ID.String()}
	case core.FieldUnitCost:
		return amountKey(it.UnitCost)
	case core.FieldQuantity:
		return amountKey(it.Quantity)
	case core.FieldSubTotal:
		// Sorted by the computed subtotal, not the stored sub_total.
		return numberKey(it.Subtotal())
	}
	return sortKey{text: it.FieldText(f)}
}

func numberKey(d decimal.Decimal) sortKey {
	return sortKey{num: d, numeric: true, text: d.String()}
}

func amountKey(n decimal.NullDecimal) sortKey {
	if !n.Valid {
		return sortKey{}
	}
	return numberKey(n.Decimal)
}

// compareKeys compares numerically when both sides are numbers and as
// lowercase strings otherwise.
func compareKeys(a, b sortKey) int {
	if a.numeric && b.numeric {
		return a.num.Cmp(b.num)
	}
	return strings.Compare(strings.ToLower(a.text), strings.ToLower(b.text))
}

// SortItems sorts in place, keeping equal keys in their input order. An
// empty field leaves the order untouched.
func SortItems(items []core.BudgetItem, s Sort) {
	if s.Field == "" {
		return
	}
	slices.SortStableFunc(items, func(a, b core.BudgetItem) int {
		c := compareKeys(keyOf(a, s.Field), keyOf(b, s.Field))
		if !s.Ascending {
			return -c
		}
		return c
	})
}
