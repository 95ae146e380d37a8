package pipeline

import (
	"strings"

	"budget/internal/core"
)

// Apply returns the items matching f, preserving their relative order.
func Apply(items []core.BudgetItem, f Filter) []core.BudgetItem {
	search := strings.ToLower(f.Search)
	out := make([]core.BudgetItem, 0, len(items))
	for _, it := range items {
		if search != "" &&
			!strings.Contains(strings.ToLower(it.Item), search) &&
			!strings.Contains(strings.ToLower(it.Category), search) {
			continue
		}
		if f.Category != "" && it.Category != f.Category {
			continue
		}
		if f.RequiredOnly && !it.Required.IsRequired() {
			continue
		}
		out = append(out, it)
	}
	return out
}
