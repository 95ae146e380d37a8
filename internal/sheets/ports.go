package sheets

import (
	"context"

	"budget/internal/core"
)

// Ports for outbound adapters.
type (
	// MirrorWriter replaces the contents of a spreadsheet tab with rows.
	MirrorWriter interface {
		WriteAll(ctx context.Context, rows [][]any) error
	}
)

// Header is the first row of the mirrored sheet.
var Header = []any{"ID", "Category", "Item", "Required", "Notes", "Unit cost", "Quantity", "Subtotal", "Stored subtotal", "Updated"}

// Rows converts items into sheet rows, header first. Amounts are written as
// plain decimal strings so the sheet can format them; missing amounts are
// empty cells.
func Rows(items []core.BudgetItem) [][]any {
	rows := make([][]any, 0, len(items)+1)
	rows = append(rows, Header)
	for _, it := range items {
		if it.ID.IsPending() {
			continue
		}
		updated := ""
		if !it.UpdatedAt.IsZero() {
			updated = it.UpdatedAt.UTC().Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []any{
			it.ID.String(),
			it.Category,
			it.Item,
			string(it.Required),
			it.Notes,
			core.FormatAmount(it.UnitCost),
			core.FormatAmount(it.Quantity),
			it.Subtotal().StringFixed(2),
			core.FormatAmount(it.StoredSubtotal()),
			updated,
		})
	}
	return rows
}
