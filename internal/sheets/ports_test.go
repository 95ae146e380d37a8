package sheets

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"budget/internal/core"
)

func TestRows(t *testing.T) {
	updated := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	items := []core.BudgetItem{
		core.NewPendingItem(),
		{
			ID:        core.PersistedID(7),
			Category:  "Flowers",
			Item:      "Bouquet",
			Required:  core.RequiredYes,
			UnitCost:  decimal.NewNullDecimal(decimal.RequireFromString("12.5")),
			Quantity:  decimal.NewNullDecimal(decimal.NewFromInt(2)),
			SubTotal:  decimal.NewNullDecimal(decimal.NewFromInt(20)),
			UpdatedAt: updated,
		},
		{ID: core.PersistedID(8), Category: "Venue", Item: "Hall", Required: "No"},
	}

	want := [][]any{
		Header,
		{"7", "Flowers", "Bouquet", "Yes", "", "12.5", "2", "25.00", "20", "2024-05-01 09:30:00"},
		{"8", "Venue", "Hall", "No", "", "", "", "0.00", "", ""},
	}
	if diff := cmp.Diff(want, Rows(items)); diff != "" {
		t.Errorf("Rows() mismatch (-want +got):\n%s", diff)
	}
}
