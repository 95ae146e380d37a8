// Package adapters maps between the persisted record shape and the
// application's BudgetItem.
package adapters

import (
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// Record is one row of the budget_items table as stored and as sent over
// the REST backend.
type Record struct {
	ID        *int64              `json:"id,omitempty"`
	Category  *string             `json:"category"`
	Item      *string             `json:"item"`
	Required  *string             `json:"required"`
	Notes     *string             `json:"notes"`
	UnitCost  decimal.NullDecimal `json:"unit_cost"`
	Quantity  decimal.NullDecimal `json:"quantity"`
	SubTotal  decimal.NullDecimal `json:"sub_total"`
	MDContent *string             `json:"md_content"`
	HTML      *string             `json:"html,omitempty"`
	CreatedAt *time.Time          `json:"created_at,omitempty"`
	UpdatedAt *time.Time          `json:"updated_at,omitempty"`
}

var storageFields = map[core.Field]string{
	core.FieldID:        "id",
	core.FieldCategory:  "category",
	core.FieldItem:      "item",
	core.FieldRequired:  "required",
	core.FieldNotes:     "notes",
	core.FieldUnitCost:  "unit_cost",
	core.FieldQuantity:  "quantity",
	core.FieldSubTotal:  "sub_total",
	core.FieldMDContent: "md_content",
}

// StorageField returns the column name for an application field.
func StorageField(f core.Field) (string, bool) {
	col, ok := storageFields[f]
	return col, ok
}

// ToApplicationModel renames record fields to their application names.
// Nullable amounts stay null; null text reads as empty.
func ToApplicationModel(r Record) core.BudgetItem {
	it := core.BudgetItem{
		Category:  deref(r.Category),
		Item:      deref(r.Item),
		Required:  core.Required(deref(r.Required)),
		Notes:     deref(r.Notes),
		UnitCost:  r.UnitCost,
		Quantity:  r.Quantity,
		SubTotal:  r.SubTotal,
		MDContent: deref(r.MDContent),
	}
	if r.ID != nil {
		it.ID = core.PersistedID(*r.ID)
	}
	if r.CreatedAt != nil {
		it.CreatedAt = *r.CreatedAt
	}
	if r.UpdatedAt != nil {
		it.UpdatedAt = *r.UpdatedAt
	}
	return it
}

// ToStorageModel is the inverse of ToApplicationModel. Missing or zero
// amounts are written as null, never as 0. A pending id and zero timestamps
// are left for the store to assign.
func ToStorageModel(it core.BudgetItem) Record {
	r := Record{
		Category:  ptr(it.Category),
		Item:      ptr(it.Item),
		Required:  ptr(string(it.Required)),
		Notes:     ptr(it.Notes),
		UnitCost:  coalesce(it.UnitCost),
		Quantity:  coalesce(it.Quantity),
		SubTotal:  coalesce(it.SubTotal),
		MDContent: ptr(it.MDContent),
	}
	if id, ok := it.ID.Value(); ok {
		r.ID = &id
	}
	if !it.CreatedAt.IsZero() {
		t := it.CreatedAt
		r.CreatedAt = &t
	}
	if !it.UpdatedAt.IsZero() {
		t := it.UpdatedAt
		r.UpdatedAt = &t
	}
	return r
}

// ToStorageValue converts a typed field value (see BudgetItem.FieldValue)
// into the value written to the column, applying the same null coalescing
// as ToStorageModel. Amounts become decimal.Decimal or nil.
func ToStorageValue(f core.Field, v any) any {
	switch x := v.(type) {
	case decimal.NullDecimal:
		if n := coalesce(x); n.Valid {
			return n.Decimal
		}
		return nil
	case decimal.Decimal:
		if x.IsZero() {
			return nil
		}
		return x
	case core.Required:
		return string(x)
	case nil:
		return nil
	}
	return v
}

func coalesce(n decimal.NullDecimal) decimal.NullDecimal {
	if !n.Valid || n.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	return n
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptr(s string) *string { return &s }
