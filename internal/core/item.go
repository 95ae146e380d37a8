package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RequiredYes      Required = "Yes"
	RequiredNo       Required = "No"
	RequiredMaybe    Required = "Maybe"
	RequiredOptional Required = "Optional"
)

// Application-side field names. Storage column names live in adapters.
const (
	FieldID        Field = "id"
	FieldCategory  Field = "category"
	FieldItem      Field = "item"
	FieldRequired  Field = "required"
	FieldNotes     Field = "notes"
	FieldUnitCost  Field = "unitCost"
	FieldQuantity  Field = "quantity"
	FieldSubTotal  Field = "subTotal"
	FieldMDContent Field = "mdContent"
)

type (
	// Required is free text when loaded from storage; the UI restricts
	// edits to the four known values.
	Required string

	Field string

	// ItemID is either Pending (a client-only row not yet stored) or
	// Persisted with the id assigned by the store.
	ItemID struct {
		value     int64
		persisted bool
	}

	BudgetItem struct {
		ID        ItemID
		Category  string
		Item      string // display name
		Required  Required
		Notes     string
		UnitCost  decimal.NullDecimal
		Quantity  decimal.NullDecimal
		SubTotal  decimal.NullDecimal // stored value, never recomputed
		MDContent string
		CreatedAt time.Time
		UpdatedAt time.Time
	}
)

// RequiredValues lists the values offered by the UI selector.
var RequiredValues = []Required{RequiredYes, RequiredNo, RequiredMaybe, RequiredOptional}

var (
	editableFields = map[Field]bool{
		FieldCategory:  true,
		FieldItem:      true,
		FieldRequired:  true,
		FieldNotes:     true,
		FieldUnitCost:  true,
		FieldQuantity:  true,
		FieldMDContent: true,
	}
	sortableFields = map[Field]bool{
		FieldID:       true,
		FieldCategory: true,
		FieldItem:     true,
		FieldRequired: true,
		FieldNotes:    true,
		FieldUnitCost: true,
		FieldQuantity: true,
		FieldSubTotal: true,
	}
)

const pendingKey = "new"

func PendingID() ItemID { return ItemID{} }

func PersistedID(id int64) ItemID { return ItemID{value: id, persisted: true} }

// ParseItemID is the inverse of ItemID.String.
func ParseItemID(s string) (ItemID, error) {
	s = strings.TrimSpace(s)
	if s == pendingKey {
		return PendingID(), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return ItemID{}, &ValidationError{Field: string(FieldID), Reason: "invalid item id " + strconv.Quote(s)}
	}
	return PersistedID(n), nil
}

func (id ItemID) IsPending() bool { return !id.persisted }

// Value returns the stored id; ok is false for a pending row.
func (id ItemID) Value() (int64, bool) { return id.value, id.persisted }

// String returns the row key used in URLs and DOM ids.
func (id ItemID) String() string {
	if !id.persisted {
		return pendingKey
	}
	return strconv.FormatInt(id.value, 10)
}

// ParseRequired validates UI input against the four known values.
func ParseRequired(s string) (Required, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RequiredNo, nil
	}
	for _, r := range RequiredValues {
		if strings.EqualFold(s, string(r)) {
			return r, nil
		}
	}
	return "", &ValidationError{Field: string(FieldRequired), Reason: "must be one of Yes, No, Maybe, Optional"}
}

// IsRequired reports whether the value starts with "y", ignoring case.
func (r Required) IsRequired() bool {
	return strings.HasPrefix(strings.ToLower(string(r)), "y")
}

func ParseField(s string) (Field, bool) {
	f := Field(strings.TrimSpace(s))
	return f, editableFields[f] || sortableFields[f]
}

func (f Field) Editable() bool { return editableFields[f] }

func (f Field) Sortable() bool { return sortableFields[f] }

// NewPendingItem returns the blank sentinel row offered by "add item".
func NewPendingItem() BudgetItem {
	return BudgetItem{ID: PendingID(), Required: RequiredNo}
}

// Subtotal is unitCost × (quantity, or 1 when null). A null unit cost counts
// as zero. This is the figure used for display, sorting and totals.
func (it BudgetItem) Subtotal() decimal.Decimal {
	if !it.UnitCost.Valid {
		return decimal.Zero
	}
	qty := decimal.NewFromInt(1)
	if it.Quantity.Valid {
		qty = it.Quantity.Decimal
	}
	return it.UnitCost.Decimal.Mul(qty)
}

// StoredSubtotal returns the persisted sub_total verbatim. It can disagree
// with Subtotal when the stored column was written independently.
func (it BudgetItem) StoredSubtotal() decimal.NullDecimal {
	return it.SubTotal
}

// ReadyToCreate reports whether a pending row carries both fields the store
// requires.
func (it BudgetItem) ReadyToCreate() bool {
	return strings.TrimSpace(it.Category) != "" && strings.TrimSpace(it.Item) != ""
}

// FieldText returns the textual form of a field as shown in an input.
func (it BudgetItem) FieldText(f Field) string {
	switch f {
	case FieldID:
		return it.ID.String()
	case FieldCategory:
		return it.Category
	case FieldItem:
		return it.Item
	case FieldRequired:
		return string(it.Required)
	case FieldNotes:
		return it.Notes
	case FieldUnitCost:
		return FormatAmount(it.UnitCost)
	case FieldQuantity:
		return FormatAmount(it.Quantity)
	case FieldSubTotal:
		return FormatAmount(it.SubTotal)
	case FieldMDContent:
		return it.MDContent
	}
	return ""
}

// FieldValue returns the typed value of an editable field: string, Required
// or decimal.NullDecimal.
func (it BudgetItem) FieldValue(f Field) any {
	switch f {
	case FieldCategory:
		return it.Category
	case FieldItem:
		return it.Item
	case FieldRequired:
		return it.Required
	case FieldNotes:
		return it.Notes
	case FieldUnitCost:
		return it.UnitCost
	case FieldQuantity:
		return it.Quantity
	case FieldMDContent:
		return it.MDContent
	}
	return nil
}

// WithField parses raw UI input for an editable field and returns a copy
// of the item carrying the new value.
func (it BudgetItem) WithField(f Field, raw string) (BudgetItem, error) {
	switch f {
	case FieldCategory:
		it.Category = strings.TrimSpace(raw)
	case FieldItem:
		it.Item = strings.TrimSpace(raw)
	case FieldNotes:
		it.Notes = raw
	case FieldMDContent:
		it.MDContent = raw
	case FieldRequired:
		r, err := ParseRequired(raw)
		if err != nil {
			return it, err
		}
		it.Required = r
	case FieldUnitCost, FieldQuantity:
		n, err := ParseAmount(raw)
		if err != nil {
			return it, &ValidationError{Field: string(f), Reason: "must be a non-negative number", Err: err}
		}
		if f == FieldUnitCost {
			it.UnitCost = n
		} else {
			it.Quantity = n
		}
	default:
		return it, &ValidationError{Field: string(f), Reason: "field is not editable"}
	}
	return it, nil
}

// CopyField copies a single field from src, leaving the rest untouched.
func (it *BudgetItem) CopyField(f Field, src BudgetItem) {
	switch f {
	case FieldCategory:
		it.Category = src.Category
	case FieldItem:
		it.Item = src.Item
	case FieldRequired:
		it.Required = src.Required
	case FieldNotes:
		it.Notes = src.Notes
	case FieldUnitCost:
		it.UnitCost = src.UnitCost
	case FieldQuantity:
		it.Quantity = src.Quantity
	case FieldMDContent:
		it.MDContent = src.MDContent
	}
	if src.UpdatedAt.After(it.UpdatedAt) {
		it.UpdatedAt = src.UpdatedAt
	}
}
