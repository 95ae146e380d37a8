package pipeline

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
)

func amount(v string) decimal.NullDecimal {
	if v == "" {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.RequireFromString(v))
}

func item(id int64, category, name, required, cost, qty string) core.BudgetItem {
	return core.BudgetItem{
		ID:       core.PersistedID(id),
		Category: category,
		Item:     name,
		Required: core.Required(required),
		UnitCost: amount(cost),
		Quantity: amount(qty),
	}
}

func keys(v View) []string {
	out := make([]string, len(v.Rows))
	for i, r := range v.Rows {
		out[i] = r.Key
	}
	return out
}

func sample() []core.BudgetItem {
	return []core.BudgetItem{
		item(1, "Venue", "Hall", "Yes", "1000", "1"),
		item(2, "Flowers", "Bouquet", "No", "50", ""),
		item(3, "Food", "Cake", "yes", "12.5", "4"),
		item(4, "Flowers", "Centerpiece", "Maybe", "", "10"),
		item(5, "Venue", "Chairs", "Y", "2", "100"),
	}
}

func TestSearchScenario(t *testing.T) {
	p := New([]core.BudgetItem{item(1, "Venue", "Hall", "", "1000", "1")})

	p.SetFilter(Filter{Search: "hall"})
	assert.Len(t, p.ComputeView().Rows, 1)

	p.SetFilter(Filter{Search: "zzz"})
	assert.Empty(t, p.ComputeView().Rows)

	p.SetFilter(Filter{Search: "VEN"})
	assert.Len(t, p.ComputeView().Rows, 1, "search matches category too")
}

func TestFilterIsOrderPreservingSubset(t *testing.T) {
	p := New(sample())
	canon := p.Items()
	position := map[string]int{}
	for i, it := range canon {
		position[it.ID.String()] = i
	}

	searches := []string{"", "c", "flow", "zzz"}
	categories := []string{"", "Flowers", "Venue", "venue"}
	for _, s := range searches {
		for _, c := range categories {
			for _, req := range []bool{false, true} {
				f := Filter{Search: s, Category: c, RequiredOnly: req}
				t.Run(fmt.Sprintf("%q/%q/%v", s, c, req), func(t *testing.T) {
					p.SetFilter(f)
					v := p.ComputeView()
					last := -1
					for _, r := range v.Rows {
						i, ok := position[r.Key]
						require.True(t, ok, "row %s not in canonical", r.Key)
						assert.Greater(t, i, last, "relative order not preserved")
						last = i
					}
				})
			}
		}
	}
	assert.Empty(t, cmp.Diff(canon, p.Items(), cmp.AllowUnexported(core.ItemID{})), "canonical must not change")
}

func TestFilterPredicatesCombineWithAnd(t *testing.T) {
	p := New(sample())

	p.SetFilter(Filter{Category: "Flowers"})
	assert.Equal(t, []string{"2", "4"}, keys(p.ComputeView()))

	p.SetFilter(Filter{Category: "flowers"})
	assert.Empty(t, keys(p.ComputeView()), "category match is exact")

	p.SetFilter(Filter{RequiredOnly: true})
	assert.Equal(t, []string{"1", "3", "5"}, keys(p.ComputeView()))

	p.SetFilter(Filter{Search: "c", Category: "Venue", RequiredOnly: true})
	assert.Equal(t, []string{"5"}, keys(p.ComputeView()))
}

func TestSortBySubtotalScenario(t *testing.T) {
	p := New([]core.BudgetItem{
		item(1, "", "", "", "100", "2"),
		item(2, "", "", "", "50", "1"),
	})
	p.ToggleSort(core.FieldSubTotal)
	assert.Equal(t, []string{"2", "1"}, keys(p.ComputeView()))
}

// The subTotal column sorts by the computed subtotal even when the stored
// sub_total disagrees with it.
func TestSortUsesComputedNotStoredSubtotal(t *testing.T) {
	a := item(1, "", "", "", "100", "2") // computed 200
	a.SubTotal = amount("1")
	b := item(2, "", "", "", "50", "") // computed 50
	b.SubTotal = amount("999")

	p := New([]core.BudgetItem{a, b})
	p.ToggleSort(core.FieldSubTotal)
	assert.Equal(t, []string{"2", "1"}, keys(p.ComputeView()))
}

func TestSortIsStable(t *testing.T) {
	items := []core.BudgetItem{
		item(1, "B", "x", "", "5", ""),
		item(2, "a", "y", "", "5", ""),
		item(3, "b", "z", "", "1", ""),
		item(4, "A", "w", "", "5", ""),
	}
	p := New(items)

	p.SetSort(Sort{Field: core.FieldUnitCost, Ascending: true})
	assert.Equal(t, []string{"3", "1", "2", "4"}, keys(p.ComputeView()))

	p.SetSort(Sort{Field: core.FieldCategory, Ascending: true})
	assert.Equal(t, []string{"2", "4", "1", "3"}, keys(p.ComputeView()), "case-insensitive ties keep input order")

	p.SetSort(Sort{Field: core.FieldCategory, Ascending: false})
	assert.Equal(t, []string{"1", "3", "2", "4"}, keys(p.ComputeView()), "descending ties keep input order")
}

func TestSortNumericVersusText(t *testing.T) {
	items := []core.BudgetItem{
		item(1, "", "", "", "9", ""),
		item(2, "", "", "", "10", ""),
		item(3, "", "", "", "", ""), // null coerces to ""
	}
	p := New(items)
	p.SetSort(Sort{Field: core.FieldUnitCost, Ascending: true})
	// 9 < 10 numerically; null compares as "" which sorts before any text.
	assert.Equal(t, []string{"3", "1", "2"}, keys(p.ComputeView()))

	// Text columns compare as strings even when they look numeric.
	p.Replace([]core.BudgetItem{
		item(1, "9", "", "", "", ""),
		item(2, "10", "", "", "", ""),
	})
	p.SetSort(Sort{Field: core.FieldCategory, Ascending: true})
	assert.Equal(t, []string{"2", "1"}, keys(p.ComputeView()))
}

func TestSortEmptyFieldKeepsLoadOrder(t *testing.T) {
	p := New(sample())
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, keys(p.ComputeView()))
}

func TestToggleSort(t *testing.T) {
	p := New(sample())

	require.True(t, p.ToggleSort(core.FieldItem))
	once := keys(p.ComputeView())
	assert.Equal(t, Sort{Field: core.FieldItem, Ascending: true}, p.Sort())

	p.ToggleSort(core.FieldItem)
	twice := keys(p.ComputeView())
	assert.False(t, p.Sort().Ascending)

	reversed := make([]string, len(once))
	for i, k := range once {
		reversed[len(once)-1-i] = k
	}
	assert.Equal(t, reversed, twice)

	p.ToggleSort(core.FieldCategory)
	assert.Equal(t, Sort{Field: core.FieldCategory, Ascending: true}, p.Sort(), "new field resets to ascending")

	assert.False(t, p.ToggleSort(core.FieldMDContent))
	assert.Equal(t, core.FieldCategory, p.Sort().Field)
}

func TestSummaryTotalsOverView(t *testing.T) {
	p := New(sample())
	pending := core.NewPendingItem()
	pending.UnitCost = amount("7")
	require.True(t, p.InsertPending(pending))

	v := p.ComputeView()
	assert.Equal(t, 5, v.Summary.TotalCount, "pending row excluded from count")
	assert.Equal(t, 5, v.Summary.VisibleCount)
	// 1000 + 50 + 50 + 0 + 200 + 7 (pending row included in cost)
	assert.True(t, v.Summary.TotalCost.Equal(decimal.NewFromInt(1307)), "got %s", v.Summary.TotalCost)

	p.SetFilter(Filter{Category: "Flowers"})
	v = p.ComputeView()
	want := decimal.Zero
	for _, r := range v.Rows {
		want = want.Add(r.Item.UnitCost.Decimal.Mul(qtyOrOne(r.Item.Quantity)))
	}
	assert.True(t, v.Summary.TotalCost.Equal(want))
	assert.Equal(t, 2, v.Summary.VisibleCount)
	assert.Equal(t, 5, v.Summary.TotalCount)
}

func qtyOrOne(q decimal.NullDecimal) decimal.Decimal {
	if q.Valid {
		return q.Decimal
	}
	return decimal.NewFromInt(1)
}

func TestUpdateReflectedWithoutRefetch(t *testing.T) {
	p := New([]core.BudgetItem{item(1, "Venue", "Hall", "", "100", "1")})
	assert.True(t, p.ComputeView().Summary.TotalCost.Equal(decimal.NewFromInt(100)))

	stored := item(1, "Venue", "Hall", "", "150", "1")
	require.True(t, p.ApplyField(core.PersistedID(1), core.FieldUnitCost, stored))

	it, _ := p.Find(core.PersistedID(1))
	assert.True(t, it.UnitCost.Decimal.Equal(decimal.NewFromInt(150)))
	assert.True(t, p.ComputeView().Summary.TotalCost.Equal(decimal.NewFromInt(150)))
}

func TestPendingRowLifecycle(t *testing.T) {
	p := New(sample())

	require.True(t, p.InsertPending(core.NewPendingItem()))
	assert.False(t, p.InsertPending(core.NewPendingItem()), "at most one pending row")
	assert.Equal(t, "new", p.ComputeView().Rows[0].Key, "pending row goes on top")
	assert.True(t, p.ComputeView().Rows[0].Pending)

	promoted := item(6, "Flowers", "Bouquet", "No", "", "")
	require.True(t, p.ReplaceAt(core.PendingID(), promoted))
	assert.False(t, p.HasPending())
	assert.Equal(t, "6", p.Items()[0].ID.String(), "promotion keeps position")

	assert.False(t, p.ReplaceAt(core.PersistedID(6), item(1, "", "", "", "", "")), "ids stay unique")

	require.True(t, p.Remove(core.PersistedID(6)))
	assert.Equal(t, 5, p.Len())
	assert.False(t, p.Remove(core.PersistedID(6)))
}

func TestCategories(t *testing.T) {
	p := New(sample())
	p.InsertPending(core.NewPendingItem())
	assert.Equal(t, []string{"Flowers", "Food", "Venue"}, p.Categories())
}
