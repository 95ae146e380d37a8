// Package pipeline owns the canonical item collection and derives the
// filtered, sorted view rendered by the UI.
//
// The canonical slice keeps load order and is only changed through the
// mutation methods below. ComputeView never modifies it; every call
// derives a fresh view from scratch.
package pipeline

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// Filter predicates are combined with AND; a zero field matches everything.
type Filter struct {
	Search       string // case-insensitive substring of item or category
	Category     string // exact match
	RequiredOnly bool   // Required starts with "y", ignoring case
}

// Sort orders the view by Field. An empty Field keeps load order.
type Sort struct {
	Field     core.Field
	Ascending bool
}

// Row is one rendered line of the view.
type Row struct {
	Key      string
	Item     core.BudgetItem
	Pending  bool
	Subtotal decimal.Decimal
}

// View is the derived projection of the canonical collection.
type View struct {
	Rows    []Row
	Summary core.Summary
}

type Pipeline struct {
	canonical []core.BudgetItem
	filter    Filter
	sort      Sort
}

func New(items []core.BudgetItem) *Pipeline {
	p := &Pipeline{}
	p.Replace(items)
	return p
}

// Replace swaps the whole canonical collection, e.g. after a reload.
func (p *Pipeline) Replace(items []core.BudgetItem) {
	p.canonical = slices.Clone(items)
}

// Items returns a copy of the canonical collection in load order.
func (p *Pipeline) Items() []core.BudgetItem {
	return slices.Clone(p.canonical)
}

func (p *Pipeline) Len() int { return len(p.canonical) }

// Find returns the canonical item with id.
func (p *Pipeline) Find(id core.ItemID) (core.BudgetItem, bool) {
	i := p.indexOf(id)
	if i < 0 {
		return core.BudgetItem{}, false
	}
	return p.canonical[i], true
}

// HasPending reports whether an unsaved row exists.
func (p *Pipeline) HasPending() bool {
	return p.indexOf(core.PendingID()) >= 0
}

// InsertPending places a new unsaved row at the top. It reports false and
// leaves the collection untouched when one already exists.
func (p *Pipeline) InsertPending(item core.BudgetItem) bool {
	if !item.ID.IsPending() || p.HasPending() {
		return false
	}
	p.canonical = slices.Insert(p.canonical, 0, item)
	return true
}

// Set overwrites the item with the same id.
func (p *Pipeline) Set(item core.BudgetItem) bool {
	i := p.indexOf(item.ID)
	if i < 0 {
		return false
	}
	p.canonical[i] = item
	return true
}

// ReplaceAt swaps the item identified by id for item, keeping its position.
// Used to promote an unsaved row to its stored record.
func (p *Pipeline) ReplaceAt(id core.ItemID, item core.BudgetItem) bool {
	i := p.indexOf(id)
	if i < 0 {
		return false
	}
	if j := p.indexOf(item.ID); j >= 0 && j != i {
		return false
	}
	p.canonical[i] = item
	return true
}

// ApplyField copies one field from src into the canonical item id.
func (p *Pipeline) ApplyField(id core.ItemID, f core.Field, src core.BudgetItem) bool {
	i := p.indexOf(id)
	if i < 0 {
		return false
	}
	p.canonical[i].CopyField(f, src)
	return true
}

func (p *Pipeline) Remove(id core.ItemID) bool {
	i := p.indexOf(id)
	if i < 0 {
		return false
	}
	p.canonical = slices.Delete(p.canonical, i, i+1)
	return true
}

func (p *Pipeline) Filter() Filter     { return p.filter }
func (p *Pipeline) SetFilter(f Filter) { p.filter = f }
func (p *Pipeline) Sort() Sort         { return p.sort }

// SetSort sets the sort state; unsortable fields are ignored.
func (p *Pipeline) SetSort(s Sort) bool {
	if s.Field != "" && !s.Field.Sortable() {
		return false
	}
	p.sort = s
	return true
}

// ToggleSort activates a column header: the current field flips direction,
// any other field starts ascending.
func (p *Pipeline) ToggleSort(f core.Field) bool {
	if !f.Sortable() {
		return false
	}
	if p.sort.Field == f {
		p.sort.Ascending = !p.sort.Ascending
	} else {
		p.sort = Sort{Field: f, Ascending: true}
	}
	return true
}

// Categories lists the distinct non-empty categories in canonical, sorted
// case-insensitively.
func (p *Pipeline) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, it := range p.canonical {
		if it.Category == "" || seen[it.Category] {
			continue
		}
		seen[it.Category] = true
		out = append(out, it.Category)
	}
	slices.SortFunc(out, func(a, b string) int {
		return cmp.Or(strings.Compare(strings.ToLower(a), strings.ToLower(b)), strings.Compare(a, b))
	})
	return out
}

// ComputeView filters, sorts and summarizes the canonical collection.
func (p *Pipeline) ComputeView() View {
	items := Apply(p.canonical, p.filter)
	SortItems(items, p.sort)

	v := View{Rows: make([]Row, len(items))}
	v.Summary.TotalCost = decimal.Zero
	for i, it := range items {
		sub := it.Subtotal()
		v.Rows[i] = Row{
			Key:      it.ID.String(),
			Item:     it,
			Pending:  it.ID.IsPending(),
			Subtotal: sub,
		}
		v.Summary.TotalCost = v.Summary.TotalCost.Add(sub)
		if !it.ID.IsPending() {
			v.Summary.VisibleCount++
		}
	}
	for _, it := range p.canonical {
		if !it.ID.IsPending() {
			v.Summary.TotalCount++
		}
	}
	return v
}

func (p *Pipeline) indexOf(id core.ItemID) int {
	return slices.IndexFunc(p.canonical, func(it core.BudgetItem) bool { return it.ID == id })
}
