package http

import (
	"html/template"

	"budget/internal/core"
	"budget/internal/editor"
	"budget/internal/pipeline"
)

// column describes one table column in display order.
type column struct {
	Field    core.Field
	Label    string
	Kind     string // input kind while editing: text, number, select, textarea, or "" for read-only
	Numeric  bool
	Sortable bool
}

var columns = []column{
	{Field: core.FieldID, Label: "#", Numeric: true, Sortable: true},
	{Field: core.FieldCategory, Label: "Category", Kind: "text", Sortable: true},
	{Field: core.FieldItem, Label: "Item", Kind: "text", Sortable: true},
	{Field: core.FieldRequired, Label: "Required", Kind: "select", Sortable: true},
	{Field: core.FieldNotes, Label: "Notes", Kind: "textarea", Sortable: true},
	{Field: core.FieldUnitCost, Label: "Unit cost", Kind: "number", Numeric: true, Sortable: true},
	{Field: core.FieldQuantity, Label: "Qty", Kind: "number", Numeric: true, Sortable: true},
	{Field: core.FieldSubTotal, Label: "Subtotal", Numeric: true, Sortable: true},
}

type headerView struct {
	column
	Active    bool
	Ascending bool
}

type cellView struct {
	RowKey  string
	Field   core.Field
	Kind    string
	Label   string
	Text    string // display text
	Value   string // input value
	Numeric bool
	Editing bool
	Saving  bool
	Options []core.Required
}

type rowView struct {
	Key       string
	ItemID    int64
	Pending   bool
	Editing   bool
	Cells     []cellView
	Subtotal  string
	Required  bool
	HasDetail bool
}

type summaryView struct {
	TotalCount   int
	VisibleCount int
	TotalCost    string
	Filtered     bool
	OOB          bool
}

type subtotalView struct {
	Key  string
	Text string
	OOB  bool
}

// commitView is the response to a field blur: the re-rendered input plus
// out-of-band updates for the figures that depend on it.
type commitView struct {
	Cell     cellView
	Subtotal subtotalView
	Summary  summaryView
}

// promotedView replaces the unsaved row once the store assigned an id.
type promotedView struct {
	Row     rowView
	Visible bool
	Summary summaryView
}

type tableView struct {
	Headers    []headerView
	Rows       []rowView
	Summary    summaryView
	Filter     pipeline.Filter
	Categories []string
	LoadError  string
	Loaded     bool
	HasPending bool
}

type pageView struct {
	Title string
	Table tableView
}

type detailView struct {
	Title         string
	Found         bool
	Error         string
	Key           string
	Item          core.BudgetItem
	Computed      string
	Stored        string
	StoredDiffers bool
	Markdown      markdownView
}

type markdownView struct {
	Key   string
	HTML  template.HTML
	Error string
	OOB   bool
}

func newDetailView(it core.BudgetItem, md markdownView) detailView {
	stored := it.StoredSubtotal()
	dv := detailView{
		Title:    it.Item,
		Found:    true,
		Key:      it.ID.String(),
		Item:     it,
		Computed: core.FormatCurrency(it.Subtotal()),
		Markdown: md,
	}
	if stored.Valid {
		dv.Stored = core.FormatCurrency(stored.Decimal)
		dv.StoredDiffers = !stored.Decimal.Equal(it.Subtotal())
	}
	return dv
}

func newTableView(snap editor.Snapshot) tableView {
	tv := tableView{
		Filter:     snap.Filter,
		Categories: snap.Categories,
		Loaded:     snap.Loaded,
	}
	if snap.LoadErr != nil {
		tv.LoadError = core.UserMessage(snap.LoadErr)
	}
	for _, c := range columns {
		tv.Headers = append(tv.Headers, headerView{
			column:    c,
			Active:    snap.Sort.Field == c.Field,
			Ascending: snap.Sort.Ascending,
		})
	}
	for _, r := range snap.View.Rows {
		tv.Rows = append(tv.Rows, newRowView(r, snap))
		if r.Pending {
			tv.HasPending = true
		}
	}
	tv.Summary = newSummaryView(snap)
	return tv
}

func newSummaryView(snap editor.Snapshot) summaryView {
	s := snap.View.Summary
	return summaryView{
		TotalCount:   s.TotalCount,
		VisibleCount: s.VisibleCount,
		TotalCost:    core.FormatCurrency(s.TotalCost),
		Filtered:     snap.Filter != (pipeline.Filter{}),
	}
}

func newRowView(r pipeline.Row, snap editor.Snapshot) rowView {
	editing := snap.IsEditing(r.Key)
	id, _ := r.Item.ID.Value()
	rv := rowView{
		Key:       r.Key,
		ItemID:    id,
		Pending:   r.Pending,
		Editing:   editing,
		Subtotal:  core.FormatCurrency(r.Subtotal),
		Required:  r.Item.Required.IsRequired(),
		HasDetail: !r.Pending,
	}
	for _, c := range columns {
		if c.Field == core.FieldSubTotal {
			continue
		}
		rv.Cells = append(rv.Cells, newCellView(r.Key, r.Item, c, editing, snap.IsSaving(r.Key, c.Field)))
	}
	return rv
}

func newCellView(key string, it core.BudgetItem, c column, editing, saving bool) cellView {
	cv := cellView{
		RowKey:  key,
		Field:   c.Field,
		Kind:    c.Kind,
		Label:   c.Label,
		Value:   it.FieldText(c.Field),
		Numeric: c.Numeric,
		Editing: editing && c.Kind != "",
		Saving:  saving,
	}
	switch c.Field {
	case core.FieldUnitCost:
		if it.UnitCost.Valid {
			cv.Text = core.FormatCurrency(it.UnitCost.Decimal)
		}
	case core.FieldID:
		if it.ID.IsPending() {
			cv.Text = "new"
		} else {
			cv.Text = cv.Value
		}
	default:
		cv.Text = cv.Value
	}
	if c.Kind == "select" {
		cv.Options = core.RequiredValues
	}
	return cv
}

// findRow returns the rendered row for key when it is in view.
func findRow(snap editor.Snapshot, key string) (rowView, bool) {
	for _, r := range snap.View.Rows {
		if r.Key == key {
			return newRowView(r, snap), true
		}
	}
	return rowView{}, false
}

// cellFor builds the single editing cell returned after a field commit.
func cellFor(key string, it core.BudgetItem, f core.Field) cellView {
	for _, c := range columns {
		if c.Field == f {
			return newCellView(key, it, c, true, false)
		}
	}
	return cellView{RowKey: key, Field: f}
}
