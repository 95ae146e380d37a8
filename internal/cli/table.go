package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/pipeline"
)

var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorDim    = lipgloss.Color("#928374")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
)

var itemHeaders = []string{"ID", "CATEGORY", "ITEM", "REQUIRED", "UNIT COST", "QTY", "SUBTOTAL"}

// numeric columns are right-aligned.
var itemNumeric = []bool{true, false, false, false, true, true, true}

// RenderItemTable renders view rows as an aligned table with a header
// separator line. Widths are measured with lipgloss so styled cells line up.
func RenderItemTable(rows []pipeline.Row) string {
	cells := make([][]string, len(rows))
	for i, r := range rows {
		required := string(r.Item.Required)
		if r.Item.Required.IsRequired() {
			required = StyleGreen.Render(required)
		}
		cells[i] = []string{
			r.Key,
			r.Item.Category,
			r.Item.Item,
			required,
			formatNullCurrency(r.Item.UnitCost),
			core.FormatAmount(r.Item.Quantity),
			core.FormatCurrency(r.Subtotal),
		}
	}
	return renderTable(itemHeaders, itemNumeric, cells)
}

// RenderSummary renders the line printed under the table.
func RenderSummary(s core.Summary) string {
	return StyleDim.Render(fmt.Sprintf("Showing %d of %d items", s.VisibleCount, s.TotalCount)) +
		"  " + StyleHeader.Render("Total "+core.FormatCurrency(s.TotalCost))
}

func formatNullCurrency(n decimal.NullDecimal) string {
	if !n.Valid {
		return ""
	}
	return core.FormatCurrency(n.Decimal)
}

func renderTable(headers []string, numeric []bool, rows [][]string) string {
	const colGap = 2

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(widths) && i < len(row); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	pad := func(cell string, i int) string {
		gap := strings.Repeat(" ", max(widths[i]-lipgloss.Width(cell), 0))
		if numeric[i] {
			return gap + cell
		}
		return cell + gap
	}
	sep := strings.Repeat(" ", colGap)

	var b strings.Builder
	line := make([]string, len(headers))
	for i, h := range headers {
		line[i] = StyleHeader.Render(pad(h, i))
	}
	b.WriteString(strings.TrimRight(strings.Join(line, sep), " ") + "\n")

	for i, w := range widths {
		line[i] = StyleDim.Render(strings.Repeat("─", w))
	}
	b.WriteString(strings.Join(line, sep) + "\n")

	for _, row := range rows {
		for i := range headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			line[i] = pad(cell, i)
		}
		b.WriteString(strings.TrimRight(strings.Join(line, sep), " ") + "\n")
	}
	return b.String()
}

// RenderTerminal renders markdown for the terminal, picking a dark, light or
// plain style from the output it detects.
func RenderTerminal(md string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return "", fmt.Errorf("create terminal renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}
