package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"budget/internal/core"
	"budget/internal/pipeline"
)

func newListCmd(app *App) *cobra.Command {
	var (
		search, category, sortField string
		requiredOnly, desc          bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List budget items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := app.Items.ListAll(cmd.Context())
			if err != nil {
				return err
			}

			p := pipeline.New(items)
			p.SetFilter(pipeline.Filter{Search: search, Category: category, RequiredOnly: requiredOnly})
			if sortField != "" {
				f, _ := core.ParseField(sortField)
				if !p.SetSort(pipeline.Sort{Field: f, Ascending: !desc}) {
					return fmt.Errorf("unknown sort field %q", sortField)
				}
			}
			view := p.ComputeView()

			out := cmd.OutOrStdout()
			if len(view.Rows) == 0 {
				fmt.Fprintln(out, StyleDim.Render("No items match."))
				return nil
			}
			fmt.Fprint(out, RenderItemTable(view.Rows))
			fmt.Fprintln(out, RenderSummary(view.Summary))
			return nil
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Substring of item or category, case-insensitive")
	cmd.Flags().StringVar(&category, "category", "", "Exact category")
	cmd.Flags().BoolVar(&requiredOnly, "required", false, "Only items marked required")
	cmd.Flags().StringVar(&sortField, "sort", "", "Sort column (id, category, item, required, notes, unitCost, quantity, subTotal)")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")

	return cmd
}

func newAddCmd(app *App) *cobra.Command {
	var category, name, required, notes, unitCost, quantity string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a budget item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			it := core.NewPendingItem()
			inputs := []struct {
				field core.Field
				value string
				set   bool
			}{
				{core.FieldCategory, category, true},
				{core.FieldItem, name, true},
				{core.FieldRequired, required, cmd.Flags().Changed("required")},
				{core.FieldNotes, notes, cmd.Flags().Changed("notes")},
				{core.FieldUnitCost, unitCost, cmd.Flags().Changed("unit-cost")},
				{core.FieldQuantity, quantity, cmd.Flags().Changed("quantity")},
			}
			for _, in := range inputs {
				if !in.set {
					continue
				}
				var err error
				if it, err = it.WithField(in.field, in.value); err != nil {
					return err
				}
			}
			if !it.ReadyToCreate() {
				return &core.ValidationError{Reason: "category and item are required"}
			}

			created, err := app.Items.Create(cmd.Context(), it)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created item %s (%s)\n", created.ID, created.Item)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Category")
	cmd.Flags().StringVar(&name, "item", "", "Item name")
	cmd.Flags().StringVar(&required, "required", "", "Yes, No, Maybe or Optional")
	cmd.Flags().StringVar(&notes, "notes", "", "Short notes")
	cmd.Flags().StringVar(&unitCost, "unit-cost", "", "Unit cost")
	cmd.Flags().StringVar(&quantity, "quantity", "", "Quantity")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("item")

	return cmd
}

func newSetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> <field> <value>",
		Short: "Update one field of an item",
		Long: "Update one field of an item. Editable fields: " +
			"category, item, required, notes, unitCost, quantity, mdContent. " +
			"An empty value clears unitCost and quantity.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := persistedID(args[0])
			if err != nil {
				return err
			}
			f, _ := core.ParseField(args[1])
			if !f.Editable() {
				return &core.ValidationError{Field: args[1], Reason: "field is not editable"}
			}
			parsed, err := core.NewPendingItem().WithField(f, args[2])
			if err != nil {
				return err
			}

			saved, err := app.Items.UpdateField(cmd.Context(), id, f, parsed.FieldValue(f))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated item %d: %s = %q (subtotal %s)\n",
				id, f, saved.FieldText(f), core.FormatCurrency(saved.Subtotal()))
			return nil
		},
	}
}

func newRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Delete an item",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := persistedID(args[0])
			if err != nil {
				return err
			}
			ok, err := app.Items.Remove(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return &core.NotFoundError{Op: "delete", ID: id}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted item %d\n", id)
			return nil
		},
	}
}

func newRenderCmd(app *App) *cobra.Command {
	var (
		store  bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "render <id>",
		Short: "Render an item's markdown notes",
		Long:  "Render an item's markdown notes as sanitized HTML, or styled for the terminal with --format term.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "html" && format != "term" {
				return fmt.Errorf("unknown format %q (want html or term)", format)
			}
			id, err := persistedID(args[0])
			if err != nil {
				return err
			}
			it, err := app.Items.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if strings.TrimSpace(it.MDContent) == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), StyleDim.Render("Item has no notes."))
				return nil
			}

			html, err := app.Renderer.Render(it.MDContent)
			if err != nil {
				return fmt.Errorf("render item %d: %w", id, err)
			}
			if store && app.HTML != nil {
				if err := app.HTML.SetHTML(cmd.Context(), id, string(html)); err != nil {
					return fmt.Errorf("store html for item %d: %w", id, err)
				}
			}

			if format == "term" {
				out, err := RenderTerminal(it.MDContent)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), html)
			return nil
		},
	}

	cmd.Flags().BoolVar(&store, "store", true, "Also write the HTML to the item's html column")
	cmd.Flags().StringVar(&format, "format", "html", "Output format: html or term")

	return cmd
}

func persistedID(s string) (int64, error) {
	id, err := core.ParseItemID(s)
	if err != nil {
		return 0, err
	}
	n, ok := id.Value()
	if !ok {
		return 0, &core.ValidationError{Field: string(core.FieldID), Reason: "unsaved rows exist only in the browser"}
	}
	return n, nil
}
