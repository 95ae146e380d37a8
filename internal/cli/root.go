package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"budget/internal/markdown"
	"budget/internal/ports"
	"budget/internal/services"
)

// App holds what budgetctl commands operate on.
type App struct {
	Items    *services.ItemService
	HTML     ports.HTMLWriter
	Renderer *markdown.Renderer
	// Migrate applies schema migrations and returns the schema version; nil
	// when the backend has no schema.
	Migrate func() (uint, error)
}

var errNoMigrations = errors.New("migrate is only available for the sqlite backend")

// NewRootCmd creates the top-level "budgetctl" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "budgetctl",
		Short:         "Inspect and edit the budget from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newListCmd(app),
		newAddCmd(app),
		newSetCmd(app),
		newRemoveCmd(app),
		newRenderCmd(app),
		newExportCmd(app),
		newMigrateCmd(app),
	)

	return root
}

func newMigrateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Migrate == nil {
				return errNoMigrations
			}
			version, err := app.Migrate()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d\n", version)
			return nil
		},
	}
}
