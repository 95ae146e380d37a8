package cli

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"budget/internal/sheets"
)

func newExportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.csv>",
		Short: "Write every item to a CSV file",
		Long:  "Write every item to a CSV file using the same columns as the spreadsheet mirror. The file is replaced atomically.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := app.Items.ListAll(cmd.Context())
			if err != nil {
				return err
			}

			rows := sheets.Rows(items)
			var buf bytes.Buffer
			w := csv.NewWriter(&buf)
			for _, row := range rows {
				record := make([]string, len(row))
				for i, v := range row {
					record[i] = fmt.Sprint(v)
				}
				if err := w.Write(record); err != nil {
					return fmt.Errorf("encode csv: %w", err)
				}
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return fmt.Errorf("encode csv: %w", err)
			}

			if err := atomic.WriteFile(args[0], &buf); err != nil {
				return fmt.Errorf("write %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d items to %s\n", len(rows)-1, args[0])
			return nil
		},
	}
}
