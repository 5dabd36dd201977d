package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/itisfoundation/osparc-tables/internal/export"
	"github.com/itisfoundation/osparc-tables/internal/rows"
)

func addTableFlags(cmd *cobra.Command, tf *tableFlags) {
	cmd.Flags().StringToStringVar(&tf.scope, "scope", nil, "Path parameters, e.g. --scope walletId=12")
	cmd.Flags().StringVar(&tf.from, "from", "", "Only rows at or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&tf.to, "to", "", "Only rows before this date (YYYY-MM-DD)")
}

// newResourcesCmd creates the 'resources' command.
func newResourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List the tables that can be browsed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			catalog, err := loadCatalog(cfg)
			if err != nil {
				return err
			}

			columns := []rows.ColumnSpec{
				{ID: "name", Label: "Name"},
				{ID: "aliases", Label: "Aliases"},
				{ID: "path", Label: "Endpoint"},
				{ID: "columns", Label: "Columns"},
			}
			var out []rows.Row
			for _, name := range catalog.Names() {
				def, err := catalog.Get(name)
				if err != nil {
					return err
				}
				ids := make([]string, len(def.Columns))
				for i, c := range def.Columns {
					ids[i] = c.ID
				}
				out = append(out, rows.Row{
					"name":    def.Name,
					"aliases": strings.Join(catalog.Aliases(name), ", "),
					"path":    def.Path,
					"columns": strings.Join(ids, ", "),
				})
			}
			return renderRows(cmd.OutOrStdout(), columns, out)
		},
	}
}

// newCountCmd creates the 'count' command.
func newCountCmd() *cobra.Command {
	var tf tableFlags

	cmd := &cobra.Command{
		Use:   "count <resource>",
		Short: "Print the number of rows of a table",
		Long: `Print the number of rows of a table under the given scope and date range.

Examples:
  osparc-tables count transactions
  osparc-tables count usage --scope walletId=12 --from 2024-01-01 --to 2024-02-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			s, err := openTable(ctx, args[0], tf)
			if err != nil {
				return err
			}
			defer s.Close()

			c := s.model.LoadCount(ctx)
			if !c.Known {
				return fmt.Errorf("failed to count %s: %w", s.def.Name, c.Err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.N)
			return nil
		},
	}

	addTableFlags(cmd, &tf)
	return cmd
}

// newListCmd creates the 'list' command.
func newListCmd() *cobra.Command {
	var tf tableFlags
	var first, last int
	var sortCol string
	var desc, asJSON bool

	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "Print a window of rows",
		Long: `Print rows [first, last] of a table. Windows larger than the server
page limit are fetched as several pages.

Examples:
  osparc-tables list transactions --first 0 --last 99
  osparc-tables list rentals --sort start --desc --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			s, err := openTable(ctx, args[0], tf)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := sortModel(s.model, sortCol, desc); err != nil {
				return err
			}

			w := s.model.Rows(ctx, first, last)
			if w.Err != nil {
				return fmt.Errorf("failed to load %s: %w", s.def.Name, w.Err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc, err := export.NewEncoder(export.FormatJSON, out, s.model.Columns(), true)
				if err != nil {
					return err
				}
				if err := enc.Write(w.Rows); err != nil {
					return err
				}
				return enc.Close()
			}

			if err := renderRows(out, s.model.Columns(), w.Rows); err != nil {
				return err
			}
			if len(w.Rows) > 0 {
				fmt.Fprintf(out, "rows %d-%d of %d\n", w.First, w.First+len(w.Rows)-1, w.Total)
			} else {
				fmt.Fprintf(out, "no rows (total %d)\n", w.Total)
			}
			return nil
		},
	}

	addTableFlags(cmd, &tf)
	cmd.Flags().IntVar(&first, "first", 0, "First row (0-based)")
	cmd.Flags().IntVar(&last, "last", 19, "Last row (inclusive)")
	cmd.Flags().StringVar(&sortCol, "sort", "", "Column id to sort by")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print rows as JSON")

	return cmd
}
