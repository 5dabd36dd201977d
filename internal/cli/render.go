package cli

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/itisfoundation/osparc-tables/internal/export"
	"github.com/itisfoundation/osparc-tables/internal/rows"
)

// renderRows writes rs as a borderless table. Cell markup is stripped.
func renderRows(w io.Writer, columns []rows.ColumnSpec, rs []rows.Row) error {
	header := make(table.Row, len(columns))
	for i, c := range columns {
		header[i] = c.Label
		if c.Label == "" {
			header[i] = c.ID
		}
	}

	tableRows := make([]table.Row, 0, len(rs))
	for _, r := range rs {
		row := make(table.Row, len(columns))
		for i, c := range columns {
			row[i] = export.StripMarkup(r[c.ID])
		}
		tableRows = append(tableRows, row)
	}

	t := table.NewWriter()
	t.AppendHeader(header)
	t.AppendRows(tableRows)
	t.SetStyle(table.StyleLight)
	t.Style().Format = table.FormatOptions{
		Footer: text.FormatDefault,
		Header: text.FormatDefault,
		Row:    text.FormatDefault,
	}
	t.Style().Options.DrawBorder = false

	_, err := io.WriteString(w, t.Render()+"\n")
	return err
}
