// Package export writes whole tables to a file or object storage.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/itisfoundation/osparc-tables/internal/rows"
)

// Format is the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts "csv" and "json" in any case.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want csv or json)", s)
	}
}

// Ext returns the file extension of the format.
func (f Format) Ext() string { return "." + string(f) }

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// StripMarkup removes the markup of status and link cells, leaving the text.
func StripMarkup(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	return html.UnescapeString(tagRe.ReplaceAllString(s, ""))
}

// Encoder writes rows in column order.
type Encoder interface {
	Write(rs []rows.Row) error
	Close() error
}

// NewEncoder creates an encoder for format writing to w. CSV starts with a
// header of column labels; JSON is an array of objects keyed by column id.
func NewEncoder(format Format, w io.Writer, columns []rows.ColumnSpec, plain bool) (Encoder, error) {
	switch format {
	case FormatCSV:
		enc := &csvEncoder{w: csv.NewWriter(w), columns: columns, plain: plain}
		header := make([]string, len(columns))
		for i, c := range columns {
			header[i] = c.Label
			if header[i] == "" {
				header[i] = c.ID
			}
		}
		if err := enc.w.Write(header); err != nil {
			return nil, err
		}
		return enc, nil
	case FormatJSON:
		if _, err := io.WriteString(w, "["); err != nil {
			return nil, err
		}
		return &jsonEncoder{w: w, columns: columns, plain: plain}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

type csvEncoder struct {
	w       *csv.Writer
	columns []rows.ColumnSpec
	plain   bool
}

func (e *csvEncoder) Write(rs []rows.Row) error {
	record := make([]string, len(e.columns))
	for _, r := range rs {
		for i, c := range e.columns {
			record[i] = cell(r, c.ID, e.plain)
		}
		if err := e.w.Write(record); err != nil {
			return err
		}
	}
	e.w.Flush()
	return e.w.Error()
}

func (e *csvEncoder) Close() error {
	e.w.Flush()
	return e.w.Error()
}

type jsonEncoder struct {
	w       io.Writer
	columns []rows.ColumnSpec
	plain   bool
	n       int
}

// Write emits objects with keys in column order; encoding/json would sort them.
func (e *jsonEncoder) Write(rs []rows.Row) error {
	var buf bytes.Buffer
	for _, r := range rs {
		if e.n > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n  {")
		for i, c := range e.columns {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, _ := json.Marshal(c.ID)
			v, _ := json.Marshal(cell(r, c.ID, e.plain))
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(v)
		}
		buf.WriteByte('}')
		e.n++
	}
	_, err := e.w.Write(buf.Bytes())
	return err
}

func (e *jsonEncoder) Close() error {
	end := "]\n"
	if e.n > 0 {
		end = "\n]\n"
	}
	_, err := io.WriteString(e.w, end)
	return err
}

func cell(r rows.Row, id string, plain bool) string {
	v := r[id]
	if plain {
		return StripMarkup(v)
	}
	return v
}
