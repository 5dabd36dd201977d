// Package rows loads windows of table rows from paginated osparc list endpoints.
//
// A Source turns "rows [first..last] under criteria C" into one or more
// page requests of at most the server's maximum page size, fetches them
// concurrently and reassembles the records, in offset order, into display
// rows described by a fixed list of ColumnSpec.
package rows

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Row maps a column id to its display-ready value. Rows are built once from
// a backend record and never modified afterwards.
type Row map[string]string

// FormatKind selects how a record field is rendered into a Row value.
type FormatKind string

const (
	FormatText     FormatKind = "text"
	FormatInt      FormatKind = "int"
	FormatCurrency FormatKind = "currency"
	FormatCredits  FormatKind = "credits"
	FormatDate     FormatKind = "date"
	FormatDuration FormatKind = "duration"
	FormatStatus   FormatKind = "status"
	FormatLink     FormatKind = "link"
)

// ColumnSpec describes one table column. The ordered column list of a table
// is fixed for its lifetime; a column's index is what sort requests refer to.
type ColumnSpec struct {
	ID       string     `yaml:"id"`
	Label    string     `yaml:"label"`
	Field    string     `yaml:"field"` // dotted path into the record
	Sortable bool       `yaml:"sortable"`
	Format   FormatKind `yaml:"format"`

	SortField string            `yaml:"sort_field,omitempty"` // orderBy field when it differs from Field
	EndField  string            `yaml:"end_field,omitempty"`  // duration: end timestamp
	Prefix    string            `yaml:"prefix,omitempty"`     // currency symbol
	Colors    map[string]string `yaml:"colors,omitempty"`     // status -> color
	LinkLabel string            `yaml:"link_label,omitempty"` // link text
}

// SortKey returns the server field name used in orderBy for this column.
func (c ColumnSpec) SortKey() string {
	if c.SortField != "" {
		return c.SortField
	}
	return c.Field
}

// Filters is the resource-specific filter payload, e.g.
// {"started_at": {"from": "2024-01-01T00:00:00Z", "to": "..."}}.
type Filters map[string]interface{}

// Encode returns the canonical JSON encoding (keys sorted at every level).
// Empty filters encode to "".
func (f Filters) Encode() (string, error) {
	if len(f) == 0 {
		return "", nil
	}
	data, err := json.Marshal(map[string]interface{}(f))
	if err != nil {
		return "", fmt.Errorf("encode filters: %w", err)
	}
	return string(data), nil
}

// Equal reports whether both filter sets have the same canonical encoding.
func (f Filters) Equal(other Filters) bool {
	a, errA := f.Encode()
	b, errB := other.Encode()
	return errA == nil && errB == nil && a == b
}

// Clone returns a deep copy made through the canonical encoding, so nested
// values are not shared with f. Numbers decode as json.Number. Filters that
// cannot be encoded are copied shallowly.
func (f Filters) Clone() Filters {
	if f == nil {
		return nil
	}
	if data, err := json.Marshal(map[string]interface{}(f)); err == nil {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var out Filters
		if err := dec.Decode(&out); err == nil {
			return out
		}
	}
	out := make(Filters, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Direction is the sort direction sent in orderBy.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// OrderBy is serialized as {"field": ..., "direction": "asc"|"desc"}.
type OrderBy struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// IsZero reports whether no ordering is set.
func (o OrderBy) IsZero() bool {
	return o.Field == ""
}

// Encode returns the JSON encoding, or "" when no ordering is set.
func (o OrderBy) Encode() string {
	if o.IsZero() {
		return ""
	}
	data, _ := json.Marshal(o)
	return string(data)
}

// Criteria is everything that determines which rows a table shows.
// Scope fills the placeholders of the resource path (e.g. walletId).
type Criteria struct {
	Filters Filters
	OrderBy OrderBy
	Scope   map[string]string
}

// Equal reports whether two criteria select the same rows.
func (c Criteria) Equal(other Criteria) bool {
	if c.OrderBy != other.OrderBy || !c.Filters.Equal(other.Filters) {
		return false
	}
	if len(c.Scope) != len(other.Scope) {
		return false
	}
	for k, v := range c.Scope {
		if ov, ok := other.Scope[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// String is a stable, human-readable form used in logs.
func (c Criteria) String() string {
	filters, _ := c.Filters.Encode()
	keys := make([]string, 0, len(c.Scope))
	for k := range c.Scope {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	scope := make([]string, 0, len(keys))
	for _, k := range keys {
		scope = append(scope, k+"="+c.Scope[k])
	}
	return fmt.Sprintf("filters=%s orderBy=%s scope=[%s]", filters, c.OrderBy.Encode(), strings.Join(scope, ","))
}

// PageRequest is one bounded server request.
type PageRequest struct {
	Offset int
	Limit  int
}

// Sentinel errors
var (
	ErrInvalidRange = errors.New("invalid row range")
	ErrMissingScope = errors.New("missing scope value")
	ErrShortPage    = errors.New("short page")
)
