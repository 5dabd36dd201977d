package rows

import (
	"encoding/json"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultDateLayout is used when a Formatter has no layout.
const DefaultDateLayout = "2006-01-02 15:04"

// Formatter renders backend records into display rows.
type Formatter struct {
	DateLayout string
	Location   *time.Location // nil = local time
}

// Transform builds the Row for one record. Missing or null fields render as
// "" and never fail.
func (f Formatter) Transform(columns []ColumnSpec, record map[string]interface{}) Row {
	row := make(Row, len(columns))
	for _, col := range columns {
		row[col.ID] = f.FormatValue(col, record)
	}
	return row
}

// FormatValue renders a single column of a record.
func (f Formatter) FormatValue(col ColumnSpec, record map[string]interface{}) string {
	v, ok := Lookup(record, col.Field)
	if col.Format == FormatDuration {
		end, _ := Lookup(record, col.EndField)
		return f.duration(v, end)
	}
	if !ok || v == nil {
		return ""
	}

	switch col.Format {
	case FormatCurrency:
		n, ok := toFloat(v)
		if !ok {
			return ""
		}
		return col.Prefix + strconv.FormatFloat(n, 'f', 2, 64)
	case FormatCredits:
		n, ok := toFloat(v)
		if !ok {
			return ""
		}
		return strconv.FormatFloat(n, 'f', 2, 64)
	case FormatInt:
		n, ok := toFloat(v)
		if !ok {
			return ""
		}
		return strconv.FormatInt(int64(math.Round(n)), 10)
	case FormatDate:
		t, ok := toTime(v)
		if !ok {
			return toString(v)
		}
		return f.localize(t).Format(f.layout())
	case FormatStatus:
		return statusTag(toString(v), col.Colors)
	case FormatLink:
		href := toString(v)
		if href == "" {
			return ""
		}
		label := col.LinkLabel
		if label == "" {
			label = href
		}
		return fmt.Sprintf(`<a href="%s" target="_blank">%s</a>`, html.EscapeString(href), html.EscapeString(label))
	default:
		return toString(v)
	}
}

func (f Formatter) layout() string {
	if f.DateLayout == "" {
		return DefaultDateLayout
	}
	return f.DateLayout
}

func (f Formatter) localize(t time.Time) time.Time {
	if f.Location != nil {
		return t.In(f.Location)
	}
	return t.Local()
}

// duration renders end-start as HH:MM:SS. A missing end renders "".
func (f Formatter) duration(start, end interface{}) string {
	s, ok := toTime(start)
	if !ok {
		return ""
	}
	e, ok := toTime(end)
	if !ok {
		return ""
	}
	d := e.Sub(s)
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

// statusTag wraps a status in a color tag. Unknown statuses are returned as text.
func statusTag(status string, colors map[string]string) string {
	if status == "" {
		return ""
	}
	label := strings.ToUpper(status)
	color, ok := colors[label]
	if !ok {
		color, ok = colors[status]
	}
	if !ok || color == "" {
		return html.EscapeString(label)
	}
	return fmt.Sprintf(`<font color="%s">%s</font>`, html.EscapeString(color), html.EscapeString(label))
}

// Lookup resolves a dotted path ("service.key") inside a record.
func Lookup(record map[string]interface{}, path string) (interface{}, bool) {
	if path == "" || record == nil {
		return nil, false
	}
	var cur interface{} = record
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
