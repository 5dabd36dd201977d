package rows

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRecord(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &rec))
	return rec
}

func TestFormatter_Transform(t *testing.T) {
	f := Formatter{DateLayout: "2006-01-02 15:04", Location: time.UTC}
	columns := []ColumnSpec{
		{ID: "date", Field: "created_at", Format: FormatDate},
		{ID: "price", Field: "priceDollars", Format: FormatCurrency, Prefix: "$"},
		{ID: "credits", Field: "osparcCredits", Format: FormatCredits},
		{ID: "status", Field: "completedStatus", Format: FormatStatus, Colors: map[string]string{"SUCCESS": "#00FF00", "FAILED": "#FF0000"}},
		{ID: "invoice", Field: "invoiceUrl", Format: FormatLink, LinkLabel: "Invoice"},
		{ID: "service", Field: "service.key", Format: FormatText},
		{ID: "seats", Field: "num_of_seats", Format: FormatInt},
		{ID: "duration", Field: "started_at", EndField: "stopped_at", Format: FormatDuration},
		{ID: "comment", Field: "comment"},
	}

	rec := decodeRecord(t, `{
		"created_at": "2024-03-05T14:07:00Z",
		"priceDollars": "10.5",
		"osparcCredits": 105.1,
		"completedStatus": "success",
		"invoiceUrl": "https://stripe.example/inv?a=1&b=2",
		"service": {"key": "simcore/services/comp/sleeper"},
		"num_of_seats": 3,
		"started_at": "2024-03-05T14:00:00Z",
		"stopped_at": "2024-03-05T15:01:02.5Z",
		"comment": null
	}`)

	row := f.Transform(columns, rec)

	assert.Equal(t, Row{
		"date":     "2024-03-05 14:07",
		"price":    "$10.50",
		"credits":  "105.10",
		"status":   `<font color="#00FF00">SUCCESS</font>`,
		"invoice":  `<a href="https://stripe.example/inv?a=1&amp;b=2" target="_blank">Invoice</a>`,
		"service":  "simcore/services/comp/sleeper",
		"seats":    "3",
		"duration": "01:01:02",
		"comment":  "",
	}, row)
}

func TestFormatter_MissingFieldsAreEmpty(t *testing.T) {
	f := Formatter{}
	columns := []ColumnSpec{
		{ID: "a", Field: "missing", Format: FormatCurrency},
		{ID: "b", Field: "nested.missing", Format: FormatDate},
		{ID: "c", Field: "started_at", EndField: "stopped_at", Format: FormatDuration},
		{ID: "d", Field: "status", Format: FormatStatus},
		{ID: "e", Field: "price", Format: FormatCredits},
	}

	row := f.Transform(columns, decodeRecord(t, `{"nested": "scalar", "started_at": "2024-01-01T00:00:00Z", "stopped_at": null, "price": "n/a"}`))
	for _, col := range columns {
		assert.Equal(t, "", row[col.ID], "column %s", col.ID)
	}
}

func TestFormatter_StatusWithoutColor(t *testing.T) {
	col := ColumnSpec{ID: "s", Field: "s", Format: FormatStatus, Colors: map[string]string{"SUCCESS": "green"}}
	assert.Equal(t, "PENDING", Formatter{}.FormatValue(col, map[string]interface{}{"s": "pending"}))
}

func TestFormatter_UnparseableDateFallsBackToRaw(t *testing.T) {
	col := ColumnSpec{ID: "d", Field: "d", Format: FormatDate}
	assert.Equal(t, "yesterday", Formatter{}.FormatValue(col, map[string]interface{}{"d": "yesterday"}))
}

func TestLookup(t *testing.T) {
	rec := decodeRecord(t, `{"a": {"b": {"c": 1}}, "x": null}`)

	v, ok := Lookup(rec, "a.b.c")
	assert.True(t, ok)
	assert.Equal(t, float64(1), v)

	v, ok = Lookup(rec, "x")
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = Lookup(rec, "a.z")
	assert.False(t, ok)
	_, ok = Lookup(rec, "")
	assert.False(t, ok)
}
