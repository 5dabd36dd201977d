// Package activity holds the client-side log model: log entries kept in
// memory and filtered locally, exposed as a windowed table.
package activity

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/itisfoundation/osparc-tables/internal/constants"
	"github.com/itisfoundation/osparc-tables/internal/events"
	"github.com/itisfoundation/osparc-tables/internal/filters"
	"github.com/itisfoundation/osparc-tables/internal/rows"
)

// Filter ids understood by Bind.
const (
	FilterText    = "text"
	FilterLevel   = "level"
	FilterSources = "sources"
)

// Entry is one log line.
type Entry struct {
	Time    time.Time
	Level   events.LogLevel
	Source  string
	Message string
	Error   string
}

func (e Entry) String() string {
	parts := []string{e.Time.Format("15:04:05"), e.Level.String()}
	if e.Source != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Source))
	}
	parts = append(parts, e.Message)
	if e.Error != "" {
		parts = append(parts, "error="+e.Error)
	}
	return strings.Join(parts, " ")
}

// Criteria selects entries. All set predicates must match.
type Criteria struct {
	Text     string          // case-insensitive substring of the formatted entry
	MinLevel events.LogLevel // entries below are hidden
	Sources  []string        // empty = every source
}

func (c Criteria) match(e Entry) bool {
	if e.Level < c.MinLevel {
		return false
	}
	if len(c.Sources) > 0 {
		found := false
		for _, s := range c.Sources {
			if s == e.Source {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if c.Text != "" && !strings.Contains(strings.ToLower(e.String()), strings.ToLower(c.Text)) {
		return false
	}
	return true
}

// Stats summarizes all entries regardless of criteria.
type Stats struct {
	Total    int
	Errors   int
	Warnings int
}

// Columns of the log table.
var Columns = []rows.ColumnSpec{
	{ID: "time", Label: "Time", Field: "time"},
	{ID: "level", Label: "Level", Field: "level"},
	{ID: "source", Label: "Source", Field: "source"},
	{ID: "message", Label: "Message", Field: "message"},
}

// Model is an in-memory log with client-side filtering. Safe for concurrent use.
type Model struct {
	mu         sync.RWMutex
	entries    []Entry
	maxEntries int
	criteria   Criteria
	timeLayout string
}

// NewModel creates a model keeping at most maxEntries entries
// (<= 0 = constants.ActivityLogMaxEntries). Older entries are dropped first.
func NewModel(maxEntries int) *Model {
	if maxEntries <= 0 {
		maxEntries = constants.ActivityLogMaxEntries
	}
	return &Model{
		entries:    make([]Entry, 0, constants.ActivityLogInitialCapacity),
		maxEntries: maxEntries,
		timeLayout: "2006-01-02 15:04:05",
	}
}

// Add appends entries, dropping the oldest beyond the bound.
func (m *Model) Add(entries ...Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, entries...)
	if len(m.entries) > m.maxEntries {
		m.entries = m.entries[len(m.entries)-m.maxEntries:]
	}
}

// AddEvent appends a log event from the event bus.
func (m *Model) AddEvent(ev *events.LogEvent) {
	e := Entry{
		Time:    ev.Timestamp(),
		Level:   ev.Level,
		Source:  ev.Source,
		Message: ev.Message,
	}
	if ev.Error != nil {
		e.Error = ev.Error.Error()
	}
	m.Add(e)
}

// Follow appends every log event published on bus until ctx is done or the
// bus is closed.
func (m *Model) Follow(ctx context.Context, bus *events.EventBus) {
	ch := bus.Subscribe(events.EventLog)
	defer bus.Unsubscribe(events.EventLog, ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if le, ok := ev.(*events.LogEvent); ok {
				m.AddEvent(le)
			}
		}
	}
}

// jsonLine is the shape of a zerolog JSON line.
type jsonLine struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Source  string `json:"source"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// ReadJSONLines appends the zerolog JSON lines read from r. Lines that are
// not JSON objects are skipped and counted.
func (m *Model) ReadJSONLines(r io.Reader) (added, skipped int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var batch []Entry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var jl jsonLine
		if err := json.Unmarshal([]byte(line), &jl); err != nil {
			skipped++
			continue
		}
		e := Entry{
			Level:   events.ParseLogLevel(jl.Level),
			Source:  jl.Source,
			Message: jl.Message,
			Error:   jl.Error,
		}
		if t, err := time.Parse(time.RFC3339Nano, jl.Time); err == nil {
			e.Time = t
		}
		batch = append(batch, e)
	}
	if err := scanner.Err(); err != nil {
		return 0, skipped, fmt.Errorf("read log lines: %w", err)
	}

	m.Add(batch...)
	return len(batch), skipped, nil
}

// SetCriteria replaces the filter criteria.
func (m *Model) SetCriteria(c Criteria) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.criteria = c
}

// Criteria returns the current filter criteria.
func (m *Model) Criteria() Criteria {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.criteria
}

// Bind drives the criteria from a filter group: "text" (string), "level"
// (level name) and "sources" ([]string or comma separated string).
func (m *Model) Bind(ctrl *filters.Controller, groupID string) (unsubscribe func()) {
	return ctrl.Subscribe(groupID, func(_ string, values map[string]interface{}) {
		m.SetCriteria(CriteriaFromValues(values))
	})
}

// CriteriaFromValues converts the merged state of a filter group.
func CriteriaFromValues(values map[string]interface{}) Criteria {
	var c Criteria
	if s, ok := values[FilterText].(string); ok {
		c.Text = s
	}
	if s, ok := values[FilterLevel].(string); ok && s != "" {
		c.MinLevel = events.ParseLogLevel(s)
	}
	switch v := values[FilterSources].(type) {
	case []string:
		c.Sources = append([]string(nil), v...)
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.Sources = append(c.Sources, s)
			}
		}
	}
	return c
}

func (m *Model) filteredLocked() []Entry {
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if m.criteria.match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of entries matching the criteria.
func (m *Model) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.entries {
		if m.criteria.match(e) {
			n++
		}
	}
	return n
}

// Rows returns matching entries [first, last] as table rows, oldest first.
// The range is clamped to the matching entries.
func (m *Model) Rows(first, last int) ([]rows.Row, error) {
	if first < 0 || last < first {
		return nil, fmt.Errorf("%w: [%d, %d]", rows.ErrInvalidRange, first, last)
	}

	m.mu.RLock()
	filtered := m.filteredLocked()
	layout := m.timeLayout
	m.mu.RUnlock()

	if first >= len(filtered) {
		return []rows.Row{}, nil
	}
	if last >= len(filtered) {
		last = len(filtered) - 1
	}

	out := make([]rows.Row, 0, last-first+1)
	for _, e := range filtered[first : last+1] {
		msg := e.Message
		if e.Error != "" {
			msg += ": " + e.Error
		}
		out = append(out, rows.Row{
			"time":    e.Time.Local().Format(layout),
			"level":   e.Level.String(),
			"source":  e.Source,
			"message": msg,
		})
	}
	return out, nil
}

// Sources returns the distinct sources seen, sorted.
func (m *Model) Sources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, e := range m.entries {
		if e.Source != "" {
			seen[e.Source] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Stats counts all entries by severity.
func (m *Model) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Stats{Total: len(m.entries)}
	for _, e := range m.entries {
		switch e.Level {
		case events.ErrorLevel:
			s.Errors++
		case events.WarnLevel:
			s.Warnings++
		}
	}
	return s
}

// Clear drops all entries.
func (m *Model) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make([]Entry, 0, constants.ActivityLogInitialCapacity)
}
