// Package table provides the windowed table model that sits between a
// remote row source and whatever displays the rows.
//
// A Model owns the filter, sort and scope criteria of one table. Changing
// any of them starts a new criteria generation: the cached count and rows
// are dropped, requests of the previous generation are cancelled and their
// late results are discarded. Within a generation the row count is always
// loaded before the first row range.
package table

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/itisfoundation/osparc-tables/internal/constants"
	"github.com/itisfoundation/osparc-tables/internal/events"
	"github.com/itisfoundation/osparc-tables/internal/logging"
	"github.com/itisfoundation/osparc-tables/internal/rows"
)

// Sentinel errors
var (
	ErrInvalidColumn     = errors.New("invalid column")
	ErrColumnNotSortable = errors.New("column is not sortable")
)

// RowSource is what a Model loads from. *rows.Source implements it.
type RowSource interface {
	LoadCount(ctx context.Context, c rows.Criteria) (int, error)
	LoadRange(ctx context.Context, first, last int, c rows.Criteria) ([]rows.Row, error)
	Columns() []rows.ColumnSpec
}

// Window is the outcome of a row request.
//
// Err set means the fetch failed and Rows is nil; an empty Rows with nil Err
// means the table really has no rows there. Stale means the criteria changed
// while the request was in flight and the result was discarded.
type Window struct {
	First int
	Rows  []rows.Row
	Total int
	Err   error
	Stale bool
}

// Count is the outcome of a row count request. Known is false when the
// probe failed; callers treat the table as empty.
type Count struct {
	N     int
	Known bool
	Err   error
	Stale bool
}

// Options configures NewModel.
type Options struct {
	Resource  string // name used in logs and events
	CacheRows int    // row window bound (default constants.DefaultCacheRows)

	Filters rows.Filters
	OrderBy rows.OrderBy
	Scope   map[string]string

	EventBus *events.EventBus
	Logger   *logging.Logger
}

// Model is the table model of one remote resource. Safe for concurrent use.
type Model struct {
	id       string
	resource string
	source   RowSource
	columns  []rows.ColumnSpec
	cache    *rows.Cache
	eventBus *events.EventBus
	logger   *logging.Logger

	countGroup singleflight.Group

	mu           sync.Mutex
	criteria     rows.Criteria
	generation   uint64
	genCtx       context.Context
	genCancel    context.CancelFunc
	state        State
	countLoading bool
	countErr     error // count probe failure of the current generation
	rowsInflight int
	rowsDue      bool // a row request waits on the count
}

// NewModel creates a model over source. The model starts Invalidated.
func NewModel(source RowSource, opts Options) *Model {
	cacheRows := opts.CacheRows
	if cacheRows <= 0 {
		cacheRows = constants.DefaultCacheRows
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	scope := make(map[string]string, len(opts.Scope))
	for k, v := range opts.Scope {
		scope[k] = v
	}

	genCtx, genCancel := context.WithCancel(context.Background())

	m := &Model{
		id:       uuid.NewString(),
		resource: opts.Resource,
		source:   source,
		columns:  source.Columns(),
		cache:    rows.NewCache(cacheRows),
		eventBus: opts.EventBus,
		criteria: rows.Criteria{
			Filters: opts.Filters.Clone(),
			OrderBy: opts.OrderBy,
			Scope:   scope,
		},
		generation: 1,
		genCtx:     genCtx,
		genCancel:  genCancel,
		state:      Invalidated,
	}
	m.logger = logger.Component("table")
	return m
}

// ID returns the unique model id carried by its events.
func (m *Model) ID() string { return m.id }

// Resource returns the resource name.
func (m *Model) Resource() string { return m.resource }

// Columns returns a copy of the column list.
func (m *Model) Columns() []rows.ColumnSpec {
	out := make([]rows.ColumnSpec, len(m.columns))
	copy(out, m.columns)
	return out
}

// ColumnIndex returns the index of the column with the given id.
func (m *Model) ColumnIndex(id string) (int, bool) {
	for i, c := range m.columns {
		if c.ID == id {
			return i, true
		}
	}
	return -1, false
}

// State returns the current loading state.
func (m *Model) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsFetching reports whether a reload is under way: true from the moment
// criteria are invalidated until count and rows have resolved or failed.
func (m *Model) IsFetching() bool {
	return m.State() != Idle
}

// Generation returns the current criteria generation.
func (m *Model) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// Criteria returns a copy of the current criteria.
func (m *Model) Criteria() rows.Criteria {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.criteriaLocked()
}

func (m *Model) criteriaLocked() rows.Criteria {
	scope := make(map[string]string, len(m.criteria.Scope))
	for k, v := range m.criteria.Scope {
		scope[k] = v
	}
	return rows.Criteria{
		Filters: m.criteria.Filters.Clone(),
		OrderBy: m.criteria.OrderBy,
		Scope:   scope,
	}
}

// OrderBy returns the current ordering.
func (m *Model) OrderBy() rows.OrderBy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.criteria.OrderBy
}

// Filters returns a copy of the current filters.
func (m *Model) Filters() rows.Filters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.criteria.Filters.Clone()
}

// SetFilters replaces the filters. Setting filters equal to the current ones
// is a no-op and returns false; otherwise the model is invalidated once.
func (m *Model) SetFilters(filters rows.Filters) bool {
	m.mu.Lock()
	if m.criteria.Filters.Equal(filters) {
		m.mu.Unlock()
		return false
	}
	m.criteria.Filters = filters.Clone()
	ev := m.invalidateLocked("filters")
	m.mu.Unlock()

	m.publish(ev)
	return true
}

// SetScope sets one path placeholder value (e.g. walletId). Returns false
// when the value is unchanged.
func (m *Model) SetScope(key, value string) bool {
	m.mu.Lock()
	if cur, ok := m.criteria.Scope[key]; ok && cur == value {
		m.mu.Unlock()
		return false
	}
	if m.criteria.Scope == nil {
		m.criteria.Scope = make(map[string]string)
	}
	m.criteria.Scope[key] = value
	ev := m.invalidateLocked("scope")
	m.mu.Unlock()

	m.publish(ev)
	return true
}

// SortByColumn orders by the server sort field of column col, ascending or
// descending. Re-selecting the current ordering does not invalidate.
func (m *Model) SortByColumn(col int, ascending bool) error {
	if col < 0 || col >= len(m.columns) {
		return fmt.Errorf("%w: %d", ErrInvalidColumn, col)
	}
	spec := m.columns[col]
	if !spec.Sortable {
		return fmt.Errorf("%w: %s", ErrColumnNotSortable, spec.ID)
	}

	order := rows.OrderBy{Field: spec.SortKey(), Direction: rows.Desc}
	if ascending {
		order.Direction = rows.Asc
	}

	m.mu.Lock()
	if m.criteria.OrderBy == order {
		m.mu.Unlock()
		return nil
	}
	m.criteria.OrderBy = order
	ev := m.invalidateLocked("sort")
	m.mu.Unlock()

	m.publish(ev)
	return nil
}

// SortByColumnID is SortByColumn addressed by column id.
func (m *Model) SortByColumnID(id string, ascending bool) error {
	idx, ok := m.ColumnIndex(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidColumn, id)
	}
	return m.SortByColumn(idx, ascending)
}

// Invalidate drops the cached count and rows and starts a new generation.
func (m *Model) Invalidate() {
	m.mu.Lock()
	ev := m.invalidateLocked("reload")
	m.mu.Unlock()

	m.publish(ev)
}

func (m *Model) invalidateLocked(reason string) *events.TableEvent {
	m.genCancel()
	m.genCtx, m.genCancel = context.WithCancel(context.Background())

	m.generation++
	m.cache.Clear()
	m.state = Invalidated
	m.countLoading = false
	m.countErr = nil
	m.rowsInflight = 0
	m.rowsDue = false

	m.logger.Debug().
		Str("resource", m.resource).
		Uint64("generation", m.generation).
		Str("reason", reason).
		Msg("criteria invalidated")

	ev := m.newEvent(events.EventTableInvalidated)
	ev.Reason = reason
	return ev
}

// Reload invalidates the model and loads the count, then rows [first, last].
func (m *Model) Reload(ctx context.Context, first, last int) Window {
	m.Invalidate()
	return m.Rows(ctx, first, last)
}

// Count returns the cached row count without a network request.
func (m *Model) Count() Count {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, known := m.cache.Count()
	return Count{N: n, Known: known, Err: m.countErr}
}

// LoadCount returns the row count of the current generation, probing the
// server once per generation. Concurrent callers share one probe.
func (m *Model) LoadCount(ctx context.Context) Count {
	m.mu.Lock()
	gen := m.generation
	if n, known := m.cache.Count(); known {
		m.mu.Unlock()
		return Count{N: n, Known: true}
	}
	if m.countErr != nil {
		err := m.countErr
		m.mu.Unlock()
		return Count{Err: err}
	}
	m.mu.Unlock()

	return m.loadCount(ctx, gen)
}

// loadCount joins the probe of generation gen. The probe runs on the
// generation context, so a waiter giving up never fails the others.
func (m *Model) loadCount(ctx context.Context, gen uint64) Count {
	ch := m.countGroup.DoChan(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		return m.fetchCount(gen), nil
	})
	select {
	case res := <-ch:
		return res.Val.(Count)
	case <-ctx.Done():
		return Count{Err: ctx.Err()}
	}
}

func (m *Model) fetchCount(gen uint64) Count {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return Count{Stale: true}
	}
	if n, known := m.cache.Count(); known {
		m.mu.Unlock()
		return Count{N: n, Known: true}
	}
	m.countLoading = true
	m.state = CountLoading
	crit := m.criteriaLocked()
	genCtx := m.genCtx
	m.mu.Unlock()

	n, err := m.source.LoadCount(genCtx, crit)

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		m.logger.Debug().Str("resource", m.resource).Uint64("generation", gen).Msg("discarding stale count")
		return Count{Stale: true}
	}
	m.countLoading = false

	var ev *events.TableEvent
	if err != nil {
		// Cancellation is not a probe failure; the next caller probes again.
		if !isContextErr(err) {
			m.countErr = err
		}
		m.rowsDue = false
		m.settleLocked()
		ev = m.newEvent(events.EventTableLoadFailed)
		ev.Error = err
		m.mu.Unlock()

		m.logger.Error().Err(err).Str("resource", m.resource).Uint64("generation", gen).Msg("row count unavailable")
		m.publish(ev)
		return Count{Err: err}
	}

	m.cache.SetCount(n)
	if n == 0 {
		m.rowsDue = false
	}
	m.settleLocked()
	ev = m.newEvent(events.EventTableCount)
	ev.Total = n
	ev.Known = true
	m.mu.Unlock()

	m.publish(ev)
	return Count{N: n, Known: true}
}

// settleLocked derives the state from the outstanding work.
func (m *Model) settleLocked() {
	switch {
	case m.countLoading:
		m.state = CountLoading
	case m.rowsInflight > 0 || m.rowsDue:
		m.state = RowsLoading
	default:
		m.state = Idle
	}
}

// Rows returns rows [first, last] of the current generation. The count is
// loaded first when it is not known yet; rows past the count are not
// requested. Failures are reported in Window.Err, never as a panic or a
// partial row list.
func (m *Model) Rows(ctx context.Context, first, last int) Window {
	if first < 0 || last < first {
		return Window{First: first, Err: fmt.Errorf("%w: [%d, %d]", rows.ErrInvalidRange, first, last)}
	}

	m.mu.Lock()
	gen := m.generation
	if cached, ok := m.cache.Get(first, last); ok {
		total, _ := m.cache.Count()
		m.mu.Unlock()
		return Window{First: first, Rows: cached, Total: total}
	}
	if m.countErr != nil {
		err := m.countErr
		m.mu.Unlock()
		return Window{First: first, Err: err}
	}
	_, known := m.cache.Count()
	if !known {
		m.rowsDue = true
		m.settleLocked()
	}
	m.mu.Unlock()

	if !known {
		c := m.loadCount(ctx, gen)
		switch {
		case c.Stale:
			return Window{First: first, Stale: true}
		case !c.Known:
			if ctx.Err() != nil {
				m.abandonRows(gen)
			}
			return Window{First: first, Err: c.Err}
		}
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return Window{First: first, Stale: true}
	}
	total, _ := m.cache.Count()
	if last >= total {
		last = total - 1
	}
	if first > last {
		m.rowsDue = false
		m.settleLocked()
		m.mu.Unlock()
		return Window{First: first, Rows: []rows.Row{}, Total: total}
	}
	m.rowsInflight++
	m.state = RowsLoading
	crit := m.criteriaLocked()
	opCtx, cancel := mergeContext(ctx, m.genCtx)
	m.mu.Unlock()
	defer cancel()

	loaded, err := m.source.LoadRange(opCtx, first, last, crit)

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		m.logger.Debug().Str("resource", m.resource).Uint64("generation", gen).Int("first", first).Msg("discarding stale rows")
		return Window{First: first, Stale: true}
	}
	m.rowsInflight--
	m.rowsDue = false
	m.settleLocked()

	if err != nil {
		ev := m.newEvent(events.EventTableLoadFailed)
		ev.First = first
		ev.Error = err
		m.mu.Unlock()

		m.logger.Error().Err(err).
			Str("resource", m.resource).
			Uint64("generation", gen).
			Int("first", first).
			Int("last", last).
			Msg("row range unavailable")
		m.publish(ev)
		return Window{First: first, Total: total, Err: err}
	}

	m.cache.Put(first, loaded)
	ev := m.newEvent(events.EventTableRows)
	ev.First = first
	ev.Rows = len(loaded)
	ev.Total = total
	ev.Known = true
	m.mu.Unlock()

	m.publish(ev)
	return Window{First: first, Rows: loaded, Total: total}
}

// Close cancels in-flight requests. The model must not be used afterwards.
func (m *Model) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.genCancel()
}

func (m *Model) newEvent(t events.EventType) *events.TableEvent {
	return newTableEvent(t, m.id, m.resource, m.generation)
}

func (m *Model) publish(ev *events.TableEvent) {
	if m.eventBus != nil && ev != nil {
		m.eventBus.Publish(ev)
	}
}

// abandonRows drops the pending row request of a caller that stopped
// waiting for the count.
func (m *Model) abandonRows(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation || m.rowsInflight > 0 {
		return
	}
	m.rowsDue = false
	m.settleLocked()
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// mergeContext returns a context cancelled when either ctx or gen is done.
func mergeContext(ctx, gen context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(gen, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
