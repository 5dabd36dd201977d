package table

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itisfoundation/osparc-tables/internal/events"
	"github.com/itisfoundation/osparc-tables/internal/rows"
)

// spySource records every call in order and serves rows {"id": n}.
type spySource struct {
	mu       sync.Mutex
	total    int
	countErr error
	rangeErr error
	calls    []string
	criteria []rows.Criteria

	// When set, the matching call blocks until the channel is closed or
	// the context is cancelled. entered is signalled on entry.
	countGate chan struct{}
	rangeGate chan struct{}
	entered   chan string
}

func (s *spySource) record(call string, c rows.Criteria) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.criteria = append(s.criteria, c)
	s.mu.Unlock()
	if s.entered != nil {
		s.entered <- call
	}
}

func (s *spySource) wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *spySource) LoadCount(ctx context.Context, c rows.Criteria) (int, error) {
	s.record("count", c)
	if err := s.wait(ctx, s.countGate); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total, s.countErr
}

func (s *spySource) LoadRange(ctx context.Context, first, last int, c rows.Criteria) ([]rows.Row, error) {
	s.record("range:"+strconv.Itoa(first)+"-"+strconv.Itoa(last), c)
	if err := s.wait(ctx, s.rangeGate); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rangeErr != nil {
		return nil, s.rangeErr
	}
	var out []rows.Row
	for n := first; n <= last && n < s.total; n++ {
		out = append(out, rows.Row{"id": strconv.Itoa(n)})
	}
	return out, nil
}

func (s *spySource) Columns() []rows.ColumnSpec {
	return []rows.ColumnSpec{
		{ID: "id", Label: "ID", Field: "id", Sortable: true},
		{ID: "started", Label: "Start", Field: "started_at", Sortable: true},
		{ID: "comment", Label: "Comment", Field: "comment"},
	}
}

func (s *spySource) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func drain(ch <-chan events.Event) []*events.TableEvent {
	var out []*events.TableEvent
	for {
		select {
		case ev := <-ch:
			if te, ok := ev.(*events.TableEvent); ok {
				out = append(out, te)
			}
		default:
			return out
		}
	}
}

func TestModel_CountBeforeRange(t *testing.T) {
	src := &spySource{total: 120}
	m := NewModel(src, Options{Resource: "usage"})

	w := m.Rows(context.Background(), 0, 99)
	require.NoError(t, w.Err)
	require.Len(t, w.Rows, 100)
	assert.Equal(t, 120, w.Total)
	assert.Equal(t, []string{"count", "range:0-99"}, src.Calls())

	// Same criteria and window: served from cache.
	w = m.Rows(context.Background(), 10, 20)
	require.NoError(t, w.Err)
	assert.Len(t, w.Rows, 11)
	assert.Len(t, src.Calls(), 2)

	// After invalidation the count is probed again before any range.
	m.SetFilters(rows.Filters{"service": "jupyter"})
	w = m.Rows(context.Background(), 0, 9)
	require.NoError(t, w.Err)
	assert.Equal(t, []string{"count", "range:0-99", "count", "range:0-9"}, src.Calls())
}

func TestModel_RangeClampedToCount(t *testing.T) {
	src := &spySource{total: 30}
	m := NewModel(src, Options{})

	w := m.Rows(context.Background(), 0, 99)
	require.NoError(t, w.Err)
	assert.Len(t, w.Rows, 30)
	assert.Equal(t, []string{"count", "range:0-29"}, src.Calls())

	w = m.Rows(context.Background(), 40, 60)
	require.NoError(t, w.Err)
	assert.Empty(t, w.Rows)
	assert.Equal(t, 30, w.Total)
}

func TestModel_EmptyTableSkipsRange(t *testing.T) {
	src := &spySource{total: 0}
	m := NewModel(src, Options{})

	w := m.Rows(context.Background(), 0, 49)
	require.NoError(t, w.Err)
	assert.NotNil(t, w.Rows)
	assert.Empty(t, w.Rows)
	assert.Equal(t, []string{"count"}, src.Calls())
	assert.Equal(t, Idle, m.State())
	assert.False(t, m.IsFetching())
}

func TestModel_InvalidRange(t *testing.T) {
	src := &spySource{total: 10}
	m := NewModel(src, Options{})

	w := m.Rows(context.Background(), 5, 2)
	assert.ErrorIs(t, w.Err, rows.ErrInvalidRange)
	w = m.Rows(context.Background(), -1, 2)
	assert.ErrorIs(t, w.Err, rows.ErrInvalidRange)
	assert.Empty(t, src.Calls())
}

func TestModel_SetFiltersIdempotent(t *testing.T) {
	bus := events.NewEventBus(100)
	defer bus.Close()
	ch := bus.Subscribe(events.EventTableInvalidated)

	src := &spySource{total: 5}
	m := NewModel(src, Options{Resource: "transactions", EventBus: bus})

	require.NoError(t, m.Rows(context.Background(), 0, 4).Err)
	gen := m.Generation()

	f := rows.Filters{"started_at": map[string]interface{}{"from": "2024-01-01", "to": "2024-02-01"}}
	assert.True(t, m.SetFilters(f))
	assert.Equal(t, gen+1, m.Generation())
	assert.False(t, m.Count().Known, "count dropped on invalidation")

	// Equal filters with a different key order are a no-op.
	same := rows.Filters{"started_at": map[string]interface{}{"to": "2024-02-01", "from": "2024-01-01"}}
	assert.False(t, m.SetFilters(same))
	assert.Equal(t, gen+1, m.Generation())

	evs := drain(ch)
	require.Len(t, evs, 1)
	assert.Equal(t, "filters", evs[0].Reason)
	assert.Equal(t, m.ID(), evs[0].ModelID)
	assert.Equal(t, "transactions", evs[0].Resource)
	assert.Equal(t, gen+1, evs[0].Generation)

	// The new filters reach the source.
	require.NoError(t, m.Rows(context.Background(), 0, 4).Err)
	src.mu.Lock()
	last := src.criteria[len(src.criteria)-1]
	src.mu.Unlock()
	assert.True(t, last.Filters.Equal(f))
}

func TestModel_CallerMutationDoesNotLeak(t *testing.T) {
	src := &spySource{total: 10}
	m := NewModel(src, Options{})

	rng := map[string]interface{}{"from": "2024-01-01"}
	require.True(t, m.SetFilters(rows.Filters{"started_at": rng}))
	gen := m.Generation()

	rng["to"] = "2024-02-01"
	assert.True(t, m.Filters().Equal(rows.Filters{"started_at": map[string]interface{}{"from": "2024-01-01"}}))
	assert.Equal(t, gen, m.Generation())

	// Mutating the returned copy does not reach the model either.
	got := m.Filters()
	got["status"] = "FAILED"
	assert.False(t, m.Filters().Equal(got))
}

func TestModel_SortRoundTrip(t *testing.T) {
	src := &spySource{total: 5}
	m := NewModel(src, Options{})

	idx, ok := m.ColumnIndex("started")
	require.True(t, ok)

	require.NoError(t, m.SortByColumn(idx, true))
	assert.Equal(t, rows.OrderBy{Field: "started_at", Direction: rows.Asc}, m.OrderBy())
	gen := m.Generation()

	require.NoError(t, m.SortByColumn(idx, true))
	assert.Equal(t, gen, m.Generation(), "same order does not invalidate")

	require.NoError(t, m.SortByColumn(idx, false))
	assert.Equal(t, rows.OrderBy{Field: "started_at", Direction: rows.Desc}, m.OrderBy())
	assert.Equal(t, gen+1, m.Generation())

	require.NoError(t, m.Rows(context.Background(), 0, 4).Err)
	src.mu.Lock()
	assert.Equal(t, `{"field":"started_at","direction":"desc"}`, src.criteria[0].OrderBy.Encode())
	src.mu.Unlock()
}

func TestModel_SortErrors(t *testing.T) {
	m := NewModel(&spySource{}, Options{})

	assert.ErrorIs(t, m.SortByColumn(7, true), ErrInvalidColumn)
	assert.ErrorIs(t, m.SortByColumn(-1, true), ErrInvalidColumn)
	assert.ErrorIs(t, m.SortByColumn(2, true), ErrColumnNotSortable)
	assert.True(t, m.OrderBy().IsZero())
}

func TestModel_SetScope(t *testing.T) {
	src := &spySource{total: 3}
	m := NewModel(src, Options{Scope: map[string]string{"walletId": "1"}})

	assert.False(t, m.SetScope("walletId", "1"))
	assert.True(t, m.SetScope("walletId", "2"))
	assert.Equal(t, map[string]string{"walletId": "2"}, m.Criteria().Scope)

	require.NoError(t, m.Rows(context.Background(), 0, 2).Err)
	src.mu.Lock()
	assert.Equal(t, "2", src.criteria[0].Scope["walletId"])
	src.mu.Unlock()
}

func TestModel_StaleRowsDiscarded(t *testing.T) {
	src := &spySource{
		total:     100,
		rangeGate: make(chan struct{}),
		entered:   make(chan string, 10),
	}
	m := NewModel(src, Options{})

	done := make(chan Window, 1)
	go func() { done <- m.Rows(context.Background(), 0, 9) }()

	require.Equal(t, "count", <-src.entered)
	require.Equal(t, "range:0-9", <-src.entered)
	assert.Equal(t, RowsLoading, m.State())

	m.SetFilters(rows.Filters{"x": 1})

	select {
	case w := <-done:
		assert.True(t, w.Stale)
		assert.Nil(t, w.Rows)
		assert.NoError(t, w.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("stale request was not cancelled")
	}

	// Nothing from the old generation leaked into the new one.
	assert.Equal(t, Invalidated, m.State())
	assert.False(t, m.Count().Known)

	close(src.rangeGate)
	w := m.Rows(context.Background(), 0, 9)
	require.NoError(t, w.Err)
	assert.Len(t, w.Rows, 10)
	assert.Equal(t, Idle, m.State())
}

func TestModel_StaleCountDiscarded(t *testing.T) {
	src := &spySource{
		total:     100,
		countGate: make(chan struct{}),
		entered:   make(chan string, 10),
	}
	m := NewModel(src, Options{})

	done := make(chan Window, 1)
	go func() { done <- m.Rows(context.Background(), 0, 9) }()

	require.Equal(t, "count", <-src.entered)
	assert.Equal(t, CountLoading, m.State())
	m.Invalidate()

	w := <-done
	assert.True(t, w.Stale)
	assert.Equal(t, []string{"count"}, src.Calls(), "no range after a stale count")
}

func TestModel_ConcurrentCountShared(t *testing.T) {
	src := &spySource{
		total:     100,
		countGate: make(chan struct{}),
		entered:   make(chan string, 10),
	}
	m := NewModel(src, Options{})

	var wg sync.WaitGroup
	results := make([]Count, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.LoadCount(context.Background())
		}(i)
	}

	<-src.entered
	// Let the others join the in-flight probe.
	time.Sleep(50 * time.Millisecond)
	close(src.countGate)
	wg.Wait()

	for _, c := range results {
		assert.True(t, c.Known)
		assert.Equal(t, 100, c.N)
	}
	assert.Equal(t, []string{"count"}, src.Calls())
}

func TestModel_CancelledCallerDoesNotPoisonCount(t *testing.T) {
	src := &spySource{
		total:     20,
		countGate: make(chan struct{}),
		entered:   make(chan string, 10),
	}
	m := NewModel(src, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Window, 1)
	go func() { done <- m.Rows(ctx, 0, 4) }()

	require.Equal(t, "count", <-src.entered)
	cancel()
	w := <-done
	assert.ErrorIs(t, w.Err, context.Canceled)
	assert.NoError(t, m.Count().Err)

	close(src.countGate)
	w = m.Rows(context.Background(), 0, 4)
	require.NoError(t, w.Err)
	assert.Len(t, w.Rows, 5)
	assert.Equal(t, 20, w.Total)
	assert.Equal(t, []string{"count", "range:0-4"}, src.Calls())
	assert.Equal(t, Idle, m.State())
}

func TestModel_CountWaiterCancelLeavesOthers(t *testing.T) {
	src := &spySource{
		total:     100,
		countGate: make(chan struct{}),
		entered:   make(chan string, 10),
	}
	m := NewModel(src, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan Count, 1)
	go func() { first <- m.LoadCount(ctx) }()
	require.Equal(t, "count", <-src.entered)

	second := make(chan Count, 1)
	go func() { second <- m.LoadCount(context.Background()) }()
	// Let the second caller join the in-flight probe.
	time.Sleep(50 * time.Millisecond)

	cancel()
	c := <-first
	assert.False(t, c.Known)
	assert.ErrorIs(t, c.Err, context.Canceled)

	close(src.countGate)
	c = <-second
	require.NoError(t, c.Err)
	assert.True(t, c.Known)
	assert.Equal(t, 100, c.N)
	assert.Equal(t, []string{"count"}, src.Calls())
}

func TestModel_CountFailure(t *testing.T) {
	bus := events.NewEventBus(100)
	defer bus.Close()
	failed := bus.Subscribe(events.EventTableLoadFailed)

	boom := errors.New("count endpoint down")
	src := &spySource{total: 10, countErr: boom}
	m := NewModel(src, Options{EventBus: bus})

	w := m.Rows(context.Background(), 0, 9)
	assert.ErrorIs(t, w.Err, boom)
	assert.Nil(t, w.Rows)
	assert.Equal(t, Idle, m.State())
	assert.ErrorIs(t, m.Count().Err, boom)

	// The failure sticks for the generation.
	w = m.Rows(context.Background(), 0, 9)
	assert.ErrorIs(t, w.Err, boom)
	assert.Equal(t, []string{"count"}, src.Calls())

	evs := drain(failed)
	require.Len(t, evs, 1)
	assert.ErrorIs(t, evs[0].Error, boom)

	// Reload probes again.
	src.mu.Lock()
	src.countErr = nil
	src.mu.Unlock()
	w = m.Reload(context.Background(), 0, 9)
	require.NoError(t, w.Err)
	assert.Len(t, w.Rows, 10)
	assert.Equal(t, []string{"count", "count", "range:0-9"}, src.Calls())
}

func TestModel_RangeFailure(t *testing.T) {
	boom := errors.New("502")
	src := &spySource{total: 100, rangeErr: boom}
	m := NewModel(src, Options{})

	w := m.Rows(context.Background(), 0, 9)
	assert.ErrorIs(t, w.Err, boom)
	assert.Nil(t, w.Rows)
	assert.Equal(t, 100, w.Total)
	assert.Equal(t, Idle, m.State())

	// Count stays cached; a retry only refetches the range.
	src.mu.Lock()
	src.rangeErr = nil
	src.mu.Unlock()
	w = m.Rows(context.Background(), 0, 9)
	require.NoError(t, w.Err)
	assert.Equal(t, []string{"count", "range:0-9", "range:0-9"}, src.Calls())
}

func TestModel_FetchingFlag(t *testing.T) {
	src := &spySource{total: 10}
	m := NewModel(src, Options{})

	assert.Equal(t, Invalidated, m.State())
	assert.True(t, m.IsFetching())

	require.NoError(t, m.Rows(context.Background(), 0, 9).Err)
	assert.Equal(t, Idle, m.State())
	assert.False(t, m.IsFetching())

	m.SetFilters(rows.Filters{"status": "SUCCESS"})
	assert.True(t, m.IsFetching())
}

func TestModel_EventSequence(t *testing.T) {
	bus := events.NewEventBus(100)
	defer bus.Close()
	all := bus.SubscribeAll()

	src := &spySource{total: 60}
	m := NewModel(src, Options{Resource: "rentals", EventBus: bus})

	m.Reload(context.Background(), 0, 49)

	evs := drain(all)
	require.Len(t, evs, 3)
	assert.Equal(t, events.EventTableInvalidated, evs[0].Type())
	assert.Equal(t, events.EventTableCount, evs[1].Type())
	assert.Equal(t, 60, evs[1].Total)
	assert.True(t, evs[1].Known)
	assert.Equal(t, events.EventTableRows, evs[2].Type())
	assert.Equal(t, 50, evs[2].Rows)
	for _, ev := range evs {
		assert.Equal(t, m.Generation(), ev.Generation)
	}
}

func TestModel_CloseCancelsInflight(t *testing.T) {
	src := &spySource{
		total:     100,
		rangeGate: make(chan struct{}),
		entered:   make(chan string, 10),
	}
	m := NewModel(src, Options{})

	done := make(chan Window, 1)
	go func() { done <- m.Rows(context.Background(), 0, 9) }()
	<-src.entered
	<-src.entered

	m.Close()

	select {
	case w := <-done:
		assert.ErrorIs(t, w.Err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel the range")
	}
}
