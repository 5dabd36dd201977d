package rows

import (
	"sort"
	"sync"
)

// Cache is the materialized row window of one table: rows indexed by
// absolute row number plus the last fetched row count. It holds at most
// maxRows rows; when a Put overflows it, the rows furthest from the stored
// window are evicted first.
type Cache struct {
	mu      sync.RWMutex
	rows    map[int]Row
	total   int
	known   bool
	maxRows int

	lastFirst int
	lastLast  int
}

// NewCache creates a cache holding at most maxRows rows (<= 0 = unbounded).
func NewCache(maxRows int) *Cache {
	return &Cache{
		rows:    make(map[int]Row),
		maxRows: maxRows,
	}
}

// SetCount records the total row count.
func (c *Cache) SetCount(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = n
	c.known = true
}

// Count returns the cached total row count and whether it is known.
func (c *Cache) Count() (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.total, c.known
}

// Put stores rows starting at absolute row first.
func (c *Cache) Put(first int, rows []Row) {
	if len(rows) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, r := range rows {
		c.rows[first+i] = r
	}
	c.lastFirst = first
	c.lastLast = first + len(rows) - 1
	c.evictLocked()
}

// Get returns rows [first, last] if every one of them is cached.
// Rows past a known total are not required.
func (c *Cache) Get(first, last int) ([]Row, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if first < 0 || last < first {
		return nil, false
	}
	if c.known && last >= c.total {
		last = c.total - 1
	}
	if last < first {
		return []Row{}, c.known
	}

	out := make([]Row, 0, last-first+1)
	for i := first; i <= last; i++ {
		r, ok := c.rows[i]
		if !ok {
			return nil, false
		}
		out = append(out, r)
	}
	return out, true
}

// Len returns the number of cached rows.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}

// Clear drops all rows and the row count.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = make(map[int]Row)
	c.total = 0
	c.known = false
	c.lastFirst, c.lastLast = 0, 0
}

func (c *Cache) evictLocked() {
	if c.maxRows <= 0 || len(c.rows) <= c.maxRows {
		return
	}

	idx := make([]int, 0, len(c.rows))
	for i := range c.rows {
		idx = append(idx, i)
	}
	sort.Slice(idx, func(a, b int) bool {
		return c.distance(idx[a]) > c.distance(idx[b])
	})

	for _, i := range idx[:len(c.rows)-c.maxRows] {
		delete(c.rows, i)
	}
}

func (c *Cache) distance(i int) int {
	switch {
	case i < c.lastFirst:
		return c.lastFirst - i
	case i > c.lastLast:
		return i - c.lastLast
	default:
		return 0
	}
}
