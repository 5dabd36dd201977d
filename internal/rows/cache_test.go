package rows

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func numbered(first, n int) []Row {
	out := make([]Row, n)
	for i := range out {
		out[i] = Row{"n": strconv.Itoa(first + i)}
	}
	return out
}

func TestCache_PutGet(t *testing.T) {
	c := NewCache(0)

	_, ok := c.Count()
	assert.False(t, ok)

	c.SetCount(120)
	c.Put(0, numbered(0, 49))

	rows, ok := c.Get(10, 20)
	assert.True(t, ok)
	assert.Len(t, rows, 11)
	assert.Equal(t, "10", rows[0]["n"])

	_, ok = c.Get(40, 60)
	assert.False(t, ok, "partially cached window is a miss")
}

func TestCache_GetClampsToKnownTotal(t *testing.T) {
	c := NewCache(0)
	c.SetCount(5)
	c.Put(0, numbered(0, 5))

	rows, ok := c.Get(0, 48)
	assert.True(t, ok)
	assert.Len(t, rows, 5)

	c.Clear()
	c.SetCount(0)
	rows, ok = c.Get(0, 48)
	assert.True(t, ok)
	assert.Empty(t, rows)
}

func TestCache_Clear(t *testing.T) {
	c := NewCache(0)
	c.SetCount(10)
	c.Put(0, numbered(0, 10))

	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, known := c.Count()
	assert.False(t, known)
}

func TestCache_EvictsFurthestRows(t *testing.T) {
	c := NewCache(100)
	c.Put(0, numbered(0, 100))
	c.Put(150, numbered(150, 50))

	assert.Equal(t, 100, c.Len())

	_, ok := c.Get(150, 199)
	assert.True(t, ok, "latest window must survive eviction")
	_, ok = c.Get(50, 99)
	assert.True(t, ok, "rows nearest the latest window are kept")
	_, ok = c.Get(0, 0)
	assert.False(t, ok, "row furthest away is evicted")
}
