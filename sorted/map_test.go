package sorted

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexhholmes/rbstm/rbtree"
)

func TestMapSetReplaces(t *testing.T) {
	t.Parallel()

	m := NewOrderedMap[string, int]()
	m1 := m.Set("b", 2).Set("a", 1).Set("c", 3)
	m2 := m1.Set("b", 20)

	assert.Equal(t, 3, m1.Len())
	assert.Equal(t, 3, m2.Len())
	v, ok := m1.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	v, _ = m2.Get("b")
	assert.Equal(t, 20, v)
	assert.Equal(t, 0, m.Len())

	assert.Equal(t, []string{"a", "b", "c"}, slices.Collect(m2.Keys()))
	assert.Equal(t, map[string]int{"a": 1, "b": 20, "c": 3}, maps.Collect(m2.All()))
	require.NoError(t, m2.Tree().Check())
}

func TestMapDelete(t *testing.T) {
	t.Parallel()

	m := NewOrderedMap[int, string]().Set(1, "one").Set(2, "two")

	same, ok := m.Delete(3)
	assert.False(t, ok)
	assert.Same(t, m, same)

	next, ok := m.Delete(1)
	assert.True(t, ok)
	assert.False(t, next.Has(1))
	assert.True(t, m.Has(1))
}

func TestMapOrderStatistics(t *testing.T) {
	t.Parallel()

	m := NewMap[string, int](func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	for i, k := range []string{"Delta", "alpha", "Charlie", "bravo"} {
		m = m.Set(k, i)
	}
	m = m.Set("ALPHA", 9)

	minEntry, ok := m.Min()
	require.True(t, ok)
	assert.Equal(t, rbtree.Entry[string, int]{Key: "ALPHA", Value: 9}, minEntry)
	maxEntry, _ := m.Max()
	assert.Equal(t, "Delta", maxEntry.Key)

	e, ok := m.At(2)
	require.True(t, ok)
	assert.Equal(t, "Charlie", e.Key)
	assert.Equal(t, 2, m.Rank("charlie"))

	var keys []string
	for k := range m.Range("b", "d") {
		keys = append(keys, k)
	}
	assert.Equal(t, []string{"bravo", "Charlie"}, keys)
	assert.Len(t, m.Entries(), 4)
}

func TestMapHeadTail(t *testing.T) {
	t.Parallel()

	m := NewOrderedMap[int, string]()
	for i := 1; i <= 6; i++ {
		m = m.Set(i, strconv.Itoa(i))
	}

	head := m.HeadMap(4)
	tail := m.TailMap(4)
	assert.Equal(t, []int{1, 2, 3}, slices.Collect(head.Keys()))
	assert.Equal(t, []string{"4", "5", "6"}, slices.Collect(tail.Values()))
	require.NoError(t, head.Tree().Check())
	require.NoError(t, tail.Tree().Check())

	var keys []int
	for k := range m.Backward() {
		keys = append(keys, k)
	}
	assert.Equal(t, []int{6, 5, 4, 3, 2, 1}, keys)
}
