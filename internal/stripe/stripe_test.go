package stripe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoundsToPowerOfTwo(t *testing.T) {
	t.Parallel()

	assert.Equal(t, MinCount, New(0).Len())
	assert.Equal(t, MinCount, New(3).Len())
	assert.Equal(t, 256, New(200).Len())
	assert.Equal(t, 256, New(256).Len())
}

func TestIndexIsStableAndInRange(t *testing.T) {
	t.Parallel()

	table := New(64)
	seen := make(map[int]bool)
	for id := uint64(0); id < 1000; id++ {
		i := table.Index(id)
		require.GreaterOrEqual(t, i, 0)
		require.Less(t, i, table.Len())
		assert.Equal(t, i, table.Index(id))
		seen[i] = true
	}
	// Sequential ids should not collapse onto a handful of stripes
	assert.Greater(t, len(seen), table.Len()/2)
}

func TestCollectSortedUnique(t *testing.T) {
	t.Parallel()

	table := New(16)
	set := table.Collect([]uint64{5, 5, 9, 1, 9, 100})

	assert.IsIncreasing(t, []int(set))
	for _, id := range []uint64{5, 9, 1, 100} {
		assert.Contains(t, []int(set), table.Index(id))
	}
	assert.Empty(t, table.Collect(nil))
}

func TestLockOverlappingSets(t *testing.T) {
	t.Parallel()

	table := New(16)
	a := table.Collect([]uint64{1, 2, 3, 4})
	b := table.Collect([]uint64{4, 3, 2, 1, 7})

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			set := a
			if i%2 == 0 {
				set = b
			}
			for j := 0; j < 500; j++ {
				unlock := table.Lock(set)
				counter++
				unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8*500, counter)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Set{1, 3, 7}, Normalize(Set{7, 1, 3, 3, 7, 1}))
	assert.Empty(t, Normalize(nil))
}
