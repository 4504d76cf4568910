package sorted

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/alexhholmes/rbstm/rbtree"
	"github.com/alexhholmes/rbstm/stm"
)

func TestTMapPutGetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewOrderedTMap[string, int]()

	_, err := stm.Atomically(ctx, stm.Then(m.Put("a", 1), m.Put("b", 2)))
	require.NoError(t, err)

	v, err := stm.Atomically(ctx, m.Get("b"))
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = stm.Atomically(ctx, m.Get("z"))
	assert.ErrorIs(t, err, ErrKeyNotFound)

	deleted, err := stm.Atomically(ctx, m.Delete("a"))
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = stm.Atomically(ctx, m.Delete("a"))
	require.NoError(t, err)
	assert.False(t, deleted)

	size, err := stm.Atomically(ctx, m.Size())
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	has, err := stm.Atomically(ctx, m.Has("b"))
	require.NoError(t, err)
	assert.True(t, has)
}

func TestTMapSnapshotIsStable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewOrderedTMap[int, int]()
	_, err := stm.Atomically(ctx, m.Put(1, 1))
	require.NoError(t, err)

	snap, err := stm.Atomically(ctx, m.Snapshot())
	require.NoError(t, err)
	_, err = stm.Atomically(ctx, m.Put(2, 2))
	require.NoError(t, err)

	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, 2, m.Ref().UnsafeGet().Len())
}

func TestTMapConcurrentUpserts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewOrderedTMap[string, int]()

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("k%d", i%10)
				_, err := stm.Atomically(ctx, m.Upsert(key, func(v int, _ bool) int { return v + 1 }))
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	entries, err := stm.Atomically(ctx, m.Range("k0", "k9~"))
	require.NoError(t, err)
	require.Len(t, entries, 10)
	for _, e := range entries {
		assert.Equal(t, 80, e.Value, e.Key)
	}
	require.NoError(t, m.Ref().UnsafeGet().Tree().Check())
}

func TestTMapWaitForAndPopMin(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	m := NewOrderedTMap[int, string]()

	got := make(chan rbtree.Entry[int, string], 1)
	go func() {
		v, err := stm.Atomically(ctx, stm.Then(m.WaitFor(5), m.PopMin()))
		assert.NoError(t, err)
		got <- v
	}()

	_, err := stm.Atomically(ctx, m.Put(9, "nine"))
	require.NoError(t, err)
	_, err = stm.Atomically(ctx, stm.Then(m.Put(5, "five"), m.Put(7, "seven")))
	require.NoError(t, err)

	select {
	case e := <-got:
		assert.Equal(t, rbtree.Entry[int, string]{Key: 5, Value: "five"}, e)
	case <-ctx.Done():
		t.Fatal("waiter was never woken")
	}

	size, err := stm.Atomically(ctx, m.Size())
	require.NoError(t, err)
	assert.Equal(t, 2, size)
}

func TestMakeTMap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, err := stm.Atomically(ctx, MakeTMap(NewOrderedMap[int, int]().Set(1, 10)))
	require.NoError(t, err)

	v, err := stm.Atomically(ctx, m.Get(1))
	require.NoError(t, err)
	assert.Equal(t, 10, v)
}
