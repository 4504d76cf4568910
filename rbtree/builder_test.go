package rbtree

import (
	"cmp"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderBulkInsert(t *testing.T) {
	t.Parallel()

	b := NewOrdered[int, string]().BeginMutation()
	for i := 999; i >= 0; i-- {
		require.NoError(t, b.Insert(i, "v"))
	}
	assert.Equal(t, 1000, b.Size())

	tree, err := b.EndMutation()
	require.NoError(t, err)
	require.NoError(t, tree.Check())
	assert.Equal(t, 1000, tree.Size())

	e, ok := tree.GetAt(500)
	require.True(t, ok)
	assert.Equal(t, 500, e.Key)
}

func TestBuilderLeavesSourceUntouched(t *testing.T) {
	t.Parallel()

	source := buildTree(t, 10, 20, 30, 40, 50, 60)
	before := source.Entries()

	b := source.BeginMutation()
	require.NoError(t, b.Insert(35, 350))
	require.NoError(t, b.Insert(5, 50))
	found, err := b.RemoveFirst(20)
	require.NoError(t, err)
	assert.True(t, found)
	found, err = b.RemoveFirst(21)
	require.NoError(t, err)
	assert.False(t, found)

	built, err := b.EndMutation()
	require.NoError(t, err)

	assert.Equal(t, before, source.Entries())
	require.NoError(t, source.Check())
	require.NoError(t, built.Check())
	assert.Equal(t, []int{5, 10, 30, 35, 40, 50, 60}, collectKeys(built.All()))
}

func TestBuilderDone(t *testing.T) {
	t.Parallel()

	b := NewOrdered[int, int]().BeginMutation()
	require.NoError(t, b.Insert(1, 1))
	tree, err := b.EndMutation()
	require.NoError(t, err)

	assert.ErrorIs(t, b.Insert(2, 2), ErrBuilderDone)
	_, err = b.RemoveFirst(1)
	assert.ErrorIs(t, err, ErrBuilderDone)
	_, err = b.EndMutation()
	assert.ErrorIs(t, err, ErrBuilderDone)

	// Later persistent updates never disturb the frozen tree
	next := tree.Insert(2, 2)
	assert.Equal(t, 1, tree.Size())
	assert.Equal(t, 2, next.Size())
}

func TestBuilderRandomOperations(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(5, 8))
	source := NewOrdered[int, int]()
	for i := 0; i < 100; i++ {
		source = source.Insert(rng.IntN(300), i)
	}
	snapshot := source.Entries()

	b := source.BeginMutation()
	persistent := source
	for step := 0; step < 2000; step++ {
		k := rng.IntN(300)
		if rng.IntN(2) == 0 {
			require.NoError(t, b.Insert(k, step))
			persistent = persistent.Insert(k, step)
		} else {
			_, err := b.RemoveFirst(k)
			require.NoError(t, err)
			persistent = persistent.RemoveFirst(k)
		}
		require.NoError(t, b.snapshot().Check(), "step %d", step)
	}

	built, err := b.EndMutation()
	require.NoError(t, err)
	assert.Equal(t, persistent.Entries(), built.Entries())
	assert.Equal(t, snapshot, source.Entries())
}

func TestFromEntries(t *testing.T) {
	t.Parallel()

	tree := FromEntries(cmp.Compare[string], []Entry[string, int]{
		{Key: "pear", Value: 3},
		{Key: "apple", Value: 1},
		{Key: "fig", Value: 2},
	})

	require.NoError(t, tree.Check())
	assert.Equal(t, []string{"apple", "fig", "pear"}, collectKeys(tree.All()))
}

func TestBuilderHas(t *testing.T) {
	t.Parallel()

	b := buildTree(t, 1, 2, 3).BeginMutation()
	require.NoError(t, b.Insert(4, 40))

	assert.True(t, b.Has(4))
	assert.True(t, b.Has(1))
	assert.False(t, b.Has(5))
}
