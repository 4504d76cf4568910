package rbtree

// Builder is a transient, single-owner version of a Tree used for bulk
// construction. Nodes it allocates are mutated in place on later updates;
// nodes shared with the source tree are cloned before any write, so the
// source tree never changes.
//
// A Builder is not safe for concurrent use and must not be used after
// EndMutation.
type Builder[K, V any] struct {
	cmp   func(a, b K) int
	eq    func(a, b K) bool
	root  *node[K, V]
	owner *owner
}

// BeginMutation starts a Builder seeded with the tree's entries.
func (t *Tree[K, V]) BeginMutation() *Builder[K, V] {
	return &Builder[K, V]{
		cmp:   t.cmp,
		eq:    t.eq,
		root:  t.root,
		owner: &owner{},
	}
}

// Insert adds key/value.
func (b *Builder[K, V]) Insert(key K, value V) error {
	if b.owner == nil {
		return ErrBuilderDone
	}
	b.root = insertNode(b.cmp, b.root, key, value, b.owner)
	return nil
}

// RemoveFirst removes the first entry whose key matches, reporting whether
// one was found.
func (b *Builder[K, V]) RemoveFirst(key K) (bool, error) {
	if b.owner == nil {
		return false, ErrBuilderDone
	}
	stack := b.snapshot().findStack(key)
	if stack == nil {
		return false, nil
	}
	b.root = removePath(stack, b.owner)
	return true, nil
}

// Has reports whether some entry matches key.
func (b *Builder[K, V]) Has(key K) bool {
	return b.snapshot().Has(key)
}

// Size returns the number of entries so far.
func (b *Builder[K, V]) Size() int {
	return b.root.size()
}

// EndMutation freezes the builder's contents into a Tree. The builder
// cannot be used afterwards.
func (b *Builder[K, V]) EndMutation() (*Tree[K, V], error) {
	if b.owner == nil {
		return nil, ErrBuilderDone
	}
	t := b.snapshot()
	b.owner = nil
	b.root = nil
	return t, nil
}

// snapshot views the current root as a Tree for read-only searches.
func (b *Builder[K, V]) snapshot() *Tree[K, V] {
	return &Tree[K, V]{cmp: b.cmp, eq: b.eq, root: b.root}
}

// FromEntries builds a tree from entries with a single Builder.
func FromEntries[K, V any](cmp func(a, b K) int, entries []Entry[K, V]) *Tree[K, V] {
	b := New[K, V](cmp).BeginMutation()
	for _, e := range entries {
		b.root = insertNode(b.cmp, b.root, e.Key, e.Value, b.owner)
	}
	t, _ := b.EndMutation()
	return t
}
