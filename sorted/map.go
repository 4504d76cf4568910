// Package sorted provides persistent ordered collections built on rbtree,
// and a transactional map for sharing one between goroutines.
package sorted

import (
	"cmp"
	"iter"

	"github.com/alexhholmes/rbstm/rbtree"
)

// Map is a persistent sorted map with unique keys. Updates return a new
// Map and never modify the receiver, so a Map can be read from any number
// of goroutines.
type Map[K, V any] struct {
	tree *rbtree.Tree[K, V]
}

// NewMap creates an empty map ordered by compare.
func NewMap[K, V any](compare func(a, b K) int) *Map[K, V] {
	return &Map[K, V]{tree: rbtree.New[K, V](compare)}
}

// NewOrderedMap creates an empty map in the natural order of K.
func NewOrderedMap[K cmp.Ordered, V any]() *Map[K, V] {
	return NewMap[K, V](cmp.Compare[K])
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	return m.tree.Size()
}

// Get returns the value stored for key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	return m.tree.FindFirst(key)
}

// Has reports whether key is present.
func (m *Map[K, V]) Has(key K) bool {
	return m.tree.Has(key)
}

// Set returns a map with key bound to value, replacing any previous value.
func (m *Map[K, V]) Set(key K, value V) *Map[K, V] {
	tree := m.tree
	if tree.Has(key) {
		tree = tree.RemoveFirst(key)
	}
	return &Map[K, V]{tree: tree.Insert(key, value)}
}

// Delete returns a map without key, and whether key was present.
func (m *Map[K, V]) Delete(key K) (*Map[K, V], bool) {
	tree := m.tree.RemoveFirst(key)
	if tree == m.tree {
		return m, false
	}
	return &Map[K, V]{tree: tree}, true
}

// Min returns the entry with the smallest key.
func (m *Map[K, V]) Min() (rbtree.Entry[K, V], bool) {
	return m.tree.First()
}

// Max returns the entry with the largest key.
func (m *Map[K, V]) Max() (rbtree.Entry[K, V], bool) {
	return m.tree.Last()
}

// At returns the entry at position idx in key order.
func (m *Map[K, V]) At(idx int) (rbtree.Entry[K, V], bool) {
	return m.tree.GetAt(idx)
}

// Rank returns the position of key in key order, or -1 when absent.
func (m *Map[K, V]) Rank(key K) int {
	return m.tree.IndexOf(key)
}

// All iterates the map in key order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return m.tree.All()
}

// Keys iterates the keys in order.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return m.tree.Keys()
}

// Range iterates the entries with lo <= key < hi.
func (m *Map[K, V]) Range(lo, hi K) iter.Seq2[K, V] {
	return m.tree.Between(lo, hi)
}

// Entries returns every entry in key order.
func (m *Map[K, V]) Entries() []rbtree.Entry[K, V] {
	return m.tree.Entries()
}

// Tree returns the underlying tree.
func (m *Map[K, V]) Tree() *rbtree.Tree[K, V] {
	return m.tree
}

// Values iterates the values in key order.
func (m *Map[K, V]) Values() iter.Seq[V] {
	return m.tree.Values()
}

// Backward iterates the map in reverse key order.
func (m *Map[K, V]) Backward() iter.Seq2[K, V] {
	return m.tree.Backward()
}

// HeadMap returns the entries with keys < key.
func (m *Map[K, V]) HeadMap(key K) *Map[K, V] {
	var entries []rbtree.Entry[K, V]
	m.tree.ForEachLessThan(key, func(k K, v V) bool {
		entries = append(entries, rbtree.Entry[K, V]{Key: k, Value: v})
		return true
	})
	return &Map[K, V]{tree: rbtree.FromEntries(m.tree.Compare(), entries)}
}

// TailMap returns the entries with keys >= key.
func (m *Map[K, V]) TailMap(key K) *Map[K, V] {
	var entries []rbtree.Entry[K, V]
	m.tree.ForEachGreaterThanEqual(key, func(k K, v V) bool {
		entries = append(entries, rbtree.Entry[K, V]{Key: k, Value: v})
		return true
	})
	return &Map[K, V]{tree: rbtree.FromEntries(m.tree.Compare(), entries)}
}
