package sorted

import (
	"cmp"
	"iter"
	"slices"

	"github.com/alexhholmes/rbstm/rbtree"
)

// Set is a persistent sorted set.
type Set[A any] struct {
	tree *rbtree.Tree[A, struct{}]
}

// NewSet creates an empty set ordered by compare.
func NewSet[A any](compare func(a, b A) int) *Set[A] {
	return &Set[A]{tree: rbtree.New[A, struct{}](compare)}
}

// NewOrderedSet creates a set of items in the natural order of A.
func NewOrderedSet[A cmp.Ordered](items ...A) *Set[A] {
	return FromSlice(cmp.Compare[A], items)
}

// setOf builds a set from items that are already sorted and unique.
func setOf[A any](compare func(a, b A) int, items []A) *Set[A] {
	entries := make([]rbtree.Entry[A, struct{}], len(items))
	for i, item := range items {
		entries[i].Key = item
	}
	return &Set[A]{tree: rbtree.FromEntries(compare, entries)}
}

// Len returns the number of items.
func (s *Set[A]) Len() int {
	return s.tree.Size()
}

// Contains reports whether item is in the set.
func (s *Set[A]) Contains(item A) bool {
	return s.tree.Has(item)
}

// Add returns a set containing item.
func (s *Set[A]) Add(item A) *Set[A] {
	if s.tree.Has(item) {
		return s
	}
	return &Set[A]{tree: s.tree.Insert(item, struct{}{})}
}

// Remove returns a set without item.
func (s *Set[A]) Remove(item A) *Set[A] {
	tree := s.tree.RemoveFirst(item)
	if tree == s.tree {
		return s
	}
	return &Set[A]{tree: tree}
}

// At returns the item at position idx.
func (s *Set[A]) At(idx int) (A, bool) {
	e, ok := s.tree.GetAt(idx)
	return e.Key, ok
}

// Rank returns the position of item, or -1 when absent.
func (s *Set[A]) Rank(item A) int {
	return s.tree.IndexOf(item)
}

// All iterates the items in order.
func (s *Set[A]) All() iter.Seq[A] {
	return s.tree.Keys()
}

// Slice returns the items in order.
func (s *Set[A]) Slice() []A {
	items := make([]A, 0, s.Len())
	for item := range s.All() {
		items = append(items, item)
	}
	return items
}

// Union returns a set holding the items of both sets. Both sets must use
// the same ordering.
func (s *Set[A]) Union(other *Set[A]) *Set[A] {
	compare := s.tree.Compare()
	left, right := s.Slice(), other.Slice()
	items := make([]A, 0, len(left)+len(right))
	for len(left) > 0 && len(right) > 0 {
		switch c := compare(left[0], right[0]); {
		case c < 0:
			items, left = append(items, left[0]), left[1:]
		case c > 0:
			items, right = append(items, right[0]), right[1:]
		default:
			items, left, right = append(items, left[0]), left[1:], right[1:]
		}
	}
	items = append(items, left...)
	items = append(items, right...)
	return setOf(compare, items)
}

// Intersect returns a set holding the items present in both sets.
func (s *Set[A]) Intersect(other *Set[A]) *Set[A] {
	if other.Len() < s.Len() {
		s, other = other, s
	}
	var items []A
	for item := range s.All() {
		if other.Contains(item) {
			items = append(items, item)
		}
	}
	return setOf(s.tree.Compare(), items)
}

// FromSlice builds a set ordered by compare from items.
func FromSlice[A any](compare func(a, b A) int, items []A) *Set[A] {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, compare)
	sorted = slices.CompactFunc(sorted, func(a, b A) bool { return compare(a, b) == 0 })
	return setOf(compare, sorted)
}

// Min returns the smallest item.
func (s *Set[A]) Min() (A, bool) {
	e, ok := s.tree.First()
	return e.Key, ok
}

// Max returns the largest item.
func (s *Set[A]) Max() (A, bool) {
	e, ok := s.tree.Last()
	return e.Key, ok
}

// Backward iterates the items in reverse order.
func (s *Set[A]) Backward() iter.Seq[A] {
	return keysOf(s.tree.Backward())
}

// GreaterThanEqual iterates the items >= item in order.
func (s *Set[A]) GreaterThanEqual(item A) iter.Seq[A] {
	return keysOf(s.tree.GreaterThanEqual(item, rbtree.Forward).Seq())
}

// LessThan iterates the items < item in order.
func (s *Set[A]) LessThan(item A) iter.Seq[A] {
	return func(yield func(A) bool) {
		s.tree.ForEachLessThan(item, func(k A, _ struct{}) bool {
			return yield(k)
		})
	}
}

// Difference returns the items of s not in other.
func (s *Set[A]) Difference(other *Set[A]) *Set[A] {
	return s.Filter(func(item A) bool { return !other.Contains(item) })
}

// Filter returns the items of s for which keep holds.
func (s *Set[A]) Filter(keep func(A) bool) *Set[A] {
	var items []A
	for item := range s.All() {
		if keep(item) {
			items = append(items, item)
		}
	}
	return setOf(s.tree.Compare(), items)
}

func keysOf[K, V any](seq iter.Seq2[K, V]) iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range seq {
			if !yield(k) {
				return
			}
		}
	}
}
