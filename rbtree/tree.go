// Package rbtree implements a persistent red-black tree with order
// statistics.
//
// Every update returns a new Tree and leaves the receiver untouched: only
// the nodes on the path from the root to the change are copied, all other
// subtrees are shared between versions. Holding on to an old Tree is
// therefore a free snapshot.
//
// Keys are ordered by a caller supplied comparator. Equality used to
// confirm a match (Find, RemoveFirst) is a separate predicate, so several
// keys may compare equal without being the same key.
//
// Bulk construction can skip most of the copying through BeginMutation,
// which hands out a Builder that mutates the nodes it allocated in place.
package rbtree

import (
	"cmp"
	"iter"
)

// Entry is a key/value pair stored in a Tree.
type Entry[K, V any] struct {
	Key   K
	Value V
}

// Tree is an immutable ordered map allowing duplicate keys.
// The zero value is not usable; construct with New, NewWithEqual or
// NewOrdered.
type Tree[K, V any] struct {
	cmp  func(a, b K) int
	eq   func(a, b K) bool
	root *node[K, V]
}

// New creates an empty tree ordered by cmp. Keys match when cmp returns 0.
func New[K, V any](cmp func(a, b K) int) *Tree[K, V] {
	return &Tree[K, V]{
		cmp: cmp,
		eq:  func(a, b K) bool { return cmp(a, b) == 0 },
	}
}

// NewWithEqual creates an empty tree ordered by cmp where matches are
// confirmed by eq. eq must imply cmp(a, b) == 0.
func NewWithEqual[K, V any](cmp func(a, b K) int, eq func(a, b K) bool) *Tree[K, V] {
	return &Tree[K, V]{cmp: cmp, eq: eq}
}

// NewOrdered creates an empty tree over a naturally ordered key type.
func NewOrdered[K cmp.Ordered, V any]() *Tree[K, V] {
	return &Tree[K, V]{
		cmp: cmp.Compare[K],
		eq:  func(a, b K) bool { return a == b },
	}
}

func (t *Tree[K, V]) withRoot(root *node[K, V]) *Tree[K, V] {
	return &Tree[K, V]{cmp: t.cmp, eq: t.eq, root: root}
}

// Compare returns the tree's ordering.
func (t *Tree[K, V]) Compare() func(a, b K) int {
	return t.cmp
}

// Size returns the number of entries.
func (t *Tree[K, V]) Size() int {
	return t.root.size()
}

// IsEmpty reports whether the tree has no entries.
func (t *Tree[K, V]) IsEmpty() bool {
	return t.root == nil
}

// Insert returns a tree with key/value added. Existing entries with an equal
// key are kept; the new entry sorts before them.
func (t *Tree[K, V]) Insert(key K, value V) *Tree[K, V] {
	return t.withRoot(insertNode(t.cmp, t.root, key, value, nil))
}

// RemoveFirst returns a tree without the first entry whose key matches.
// The receiver itself is returned when nothing matches.
func (t *Tree[K, V]) RemoveFirst(key K) *Tree[K, V] {
	stack := t.findStack(key)
	if stack == nil {
		return t
	}
	return t.withRoot(removePath(stack, nil))
}

// findStack returns the root path to the first matching node in order, or
// nil. Candidates are the run of entries comparing equal to key.
func (t *Tree[K, V]) findStack(key K) []*node[K, V] {
	it := t.GreaterThanEqual(key, Forward)
	for ; it.Valid(); it.MoveNext() {
		k := it.Key()
		if t.cmp(key, k) != 0 {
			return nil
		}
		if t.eq(key, k) {
			return it.stack
		}
	}
	return nil
}

// Find returns the values of every entry whose key matches, most recently
// inserted first.
func (t *Tree[K, V]) Find(key K) []V {
	var result []V
	for it := t.GreaterThanEqual(key, Forward); it.Valid(); it.MoveNext() {
		n := it.stack[len(it.stack)-1]
		if t.cmp(key, n.key) != 0 {
			break
		}
		if t.eq(key, n.key) {
			result = append(result, n.value)
		}
	}
	return result
}

// FindFirst returns the value of a matching entry. It prefers the first
// match met while descending from the root.
func (t *Tree[K, V]) FindFirst(key K) (V, bool) {
	for n := t.root; n != nil; {
		d := t.cmp(key, n.key)
		if d == 0 && t.eq(key, n.key) {
			return n.value, true
		}
		if d <= 0 {
			n = n.left
		} else {
			n = n.right
		}
	}
	// Rotations may leave a match to the right of a compare-equal key
	if stack := t.findStack(key); stack != nil {
		return stack[len(stack)-1].value, true
	}
	var zero V
	return zero, false
}

// Has reports whether some entry matches key.
func (t *Tree[K, V]) Has(key K) bool {
	_, ok := t.FindFirst(key)
	return ok
}

// First returns the smallest entry.
func (t *Tree[K, V]) First() (Entry[K, V], bool) {
	n := t.root
	if n == nil {
		return Entry[K, V]{}, false
	}
	for n.left != nil {
		n = n.left
	}
	return Entry[K, V]{Key: n.key, Value: n.value}, true
}

// Last returns the largest entry.
func (t *Tree[K, V]) Last() (Entry[K, V], bool) {
	n := t.root
	if n == nil {
		return Entry[K, V]{}, false
	}
	for n.right != nil {
		n = n.right
	}
	return Entry[K, V]{Key: n.key, Value: n.value}, true
}

// Begin returns a forward iterator on the smallest entry.
func (t *Tree[K, V]) Begin() *Iterator[K, V] {
	var stack []*node[K, V]
	for n := t.root; n != nil; n = n.left {
		stack = append(stack, n)
	}
	return newIterator(t, stack, Forward)
}

// End returns a backward iterator on the largest entry.
func (t *Tree[K, V]) End() *Iterator[K, V] {
	var stack []*node[K, V]
	for n := t.root; n != nil; n = n.right {
		stack = append(stack, n)
	}
	return newIterator(t, stack, Backward)
}

// At returns a forward iterator on the entry of rank idx. The iterator is
// invalid when idx is out of range.
func (t *Tree[K, V]) At(idx int) *Iterator[K, V] {
	return newIterator(t, t.rankStack(idx), Forward)
}

// AtBackward is At with a backward iterator.
func (t *Tree[K, V]) AtBackward(idx int) *Iterator[K, V] {
	return newIterator(t, t.rankStack(idx), Backward)
}

// rankStack descends by subtree counts to the node of rank idx.
func (t *Tree[K, V]) rankStack(idx int) []*node[K, V] {
	if idx < 0 || t.root == nil {
		return nil
	}
	var stack []*node[K, V]
	n := t.root
	for {
		stack = append(stack, n)
		if n.left != nil {
			if idx < n.left.count {
				n = n.left
				continue
			}
			idx -= n.left.count
		}
		if idx == 0 {
			return stack
		}
		idx--
		if n.right == nil || idx >= n.right.count {
			return nil
		}
		n = n.right
	}
}

// GetAt returns the entry of rank idx.
func (t *Tree[K, V]) GetAt(idx int) (Entry[K, V], bool) {
	stack := t.rankStack(idx)
	if stack == nil {
		return Entry[K, V]{}, false
	}
	n := stack[len(stack)-1]
	return Entry[K, V]{Key: n.key, Value: n.value}, true
}

// EntryAt returns the entry of rank idx and panics with an
// *IndexOutOfBoundsError when idx is not in [0, Size).
func (t *Tree[K, V]) EntryAt(idx int) Entry[K, V] {
	n := t.root
	if idx < 0 || idx >= n.size() {
		panic(&IndexOutOfBoundsError{Index: idx, Size: n.size()})
	}
	for {
		l := n.left.size()
		switch {
		case idx < l:
			n = n.left
		case idx == l:
			return Entry[K, V]{Key: n.key, Value: n.value}
		default:
			idx -= l + 1
			n = n.right
		}
	}
}

// IndexOf returns the rank of the first entry whose key matches, or -1.
func (t *Tree[K, V]) IndexOf(key K) int {
	stack := t.findStack(key)
	if stack == nil {
		return -1
	}
	return newIterator(t, stack, Forward).Index()
}

// boundStack descends towards key, remembering the deepest node for which
// keep holds. The returned path ends at the first qualifying node in the
// direction of travel, so no extra step is needed before reading it.
func (t *Tree[K, V]) boundStack(key K, keep, goLeft func(d int) bool) []*node[K, V] {
	var stack []*node[K, V]
	lastPtr := 0
	for n := t.root; n != nil; {
		d := t.cmp(key, n.key)
		stack = append(stack, n)
		if keep(d) {
			lastPtr = len(stack)
		}
		if goLeft(d) {
			n = n.left
		} else {
			n = n.right
		}
	}
	return stack[:lastPtr]
}

// GreaterThanEqual returns an iterator on the first entry with key >= key.
// Walking Forward visits every such entry.
func (t *Tree[K, V]) GreaterThanEqual(key K, dir Direction) *Iterator[K, V] {
	stack := t.boundStack(key,
		func(d int) bool { return d <= 0 },
		func(d int) bool { return d <= 0 })
	return newIterator(t, stack, dir)
}

// GreaterThan returns an iterator on the first entry with key > key.
func (t *Tree[K, V]) GreaterThan(key K, dir Direction) *Iterator[K, V] {
	stack := t.boundStack(key,
		func(d int) bool { return d < 0 },
		func(d int) bool { return d < 0 })
	return newIterator(t, stack, dir)
}

// LessThanEqual returns an iterator on the last entry with key <= key.
// Walking Backward visits every such entry.
func (t *Tree[K, V]) LessThanEqual(key K, dir Direction) *Iterator[K, V] {
	stack := t.boundStack(key,
		func(d int) bool { return d >= 0 },
		func(d int) bool { return d < 0 })
	return newIterator(t, stack, dir)
}

// LessThan returns an iterator on the last entry with key < key.
func (t *Tree[K, V]) LessThan(key K, dir Direction) *Iterator[K, V] {
	stack := t.boundStack(key,
		func(d int) bool { return d > 0 },
		func(d int) bool { return d <= 0 })
	return newIterator(t, stack, dir)
}

// Between yields the entries with lo <= key < hi in ascending order.
func (t *Tree[K, V]) Between(lo, hi K) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for it := t.GreaterThanEqual(lo, Forward); it.Valid(); it.MoveNext() {
			n := it.stack[len(it.stack)-1]
			if t.cmp(n.key, hi) >= 0 {
				return
			}
			if !yield(n.key, n.value) {
				return
			}
		}
	}
}

// Seq yields the entries visited by it until it is exhausted. it is
// consumed.
func (it *Iterator[K, V]) Seq() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for ; it.Valid(); it.Next() {
			n := it.stack[len(it.stack)-1]
			if !yield(n.key, n.value) {
				return
			}
		}
	}
}

// All yields every entry in ascending order.
func (t *Tree[K, V]) All() iter.Seq2[K, V] {
	return t.Begin().Seq()
}

// Backward yields every entry in descending order.
func (t *Tree[K, V]) Backward() iter.Seq2[K, V] {
	return t.End().Seq()
}

// Keys yields the keys in ascending order.
func (t *Tree[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range t.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// Values yields the values in key order.
func (t *Tree[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, v := range t.All() {
			if !yield(v) {
				return
			}
		}
	}
}

// Entries collects all entries in ascending order.
func (t *Tree[K, V]) Entries() []Entry[K, V] {
	out := make([]Entry[K, V], 0, t.Size())
	for k, v := range t.All() {
		out = append(out, Entry[K, V]{Key: k, Value: v})
	}
	return out
}

// ForEach calls f on every entry in order until f returns false.
func (t *Tree[K, V]) ForEach(f func(K, V) bool) {
	for k, v := range t.All() {
		if !f(k, v) {
			return
		}
	}
}

// ForEachGreaterThanEqual calls f on every entry with key >= lo.
func (t *Tree[K, V]) ForEachGreaterThanEqual(lo K, f func(K, V) bool) {
	for k, v := range t.GreaterThanEqual(lo, Forward).Seq() {
		if !f(k, v) {
			return
		}
	}
}

// ForEachLessThan calls f, in ascending order, on every entry with key < hi.
func (t *Tree[K, V]) ForEachLessThan(hi K, f func(K, V) bool) {
	for k, v := range t.All() {
		if t.cmp(k, hi) >= 0 || !f(k, v) {
			return
		}
	}
}

// ForEachBetween calls f on every entry with lo <= key < hi.
func (t *Tree[K, V]) ForEachBetween(lo, hi K, f func(K, V) bool) {
	for k, v := range t.Between(lo, hi) {
		if !f(k, v) {
			return
		}
	}
}

// Reduce folds f over the entries in ascending order.
func Reduce[K, V, Z any](t *Tree[K, V], zero Z, f func(Z, K, V) Z) Z {
	acc := zero
	for k, v := range t.All() {
		acc = f(acc, k, v)
	}
	return acc
}
