package rbtree

// Direction is the order in which an Iterator visits entries when Next is
// called.
type Direction uint8

const (
	Forward Direction = iota
	Backward
)

// Iterator is a cursor over a Tree. Its stack holds the path from the root
// to the current node (current node last). Since trees never change once
// built, an iterator stays valid no matter what happens to later versions of
// the tree it came from.
type Iterator[K, V any] struct {
	tree      *Tree[K, V]
	stack     []*node[K, V]
	direction Direction
}

func newIterator[K, V any](t *Tree[K, V], stack []*node[K, V], dir Direction) *Iterator[K, V] {
	return &Iterator[K, V]{tree: t, stack: stack, direction: dir}
}

// Valid reports whether the iterator is positioned on an entry.
func (it *Iterator[K, V]) Valid() bool {
	return len(it.stack) > 0
}

// Key returns the current key. The zero value when !Valid().
func (it *Iterator[K, V]) Key() K {
	if len(it.stack) == 0 {
		var zero K
		return zero
	}
	return it.stack[len(it.stack)-1].key
}

// Value returns the current value. The zero value when !Valid().
func (it *Iterator[K, V]) Value() V {
	if len(it.stack) == 0 {
		var zero V
		return zero
	}
	return it.stack[len(it.stack)-1].value
}

// Entry returns the current entry and whether there was one.
func (it *Iterator[K, V]) Entry() (Entry[K, V], bool) {
	if len(it.stack) == 0 {
		return Entry[K, V]{}, false
	}
	n := it.stack[len(it.stack)-1]
	return Entry[K, V]{Key: n.key, Value: n.value}, true
}

// Direction returns the iterator's direction.
func (it *Iterator[K, V]) Direction() Direction {
	return it.direction
}

// Next moves one step in the iterator's direction.
func (it *Iterator[K, V]) Next() {
	if it.direction == Forward {
		it.MoveNext()
	} else {
		it.MovePrev()
	}
}

// HasMore reports whether Next would land on an entry.
func (it *Iterator[K, V]) HasMore() bool {
	if it.direction == Forward {
		return it.HasNext()
	}
	return it.HasPrev()
}

// MoveNext advances to the in-order successor.
func (it *Iterator[K, V]) MoveNext() {
	stack := it.stack
	if len(stack) == 0 {
		return
	}
	n := stack[len(stack)-1]
	if n.right != nil {
		// Leftmost node of the right subtree
		for n = n.right; n != nil; n = n.left {
			stack = append(stack, n)
		}
	} else {
		// Climb until we arrive from a left link
		stack = stack[:len(stack)-1]
		for len(stack) > 0 && stack[len(stack)-1].right == n {
			n = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		}
	}
	it.stack = stack
}

// MovePrev moves to the in-order predecessor.
func (it *Iterator[K, V]) MovePrev() {
	stack := it.stack
	if len(stack) == 0 {
		return
	}
	n := stack[len(stack)-1]
	if n.left != nil {
		for n = n.left; n != nil; n = n.right {
			stack = append(stack, n)
		}
	} else {
		stack = stack[:len(stack)-1]
		for len(stack) > 0 && stack[len(stack)-1].left == n {
			n = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		}
	}
	it.stack = stack
}

// HasNext reports whether an in-order successor exists.
func (it *Iterator[K, V]) HasNext() bool {
	stack := it.stack
	if len(stack) == 0 {
		return false
	}
	if stack[len(stack)-1].right != nil {
		return true
	}
	for s := len(stack) - 1; s > 0; s-- {
		if stack[s-1].left == stack[s] {
			return true
		}
	}
	return false
}

// HasPrev reports whether an in-order predecessor exists.
func (it *Iterator[K, V]) HasPrev() bool {
	stack := it.stack
	if len(stack) == 0 {
		return false
	}
	if stack[len(stack)-1].left != nil {
		return true
	}
	for s := len(stack) - 1; s > 0; s-- {
		if stack[s-1].right == stack[s] {
			return true
		}
	}
	return false
}

// Index returns the rank of the current entry. An exhausted iterator
// reports the size of the tree.
func (it *Iterator[K, V]) Index() int {
	stack := it.stack
	if len(stack) == 0 {
		return it.tree.root.size()
	}
	idx := stack[len(stack)-1].left.size()
	for s := len(stack) - 2; s >= 0; s-- {
		if stack[s+1] == stack[s].right {
			idx += 1 + stack[s].left.size()
		}
	}
	return idx
}

// Clone returns an independent copy positioned on the same entry.
func (it *Iterator[K, V]) Clone() *Iterator[K, V] {
	stack := make([]*node[K, V], len(it.stack))
	copy(stack, it.stack)
	return newIterator(it.tree, stack, it.direction)
}

// Reversed returns a copy that walks the opposite way.
func (it *Iterator[K, V]) Reversed() *Iterator[K, V] {
	c := it.Clone()
	if c.direction == Forward {
		c.direction = Backward
	} else {
		c.direction = Forward
	}
	return c
}

// Remove returns a new tree without the current entry. The iterator and
// its tree are left untouched. An invalid iterator returns its tree.
func (it *Iterator[K, V]) Remove() *Tree[K, V] {
	if len(it.stack) == 0 {
		return it.tree
	}
	return it.tree.withRoot(removePath(it.stack, nil))
}
