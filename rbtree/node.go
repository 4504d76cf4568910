package rbtree

// Color is the color of a tree node.
type Color uint8

const (
	Red Color = iota
	Black
)

func (c Color) String() string {
	if c == Red {
		return "red"
	}
	return "black"
}

// owner marks nodes allocated by a single Builder. Nodes carrying the
// Builder's owner may be mutated in place; all other nodes are shared with
// some persistent tree and must be cloned first.
type owner struct {
	_ byte // non-zero size so every owner has a distinct address
}

// node is an immutable tree node once it is reachable from a Tree.
// count is the number of entries in the subtree rooted here.
type node[K, V any] struct {
	color Color
	key   K
	value V
	left  *node[K, V]
	right *node[K, V]
	count int
	owner *owner
}

func newNode[K, V any](color Color, key K, value V, o *owner) *node[K, V] {
	return &node[K, V]{
		color: color,
		key:   key,
		value: value,
		count: 1,
		owner: o,
	}
}

// size is nil-safe count.
func (n *node[K, V]) size() int {
	if n == nil {
		return 0
	}
	return n.count
}

// mutableFor returns a node that can be written by o: n itself when o
// already owns it, otherwise a shallow clone owned by o.
func (n *node[K, V]) mutableFor(o *owner) *node[K, V] {
	if o != nil && n.owner == o {
		return n
	}
	c := *n
	c.owner = o
	return &c
}

// recount recomputes count from the children.
func (n *node[K, V]) recount() {
	n.count = 1 + n.left.size() + n.right.size()
}

// assign copies every field of src except ownership into n.
func (n *node[K, V]) assign(src *node[K, V]) {
	n.color = src.color
	n.key = src.key
	n.value = src.value
	n.left = src.left
	n.right = src.right
	n.count = src.count
}

func repaint[K, V any](color Color, n *node[K, V], o *owner) *node[K, V] {
	m := n.mutableFor(o)
	m.color = color
	return m
}

func isRed[K, V any](n *node[K, V]) bool {
	return n != nil && n.color == Red
}
