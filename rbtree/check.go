package rbtree

import "fmt"

// Check verifies the red-black and order-statistic invariants: a black
// root, no red node with a red child, equal black height on every path,
// exact subtree counts and non-decreasing in-order keys.
func (t *Tree[K, V]) Check() error {
	if t.root == nil {
		return nil
	}
	if t.root.color != Black {
		return ErrRootNotBlack
	}
	if _, err := checkNode(t.root); err != nil {
		return err
	}

	var (
		prev  K
		first = true
	)
	for k := range t.Keys() {
		if !first && t.cmp(prev, k) > 0 {
			return fmt.Errorf("%w: %v after %v", ErrOrderViolation, k, prev)
		}
		prev, first = k, false
	}
	return nil
}

// checkNode returns the black height of n's subtree.
func checkNode[K, V any](n *node[K, V]) (int, error) {
	if n == nil {
		return 1, nil
	}
	if n.color == Red && (isRed(n.left) || isRed(n.right)) {
		return 0, fmt.Errorf("%w at key %v", ErrRedViolation, n.key)
	}
	if n.count != 1+n.left.size()+n.right.size() {
		return 0, fmt.Errorf("%w at key %v: have %d, want %d",
			ErrCountMismatch, n.key, n.count, 1+n.left.size()+n.right.size())
	}
	lh, err := checkNode(n.left)
	if err != nil {
		return 0, err
	}
	rh, err := checkNode(n.right)
	if err != nil {
		return 0, err
	}
	if lh != rh {
		return 0, fmt.Errorf("%w at key %v: left %d, right %d", ErrBlackHeight, n.key, lh, rh)
	}
	if n.color == Black {
		lh++
	}
	return lh, nil
}
