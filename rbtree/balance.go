package rbtree

// insertNode returns the root of a tree holding key/value in addition to
// everything reachable from root. Nodes on the search path are copied (or
// reused when owned by o); every other subtree is shared.
//
// Ties route left, so a key equal to existing keys lands before all of them
// in order.
func insertNode[K, V any](cmp func(K, K) int, root *node[K, V], key K, value V, o *owner) *node[K, V] {
	var (
		nStack []*node[K, V]
		dStack []int
	)
	for n := root; n != nil; {
		d := cmp(key, n.key)
		nStack = append(nStack, n)
		dStack = append(dStack, d)
		if d <= 0 {
			n = n.left
		} else {
			n = n.right
		}
	}
	nStack = append(nStack, newNode(Red, key, value, o))

	// Copy the path bottom-up
	for s := len(nStack) - 2; s >= 0; s-- {
		n := nStack[s].mutableFor(o)
		if dStack[s] <= 0 {
			n.left = nStack[s+1]
		} else {
			n.right = nStack[s+1]
		}
		n.count++
		nStack[s] = n
	}

	// Rebalance. Everything on nStack is writable from here on.
	for s := len(nStack) - 1; s > 1; s-- {
		p := nStack[s-1]
		n := nStack[s]
		if p.color == Black || n.color == Black {
			break
		}
		pp := nStack[s-2]
		if pp.left == p {
			if y := pp.right; isRed(y) {
				p.color = Black
				pp.right = repaint(Black, y, o)
				pp.color = Red
				s--
				continue
			}
			if p.left == n {
				// left-left
				pp.color = Red
				pp.left = p.right
				p.color = Black
				p.right = pp
				nStack[s-2] = p
				nStack[s-1] = n
				pp.recount()
				p.recount()
				if s >= 3 {
					relink(nStack[s-3], pp, p)
				}
			} else {
				// left-right
				p.right = n.left
				pp.color = Red
				pp.left = n.right
				n.color = Black
				n.left = p
				n.right = pp
				nStack[s-2] = n
				nStack[s-1] = p
				pp.recount()
				p.recount()
				n.recount()
				if s >= 3 {
					relink(nStack[s-3], pp, n)
				}
			}
			break
		}

		if y := pp.left; isRed(y) {
			p.color = Black
			pp.left = repaint(Black, y, o)
			pp.color = Red
			s--
			continue
		}
		if p.right == n {
			// right-right
			pp.color = Red
			pp.right = p.left
			p.color = Black
			p.left = pp
			nStack[s-2] = p
			nStack[s-1] = n
			pp.recount()
			p.recount()
			if s >= 3 {
				relink(nStack[s-3], pp, p)
			}
		} else {
			// right-left
			p.left = n.right
			pp.color = Red
			pp.right = n.left
			n.color = Black
			n.right = p
			n.left = pp
			nStack[s-2] = n
			nStack[s-1] = p
			pp.recount()
			p.recount()
			n.recount()
			if s >= 3 {
				relink(nStack[s-3], pp, n)
			}
		}
		break
	}

	nStack[0].color = Black
	return nStack[0]
}

// removePath deletes the last node of stack, which must be a path from the
// root, and returns the new root. The input path is never written.
func removePath[K, V any](stack []*node[K, V], o *owner) *node[K, V] {
	if len(stack) == 0 {
		return nil
	}

	// Copy path to node
	cstack := make([]*node[K, V], len(stack), len(stack)+8)
	cstack[len(cstack)-1] = stack[len(stack)-1].mutableFor(o)
	for i := len(stack) - 2; i >= 0; i-- {
		n := stack[i].mutableFor(o)
		if stack[i].left == stack[i+1] {
			n.left = cstack[i+1]
		} else {
			n.right = cstack[i+1]
		}
		cstack[i] = n
	}

	// Internal node: swap with in-order predecessor, then remove that leaf
	n := cstack[len(cstack)-1]
	if n.left != nil && n.right != nil {
		split := len(cstack)
		p := n.left
		for p.right != nil {
			cstack = append(cstack, p)
			p = p.right
		}
		v := cstack[split-1]
		predKey, predValue := p.key, p.value
		leaf := p.mutableFor(o)
		leaf.key, leaf.value = v.key, v.value
		cstack = append(cstack, leaf)
		v.key, v.value = predKey, predValue
		for i := len(cstack) - 2; i >= split; i-- {
			m := cstack[i].mutableFor(o)
			m.right = cstack[i+1]
			cstack[i] = m
		}
		v.left = cstack[split]
	}

	n = cstack[len(cstack)-1]
	if n.color == Red {
		// Red leaf
		p := cstack[len(cstack)-2]
		if p.left == n {
			p.left = nil
		} else if p.right == n {
			p.right = nil
		}
		cstack = cstack[:len(cstack)-1]
		for _, c := range cstack {
			c.count--
		}
		return cstack[0]
	}

	if n.left != nil || n.right != nil {
		// Black node with a single (necessarily red) child
		child := n.left
		if child == nil {
			child = n.right
		}
		n.assign(child)
		n.color = Black
		for i := 0; i < len(cstack)-1; i++ {
			cstack[i].count--
		}
		return cstack[0]
	}

	if len(cstack) == 1 {
		return nil
	}

	// Black leaf
	for _, c := range cstack {
		c.count--
	}
	parent := cstack[len(cstack)-2]
	cstack = fixDoubleBlack(cstack, o)
	if parent.left == n {
		parent.left = nil
	} else {
		parent.right = nil
	}
	return cstack[0]
}

// fixDoubleBlack restores black height after a black leaf at the top of
// stack is about to be unlinked. It walks up the stack iteratively, cloning
// siblings before touching them. The stack may be rewritten (rotations change
// ancestors, including the root) so the updated slice is returned.
func fixDoubleBlack[K, V any](stack []*node[K, V], o *owner) []*node[K, V] {
	for i := len(stack) - 1; i >= 0; i-- {
		n := stack[i]
		if i == 0 {
			n.color = Black
			return stack
		}
		p := stack[i-1]
		if p.left == n {
			s := p.right
			if isRed(s.right) {
				s = s.mutableFor(o)
				z := s.right.mutableFor(o)
				p.right = s.left
				s.left = p
				s.right = z
				s.color = p.color
				n.color = Black
				p.color = Black
				z.color = Black
				p.recount()
				s.recount()
				if i > 1 {
					relink(stack[i-2], p, s)
				}
				stack[i-1] = s
				return stack
			}
			if isRed(s.left) {
				s = s.mutableFor(o)
				z := s.left.mutableFor(o)
				p.right = z.left
				s.left = z.right
				z.left = p
				z.right = s
				z.color = p.color
				p.color = Black
				s.color = Black
				n.color = Black
				p.recount()
				s.recount()
				z.recount()
				if i > 1 {
					relink(stack[i-2], p, z)
				}
				stack[i-1] = z
				return stack
			}
			if s.color == Black {
				if p.color == Red {
					p.color = Black
					p.right = repaint(Red, s, o)
					return stack
				}
				p.right = repaint(Red, s, o)
				continue
			}
			// Red sibling: rotate it above p and retry one level lower
			s = s.mutableFor(o)
			p.right = s.left
			s.left = p
			s.color = p.color
			p.color = Red
			p.recount()
			s.recount()
			if i > 1 {
				relink(stack[i-2], p, s)
			}
			stack[i-1] = s
			stack[i] = p
			if i+1 < len(stack) {
				stack[i+1] = n
			} else {
				stack = append(stack, n)
			}
			i += 2
			continue
		}

		s := p.left
		if isRed(s.left) {
			s = s.mutableFor(o)
			z := s.left.mutableFor(o)
			p.left = s.right
			s.right = p
			s.left = z
			s.color = p.color
			n.color = Black
			p.color = Black
			z.color = Black
			p.recount()
			s.recount()
			if i > 1 {
				relink(stack[i-2], p, s)
			}
			stack[i-1] = s
			return stack
		}
		if isRed(s.right) {
			s = s.mutableFor(o)
			z := s.right.mutableFor(o)
			p.left = z.right
			s.right = z.left
			z.right = p
			z.left = s
			z.color = p.color
			p.color = Black
			s.color = Black
			n.color = Black
			p.recount()
			s.recount()
			z.recount()
			if i > 1 {
				relink(stack[i-2], p, z)
			}
			stack[i-1] = z
			return stack
		}
		if s.color == Black {
			if p.color == Red {
				p.color = Black
				p.left = repaint(Red, s, o)
				return stack
			}
			p.left = repaint(Red, s, o)
			continue
		}
		s = s.mutableFor(o)
		p.left = s.right
		s.right = p
		s.color = p.color
		p.color = Red
		p.recount()
		s.recount()
		if i > 1 {
			relink(stack[i-2], p, s)
		}
		stack[i-1] = s
		stack[i] = p
		if i+1 < len(stack) {
			stack[i+1] = n
		} else {
			stack = append(stack, n)
		}
		i += 2
	}
	return stack
}

// relink points whichever child link of parent refers to old at repl.
func relink[K, V any](parent, old, repl *node[K, V]) {
	if parent.left == old {
		parent.left = repl
	} else {
		parent.right = repl
	}
}
