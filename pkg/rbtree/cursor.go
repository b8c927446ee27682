package rbtree

// Cursor names one slot of a tree: either a linked node or the empty child slot
// where a missing key belongs. A cursor is invalidated by any mutation of its tree.
type Cursor struct {
	parent Ref
	node   Ref
	side   direction

	leftmost  bool
	rightmost bool

	generation uint64
}

// Found reports whether the cursor names a linked node.
func (c Cursor) Found() bool {
	return c.node != Nil
}

// Ref returns the node named by the cursor, or Nil for an empty slot.
func (c Cursor) Ref() Ref {
	return c.node
}

// Parent returns the node owning the slot, or Nil for the root slot.
func (c Cursor) Parent() Ref {
	return c.parent
}

// IsLeftmost reports whether the slot holds, or would hold, the minimum.
func (c Cursor) IsLeftmost() bool {
	return c.leftmost
}

// IsRightmost reports whether the slot holds, or would hold, the maximum.
func (c Cursor) IsRightmost() bool {
	return c.rightmost
}

func (tree *Tree[K, V]) cursor(parent Ref, side direction, node Ref, leftmost, rightmost bool) Cursor {
	return Cursor{
		parent:     parent,
		node:       node,
		side:       side,
		leftmost:   leftmost,
		rightmost:  rightmost,
		generation: tree.generation,
	}
}

// Find descends from the root looking for key. The cursor names the matching node,
// or the empty slot where a node with that key would be linked.
func (tree *Tree[K, V]) Find(key K) Cursor {
	s := tree.nodes()

	parent, node, side := Nil, tree.root, left
	leftmost, rightmost := true, true

	for node != Nil {
		res := tree.comparator.CompareKey(key, &s[node].value)
		if res == 0 {
			return tree.cursor(parent, side, node, node == tree.leftmost, node == tree.rightmost)
		}

		if res < 0 {
			side = left
			rightmost = false
		} else {
			side = right
			leftmost = false
		}

		parent = node
		node = s[node].links.child[side]
	}

	return tree.cursor(parent, side, Nil, leftmost, rightmost)
}

// RootCursor names the root slot.
func (tree *Tree[K, V]) RootCursor() Cursor {
	if tree.root == Nil {
		return tree.cursor(Nil, left, Nil, true, true)
	}

	return tree.cursor(Nil, left, tree.root, tree.root == tree.leftmost, tree.root == tree.rightmost)
}

// GetCursor names the slot holding ref, which must be linked in this tree.
func (tree *Tree[K, V]) GetCursor(ref Ref) Cursor {
	if ref == Nil {
		panic(ErrNilRef)
	}

	s := tree.nodes()
	parent := s[ref].links.parent

	side := left
	if parent != Nil {
		side = tree.sideOf(ref)
	} else {
		doAssert(ref == tree.root)
	}

	return tree.cursor(parent, side, ref, ref == tree.leftmost, ref == tree.rightmost)
}

// PrevCursor names the predecessor of ref. When ref is the minimum it names the
// empty left slot of ref, which is where a new minimum goes.
func (tree *Tree[K, V]) PrevCursor(ref Ref) Cursor {
	return tree.neighbourCursor(ref, left)
}

// NextCursor names the successor of ref. When ref is the maximum it names the
// empty right slot of ref, which is where a new maximum goes.
func (tree *Tree[K, V]) NextCursor(ref Ref) Cursor {
	return tree.neighbourCursor(ref, right)
}

func (tree *Tree[K, V]) neighbourCursor(ref Ref, d direction) Cursor {
	if ref == Nil {
		panic(ErrNilRef)
	}

	tree.nodes()

	if next := tree.alloc.step(ref, d); next != Nil {
		return tree.GetCursor(next)
	}

	// ref is the extreme towards d, so its d slot is empty.
	return tree.cursor(ref, d, Nil, d == left, d == right)
}

// Prev steps a cursor one position back in key order. A found cursor moves to the
// predecessor cursor of its node. An empty slot moves to the node ordered just before
// the slot, and stays put when there is none.
func (tree *Tree[K, V]) Prev(cursor Cursor) Cursor {
	return tree.move(cursor, left)
}

// Next mirrors Prev.
func (tree *Tree[K, V]) Next(cursor Cursor) Cursor {
	return tree.move(cursor, right)
}

func (tree *Tree[K, V]) move(cursor Cursor, d direction) Cursor {
	tree.validate(cursor)

	if cursor.Found() {
		return tree.neighbourCursor(cursor.node, d)
	}

	if cursor.parent == Nil {
		return cursor
	}

	// The parent sits just after its left slot and just before its right slot.
	if cursor.side != d {
		return tree.GetCursor(cursor.parent)
	}

	return tree.neighbourCursor(cursor.parent, d)
}

// Floor returns the greatest node whose key is less than or equal to key, or Nil.
func (tree *Tree[K, V]) Floor(key K) Ref {
	cursor := tree.Find(key)
	if cursor.Found() {
		return cursor.node
	}

	return tree.Prev(cursor).node
}

// Ceil returns the least node whose key is greater than or equal to key, or Nil.
func (tree *Tree[K, V]) Ceil(key K) Ref {
	cursor := tree.Find(key)
	if cursor.Found() {
		return cursor.node
	}

	return tree.Next(cursor).node
}
