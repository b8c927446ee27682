// Package rbtree implements a red-black tree whose nodes live in an index arena.
//
// Values are stored in an Allocator and addressed by Ref. A Tree links and unlinks
// references the caller allocated, so insertion and removal never allocate. Lookups
// return a Cursor naming either the matching node or the empty slot where the key
// belongs; the cursor is then handed to Insert, Replace or Remove so that one descent
// serves both the query and the mutation.
package rbtree

// Option configures a Tree.
type Option func(*options)

type options struct {
	checkGeneration bool
}

// WithGenerationCheck toggles the stale cursor check. It is enabled by default.
// Without it a stale cursor silently corrupts the tree.
func WithGenerationCheck(enabled bool) Option {
	return func(o *options) {
		o.checkGeneration = enabled
	}
}

// Tree is a red-black tree ordered by a Comparator.
type Tree[K, V any] struct {
	alloc      *Allocator[V]
	comparator Comparator[K, V]

	root      Ref
	leftmost  Ref
	rightmost Ref
	count     int

	generation      uint64
	checkGeneration bool
}

// New creates an empty tree over the values of alloc.
func New[K, V any](alloc *Allocator[V], comparator Comparator[K, V], opts ...Option) *Tree[K, V] {
	o := options{checkGeneration: true}
	for _, opt := range opts {
		opt(&o)
	}

	return &Tree[K, V]{
		alloc:           alloc,
		comparator:      comparator,
		generation:      1,
		checkGeneration: o.checkGeneration,
	}
}

// Allocator returns the allocator holding the values.
func (tree *Tree[K, V]) Allocator() *Allocator[V] {
	return tree.alloc
}

// Len returns the number of linked nodes.
func (tree *Tree[K, V]) Len() int {
	return tree.count
}

// Empty reports whether no node is linked.
func (tree *Tree[K, V]) Empty() bool {
	return tree.root == Nil
}

// Root returns the root node, or Nil for an empty tree.
func (tree *Tree[K, V]) Root() Ref {
	return tree.root
}

// Leftmost returns the minimum node in O(1).
func (tree *Tree[K, V]) Leftmost() Ref {
	return tree.leftmost
}

// Rightmost returns the maximum node in O(1).
func (tree *Tree[K, V]) Rightmost() Ref {
	return tree.rightmost
}

// Generation returns the modification counter. Every mutation increments it.
func (tree *Tree[K, V]) Generation() uint64 {
	return tree.generation
}

// Value returns the value stored at ref.
func (tree *Tree[K, V]) Value(ref Ref) *V {
	return tree.alloc.Value(ref)
}

// Clear unlinks every node and calls release on each of them in post-order.
// release may free the node. It may be nil.
func (tree *Tree[K, V]) Clear(release func(Ref)) {
	s := tree.nodes()

	var walk func(ref Ref)
	walk = func(ref Ref) {
		if ref == Nil {
			return
		}

		walk(s[ref].links.child[left])
		walk(s[ref].links.child[right])
		s[ref].links = links{}

		if release != nil {
			release(ref)
		}
	}

	walk(tree.root)

	tree.root, tree.leftmost, tree.rightmost = Nil, Nil, Nil
	tree.count = 0
	tree.generation++
}

// Insert links ref into the empty slot named by cursor.
// The cursor must come from a lookup that missed and must not be stale.
func (tree *Tree[K, V]) Insert(ref Ref, cursor Cursor) {
	tree.validate(cursor)

	if cursor.Found() {
		panic(ErrCursorFound)
	}

	tree.alloc.mustBeLive(ref)

	s := tree.nodes()
	s[ref].links = links{color: Red}
	tree.link(cursor.parent, cursor.side, ref)

	if cursor.leftmost {
		tree.leftmost = ref
	}

	if cursor.rightmost {
		tree.rightmost = ref
	}

	tree.count++
	tree.generation++
	tree.rebalanceInsert(ref)
}

// Replace puts ref in the position of the node named by cursor. ref inherits
// the links and the color; the replaced node is left unlinked.
// ref must order exactly like the node it replaces.
func (tree *Tree[K, V]) Replace(ref Ref, cursor Cursor) {
	tree.validate(cursor)

	if !cursor.Found() {
		panic(ErrCursorNotFound)
	}

	tree.alloc.mustBeLive(ref)
	tree.generation++

	old := cursor.node
	if ref == old {
		return
	}

	s := tree.nodes()
	s[ref].links = s[old].links
	tree.link(cursor.parent, cursor.side, ref)

	for _, child := range s[ref].links.child {
		if child != Nil {
			s[child].links.parent = ref
		}
	}

	if tree.leftmost == old {
		tree.leftmost = ref
	}

	if tree.rightmost == old {
		tree.rightmost = ref
	}

	s[old].links = links{}
}

// Remove unlinks the node named by cursor. The node is not freed.
func (tree *Tree[K, V]) Remove(cursor Cursor) {
	tree.validate(cursor)

	if !cursor.Found() {
		panic(ErrCursorNotFound)
	}

	s := tree.nodes()
	node := cursor.node

	if node == tree.leftmost {
		tree.leftmost = tree.alloc.step(node, right)
	}

	if node == tree.rightmost {
		tree.rightmost = tree.alloc.step(node, left)
	}

	var (
		fixParent Ref
		fixSide   direction
		needFix   bool
	)

	leftChild, rightChild := s[node].links.child[left], s[node].links.child[right]

	if leftChild == Nil || rightChild == Nil {
		child := leftChild
		if child == Nil {
			child = rightChild
		}

		tree.link(cursor.parent, cursor.side, child)

		switch {
		case child != Nil:
			// A lone child is a red leaf under a black node.
			s[child].links.color = Black
		case s[node].links.color == Black && cursor.parent != Nil:
			// Removing a black root leaf empties the tree; nothing to rebalance.
			fixParent, fixSide, needFix = cursor.parent, cursor.side, true
		}
	} else {
		succ := tree.alloc.extreme(rightChild, left)
		succRight := s[succ].links.child[right]
		succColor := s[succ].links.color

		if succ == rightChild {
			fixParent, fixSide = succ, right
		} else {
			succParent := s[succ].links.parent
			tree.link(succParent, left, succRight)
			tree.link(succ, right, rightChild)

			fixParent, fixSide = succParent, left
		}

		tree.link(succ, left, leftChild)
		s[succ].links.color = s[node].links.color
		tree.link(cursor.parent, cursor.side, succ)

		switch {
		case succRight != Nil:
			s[succRight].links.color = Black
		case succColor == Black:
			needFix = true
		}
	}

	s[node].links = links{}
	tree.count--
	tree.generation++

	if needFix {
		tree.rebalanceRemove(fixParent, fixSide)
	}
}

// Height returns the number of nodes on the longest root to leaf path.
func (tree *Tree[K, V]) Height() int {
	s := tree.nodes()

	var height func(ref Ref) int
	height = func(ref Ref) int {
		if ref == Nil {
			return 0
		}

		return 1 + max(height(s[ref].links.child[left]), height(s[ref].links.child[right]))
	}

	return height(tree.root)
}

// BlackHeight returns the number of black nodes on the leftmost root to leaf path.
func (tree *Tree[K, V]) BlackHeight() int {
	s := tree.nodes()
	height := 0

	for ref := tree.root; ref != Nil; ref = s[ref].links.child[left] {
		if s[ref].links.color == Black {
			height++
		}
	}

	return height
}

func (tree *Tree[K, V]) nodes() []slot[V] {
	tree.alloc.mustBeAwake()

	return tree.alloc.storage
}

func (tree *Tree[K, V]) validate(cursor Cursor) {
	if tree.checkGeneration && cursor.generation != tree.generation {
		panic(ErrStaleCursor)
	}

	doAssert(tree.slotOf(cursor) == cursor.node)
}

// slotOf returns the occupant of the slot named by cursor.
func (tree *Tree[K, V]) slotOf(cursor Cursor) Ref {
	if cursor.parent == Nil {
		return tree.root
	}

	return tree.nodes()[cursor.parent].links.child[cursor.side]
}

// link stores ref in the side slot of parent, or in the root when parent is Nil.
func (tree *Tree[K, V]) link(parent Ref, side direction, ref Ref) {
	s := tree.alloc.storage

	if parent == Nil {
		tree.root = ref
	} else {
		s[parent].links.child[side] = ref
	}

	if ref != Nil {
		s[ref].links.parent = parent
	}
}

// sideOf returns which child of its parent ref is. ref must not be the root.
func (tree *Tree[K, V]) sideOf(ref Ref) direction {
	s := tree.alloc.storage

	if s[s[ref].links.parent].links.child[left] == ref {
		return left
	}

	return right
}

func (tree *Tree[K, V]) isBlack(ref Ref) bool {
	return ref == Nil || tree.alloc.storage[ref].links.color == Black
}

// rotate moves pivot one level down towards d and lifts its opposite child.
//
//	rotate(P, left):     P            C
//	                    / \          / \
//	                   a   C   =>   P   c
//	                      / \      / \
//	                     b   c    a   b
func (tree *Tree[K, V]) rotate(pivot Ref, d direction) {
	s := tree.alloc.storage
	o := d.opposite()

	up := s[pivot].links.child[o]
	doAssert(up != Nil)

	parent := s[pivot].links.parent

	side := left
	if parent != Nil {
		side = tree.sideOf(pivot)
	}

	inner := s[up].links.child[d]
	s[pivot].links.child[o] = inner

	if inner != Nil {
		s[inner].links.parent = pivot
	}

	s[up].links.child[d] = pivot
	s[pivot].links.parent = up
	tree.link(parent, side, up)
}

func (tree *Tree[K, V]) rebalanceInsert(node Ref) {
	s := tree.alloc.storage

	for {
		parent := s[node].links.parent
		if parent == Nil {
			s[node].links.color = Black

			return
		}

		if s[parent].links.color == Black {
			return
		}

		// A red parent is never the root.
		grand := s[parent].links.parent
		doAssert(grand != Nil)

		side := tree.sideOf(parent)
		uncle := s[grand].links.child[side.opposite()]

		if !tree.isBlack(uncle) {
			s[parent].links.color = Black
			s[uncle].links.color = Black
			s[grand].links.color = Red
			node = grand

			continue
		}

		if tree.sideOf(node) != side {
			tree.rotate(parent, side)
			node, parent = parent, node
		}

		tree.rotate(grand, side.opposite())
		s[parent].links.color = Black
		s[grand].links.color = Red

		return
	}
}

// rebalanceRemove restores the black height of the side subtree of parent,
// which lost one black node.
func (tree *Tree[K, V]) rebalanceRemove(parent Ref, side direction) {
	s := tree.alloc.storage

	for {
		far := side.opposite()

		sibling := s[parent].links.child[far]
		doAssert(sibling != Nil)

		if s[sibling].links.color == Red {
			tree.rotate(parent, side)
			s[sibling].links.color = Black
			s[parent].links.color = Red
			sibling = s[parent].links.child[far]
		}

		nearNephew := s[sibling].links.child[side]
		farNephew := s[sibling].links.child[far]

		if tree.isBlack(nearNephew) && tree.isBlack(farNephew) {
			s[sibling].links.color = Red

			if s[parent].links.color == Red {
				s[parent].links.color = Black

				return
			}

			grand := s[parent].links.parent
			if grand == Nil {
				return
			}

			side = tree.sideOf(parent)
			parent = grand

			continue
		}

		if tree.isBlack(farNephew) {
			tree.rotate(sibling, far)
			s[nearNephew].links.color = Black
			s[sibling].links.color = Red
			farNephew = sibling
			sibling = nearNephew
		}

		tree.rotate(parent, side)
		s[sibling].links.color = s[parent].links.color
		s[parent].links.color = Black
		s[farNephew].links.color = Black

		return
	}
}
