package rbtree

import "iter"

// Iterator walks a tree in key order, or in reverse key order, and may remove or
// replace the element it stands on. An iterator with a Nil position is at the end.
type Iterator[K, V any] struct {
	tree    *Tree[K, V]
	node    Ref
	reverse bool
	removed bool
}

// Begin returns an iterator at the minimum.
func (tree *Tree[K, V]) Begin() Iterator[K, V] {
	return Iterator[K, V]{tree: tree, node: tree.leftmost}
}

// End returns the past-the-end forward iterator.
func (tree *Tree[K, V]) End() Iterator[K, V] {
	return Iterator[K, V]{tree: tree}
}

// RBegin returns a reverse iterator at the maximum.
func (tree *Tree[K, V]) RBegin() Iterator[K, V] {
	return Iterator[K, V]{tree: tree, node: tree.rightmost, reverse: true}
}

// REnd returns the past-the-end reverse iterator.
func (tree *Tree[K, V]) REnd() Iterator[K, V] {
	return Iterator[K, V]{tree: tree, reverse: true}
}

// IteratorAt returns a forward iterator positioned at ref.
func (tree *Tree[K, V]) IteratorAt(ref Ref) Iterator[K, V] {
	return Iterator[K, V]{tree: tree, node: ref}
}

// CBegin returns a read-only iterator at the minimum.
func (tree *Tree[K, V]) CBegin() ConstIterator[K, V] {
	it := tree.Begin()

	return it.Const()
}

// CEnd returns the read-only past-the-end forward iterator.
func (tree *Tree[K, V]) CEnd() ConstIterator[K, V] {
	it := tree.End()

	return it.Const()
}

// CRBegin returns a read-only reverse iterator at the maximum.
func (tree *Tree[K, V]) CRBegin() ConstIterator[K, V] {
	it := tree.RBegin()

	return it.Const()
}

// CREnd returns the read-only past-the-end reverse iterator.
func (tree *Tree[K, V]) CREnd() ConstIterator[K, V] {
	it := tree.REnd()

	return it.Const()
}

// Done reports whether the iterator is past the end.
func (it Iterator[K, V]) Done() bool {
	return it.node == Nil
}

// Equal reports whether both iterators stand on the same position of the same tree.
func (it Iterator[K, V]) Equal(other Iterator[K, V]) bool {
	return it.tree == other.tree && it.node == other.node
}

// Ref returns the current node.
func (it Iterator[K, V]) Ref() Ref {
	it.mustDereference()

	return it.node
}

// Value returns the current value.
func (it Iterator[K, V]) Value() *V {
	it.mustDereference()

	return it.tree.alloc.Value(it.node)
}

// Next advances in iteration order. Right after Remove it only acknowledges the
// removal, since Remove already moved to the following element.
func (it *Iterator[K, V]) Next() {
	if it.removed {
		it.removed = false

		return
	}

	if it.node == Nil {
		panic(ErrIteratorEnd)
	}

	it.node = it.tree.alloc.step(it.node, it.forward())
}

// Prev steps back in iteration order. From the end it moves to the last element.
// Right after Remove it moves to the element before the removed one.
func (it *Iterator[K, V]) Prev() {
	it.removed = false

	if it.node == Nil {
		if it.reverse {
			it.node = it.tree.leftmost
		} else {
			it.node = it.tree.rightmost
		}

		return
	}

	it.node = it.tree.alloc.step(it.node, it.forward().opposite())
}

// Remove unlinks the current element and moves to the following one.
// The removed node is not freed.
func (it *Iterator[K, V]) Remove() {
	it.mustDereference()

	cursor := it.tree.GetCursor(it.node)
	it.node = it.tree.alloc.step(it.node, it.forward())
	it.removed = true
	it.tree.Remove(cursor)
}

// Replace puts ref in the position of the current element and stays on it.
func (it *Iterator[K, V]) Replace(ref Ref) {
	it.mustDereference()

	cursor := it.tree.GetCursor(it.node)
	it.node = ref
	it.tree.Replace(ref, cursor)
}

// Const returns a read-only view of the iterator.
func (it *Iterator[K, V]) Const() ConstIterator[K, V] {
	return ConstIterator[K, V]{it: *it}
}

func (it *Iterator[K, V]) forward() direction {
	if it.reverse {
		return left
	}

	return right
}

func (it Iterator[K, V]) mustDereference() {
	switch {
	case it.removed:
		panic(ErrIteratorRemoved)
	case it.node == Nil:
		panic(ErrIteratorEnd)
	}
}

// ConstIterator is an Iterator that cannot modify the tree.
type ConstIterator[K, V any] struct {
	it Iterator[K, V]
}

// Done reports whether the iterator is past the end.
func (c ConstIterator[K, V]) Done() bool {
	return c.it.Done()
}

// Equal reports whether both iterators stand on the same position of the same tree.
func (c ConstIterator[K, V]) Equal(other ConstIterator[K, V]) bool {
	return c.it.Equal(other.it)
}

// Ref returns the current node.
func (c ConstIterator[K, V]) Ref() Ref {
	return c.it.Ref()
}

// Value returns a copy of the current value.
func (c ConstIterator[K, V]) Value() V {
	return *c.it.Value()
}

// Next advances in iteration order.
func (c *ConstIterator[K, V]) Next() {
	c.it.Next()
}

// Prev steps back in iteration order.
func (c *ConstIterator[K, V]) Prev() {
	c.it.Prev()
}

// All yields the nodes in key order. The tree must not be modified during the loop;
// use an Iterator for that. Allocating new slots is allowed, but a yielded pointer
// is only valid until the next Alloc.
func (tree *Tree[K, V]) All() iter.Seq2[Ref, *V] {
	return tree.walk(func() Ref { return tree.leftmost }, right)
}

// Backward yields the nodes in reverse key order.
func (tree *Tree[K, V]) Backward() iter.Seq2[Ref, *V] {
	return tree.walk(func() Ref { return tree.rightmost }, left)
}

// From yields the nodes in key order starting at the ceiling of key.
func (tree *Tree[K, V]) From(key K) iter.Seq2[Ref, *V] {
	return tree.walk(func() Ref { return tree.Ceil(key) }, right)
}

func (tree *Tree[K, V]) walk(start func() Ref, d direction) iter.Seq2[Ref, *V] {
	return func(yield func(Ref, *V) bool) {
		tree.alloc.mustBeAwake()

		// Storage is re-read per step since the loop body may Alloc and grow the arena.
		for ref := start(); ref != Nil; ref = tree.alloc.step(ref, d) {
			if !yield(ref, &tree.alloc.storage[ref].value) {
				return
			}
		}
	}
}
