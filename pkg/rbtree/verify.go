package rbtree

import "fmt"

// Verify checks every structural property of the tree and returns the first
// violation found, wrapped in ErrCorrupted. It runs in O(n).
func (tree *Tree[K, V]) Verify() error {
	s := tree.nodes()

	if tree.root == Nil {
		if tree.leftmost != Nil || tree.rightmost != Nil || tree.count != 0 {
			return fmt.Errorf("%w: empty tree with leftmost %d, rightmost %d, count %d",
				ErrCorrupted, tree.leftmost, tree.rightmost, tree.count)
		}

		return nil
	}

	if parent := s[tree.root].links.parent; parent != Nil {
		return fmt.Errorf("%w: root %d has parent %d", ErrCorrupted, tree.root, parent)
	}

	if s[tree.root].links.color != Black {
		return fmt.Errorf("%w: root %d is red", ErrCorrupted, tree.root)
	}

	_, err := tree.verifySubtree(tree.root)
	if err != nil {
		return err
	}

	return tree.verifyOrder()
}

// VerifyTree panics when Verify fails.
func (tree *Tree[K, V]) VerifyTree() {
	err := tree.Verify()
	if err != nil {
		panic(err)
	}
}

// verifySubtree checks links and colors below ref and returns its black height.
func (tree *Tree[K, V]) verifySubtree(ref Ref) (int, error) {
	if ref == Nil {
		return 1, nil
	}

	s := tree.alloc.storage

	if !s[ref].inUse {
		return 0, fmt.Errorf("%w: node %d is linked but free", ErrCorrupted, ref)
	}

	heights := [2]int{}

	for d, child := range s[ref].links.child {
		if child == Nil {
			heights[d] = 1

			continue
		}

		if s[child].links.parent != ref {
			return 0, fmt.Errorf("%w: node %d has parent %d, expected %d",
				ErrCorrupted, child, s[child].links.parent, ref)
		}

		if s[ref].links.color == Red && s[child].links.color == Red {
			return 0, fmt.Errorf("%w: red node %d has red child %d", ErrCorrupted, ref, child)
		}

		height, err := tree.verifySubtree(child)
		if err != nil {
			return 0, err
		}

		heights[d] = height
	}

	if heights[left] != heights[right] {
		return 0, fmt.Errorf("%w: node %d has black heights %d and %d",
			ErrCorrupted, ref, heights[left], heights[right])
	}

	if s[ref].links.color == Black {
		return heights[left] + 1, nil
	}

	return heights[left], nil
}

// verifyOrder walks in-order and checks the ordering, the extremes and the count.
func (tree *Tree[K, V]) verifyOrder() error {
	s := tree.alloc.storage

	first := tree.alloc.extreme(tree.root, left)
	if first != tree.leftmost {
		return fmt.Errorf("%w: leftmost is %d, minimum is %d", ErrCorrupted, tree.leftmost, first)
	}

	last := tree.alloc.extreme(tree.root, right)
	if last != tree.rightmost {
		return fmt.Errorf("%w: rightmost is %d, maximum is %d", ErrCorrupted, tree.rightmost, last)
	}

	count := 1

	for prev, ref := first, tree.alloc.step(first, right); ref != Nil; prev, ref = ref, tree.alloc.step(ref, right) {
		if tree.comparator.Compare(&s[prev].value, &s[ref].value) >= 0 {
			return fmt.Errorf("%w: node %d is not ordered before node %d", ErrCorrupted, prev, ref)
		}

		count++
		if count > tree.count {
			break
		}
	}

	if count != tree.count {
		return fmt.Errorf("%w: counted %d nodes, tree reports %d", ErrCorrupted, count, tree.count)
	}

	return nil
}
