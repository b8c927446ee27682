package rbtree //nolint:testpackage // tests require access to unexported fields.

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindCursorFlags(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	ten := insertKey(tree, 10)
	twenty := insertKey(tree, 20)
	thirty := insertKey(tree, 30)

	cursor := tree.Find(5)
	assert.False(t, cursor.Found())
	assert.Equal(t, ten, cursor.Parent())
	assert.True(t, cursor.IsLeftmost())
	assert.False(t, cursor.IsRightmost())

	cursor = tree.Find(35)
	assert.False(t, cursor.Found())
	assert.Equal(t, thirty, cursor.Parent())
	assert.False(t, cursor.IsLeftmost())
	assert.True(t, cursor.IsRightmost())

	cursor = tree.Find(15)
	assert.False(t, cursor.Found())
	assert.False(t, cursor.IsLeftmost())
	assert.False(t, cursor.IsRightmost())

	cursor = tree.Find(10)
	assert.True(t, cursor.Found())
	assert.Equal(t, ten, cursor.Ref())
	assert.True(t, cursor.IsLeftmost())

	cursor = tree.Find(20)
	assert.Equal(t, twenty, cursor.Ref())
	assert.Equal(t, Nil, cursor.Parent())
	assert.Equal(t, tree.RootCursor(), cursor)
}

func TestGetCursorMatchesFind(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	rng := rand.New(rand.NewSource(7))

	for _, key := range rng.Perm(300) {
		insertKey(tree, key)
	}

	for ref, value := range tree.All() {
		assert.Equal(t, tree.Find(*value), tree.GetCursor(ref))
	}
}

func TestPrevNextCursor(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	ten := insertKey(tree, 10)
	twenty := insertKey(tree, 20)
	thirty := insertKey(tree, 30)

	assert.Equal(t, tree.GetCursor(ten), tree.PrevCursor(twenty))
	assert.Equal(t, tree.GetCursor(thirty), tree.NextCursor(twenty))

	before := tree.PrevCursor(ten)
	assert.False(t, before.Found())
	assert.Equal(t, ten, before.Parent())
	assert.True(t, before.IsLeftmost())
	assert.False(t, before.IsRightmost())

	five := tree.Allocator().Alloc(5)
	tree.Insert(five, before)
	require.NoError(t, tree.Verify())
	assert.Equal(t, five, tree.Leftmost())

	after := tree.NextCursor(thirty)
	assert.False(t, after.Found())
	assert.True(t, after.IsRightmost())

	forty := tree.Allocator().Alloc(40)
	tree.Insert(forty, after)
	require.NoError(t, tree.Verify())
	assert.Equal(t, forty, tree.Rightmost())
	assert.Equal(t, []int{5, 10, 20, 30, 40}, treeKeys(tree))
}

func TestPrevNextFromSlots(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	ten := insertKey(tree, 10)
	twenty := insertKey(tree, 20)

	gap := tree.Find(15)
	assert.Equal(t, tree.GetCursor(ten), tree.Prev(gap))
	assert.Equal(t, tree.GetCursor(twenty), tree.Next(gap))

	low := tree.Find(5)
	assert.Equal(t, low, tree.Prev(low), "nothing is ordered before the lowest slot")
	assert.Equal(t, tree.GetCursor(ten), tree.Next(low))

	high := tree.Find(25)
	assert.Equal(t, high, tree.Next(high))
	assert.Equal(t, tree.GetCursor(twenty), tree.Prev(high))

	assert.Equal(t, tree.GetCursor(ten), tree.Prev(tree.GetCursor(twenty)))

	empty := testNewIntSet()
	assert.Equal(t, empty.RootCursor(), empty.Prev(empty.RootCursor()))
	assert.Equal(t, empty.RootCursor(), empty.Next(empty.RootCursor()))
}

func TestFloorCeil(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	for key := 10; key <= 100; key += 10 {
		insertKey(tree, key)
	}

	assert.Equal(t, 30, valueOf(tree, tree.Floor(35)))
	assert.Equal(t, 40, valueOf(tree, tree.Ceil(35)))
	assert.Equal(t, 50, valueOf(tree, tree.Floor(50)))
	assert.Equal(t, 50, valueOf(tree, tree.Ceil(50)))
	assert.Equal(t, 100, valueOf(tree, tree.Floor(1000)))
	assert.Equal(t, 10, valueOf(tree, tree.Ceil(-4)))
	assert.Equal(t, Nil, tree.Floor(5))
	assert.Equal(t, Nil, tree.Ceil(105))
}

// shape lists the key and color of every node in level order, nil for empty slots.
func shape(tree *intTree) []any {
	s := tree.alloc.storage
	result := []any{}
	queue := []Ref{tree.root}

	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]

		if ref == Nil {
			result = append(result, nil)

			continue
		}

		result = append(result, s[ref].value, s[ref].links.color)
		queue = append(queue, s[ref].links.child[left], s[ref].links.child[right])
	}

	return result
}

func TestCursorInsertEquivalence(t *testing.T) {
	t.Parallel()

	const count = 500

	byFind := testNewIntSet()
	byNext := testNewIntSet()

	for key := range count {
		insertKey(byFind, key)

		cursor := byNext.RootCursor()
		if last := byNext.Rightmost(); last != Nil {
			cursor = byNext.NextCursor(last)
		}

		byNext.Insert(byNext.Allocator().Alloc(key), cursor)
	}

	require.NoError(t, byNext.Verify())
	assert.Equal(t, shape(byFind), shape(byNext))

	// The same holds for removals driven by found cursors and by GetCursor.
	for key := 0; key < count; key += 3 {
		removeKey(byFind, key)

		ref := byNext.Find(key).Ref()
		byNext.Remove(byNext.GetCursor(ref))
		byNext.Allocator().Free(ref)
	}

	require.NoError(t, byNext.Verify())
	assert.Equal(t, shape(byFind), shape(byNext))
}
