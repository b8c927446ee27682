package rbtree //nolint:testpackage // tests require access to unexported fields (storage, links, generation).

import (
	"math"
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type intTree = Tree[int, int]

// Create a tree storing a set of integers.
func testNewIntSet(opts ...Option) *intTree {
	return New(NewAllocator[int](0), OrderedBy[int, int](func(v *int) int { return *v }), opts...)
}

// insertKey links a new node holding key. It returns Nil when the key is already present.
func insertKey(tree *intTree, key int) Ref {
	cursor := tree.Find(key)
	if cursor.Found() {
		return Nil
	}

	ref := tree.Allocator().Alloc(key)
	tree.Insert(ref, cursor)

	return ref
}

func removeKey(tree *intTree, key int) bool {
	cursor := tree.Find(key)
	if !cursor.Found() {
		return false
	}

	ref := cursor.Ref()
	tree.Remove(cursor)
	tree.Allocator().Free(ref)

	return true
}

func treeKeys(tree *intTree) []int {
	keys := []int{}
	for _, value := range tree.All() {
		keys = append(keys, *value)
	}

	return keys
}

func valueOf(tree *intTree, ref Ref) int {
	return *tree.Value(ref)
}

func TestEmpty(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	assert.Equal(t, 0, tree.Len())
	assert.Equal(t, Nil, tree.Root())
	assert.Equal(t, Nil, tree.Leftmost())
	assert.Equal(t, Nil, tree.Rightmost())
	assert.Equal(t, 0, tree.Height())
	assert.Equal(t, 0, tree.BlackHeight())
	require.NoError(t, tree.Verify())

	cursor := tree.Find(5)
	assert.False(t, cursor.Found())
	assert.Equal(t, Nil, cursor.Parent())
	assert.True(t, cursor.IsLeftmost())
	assert.True(t, cursor.IsRightmost())
	assert.Equal(t, tree.RootCursor(), cursor)

	assert.Equal(t, Nil, tree.Floor(5))
	assert.Equal(t, Nil, tree.Ceil(5))
	assert.Empty(t, treeKeys(tree))
}

func TestInsertThenRemoveRoot(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	for _, key := range []int{5, 3, 8, 1, 4, 7, 9} {
		require.NotEqual(t, Nil, insertKey(tree, key))
		require.NoError(t, tree.Verify())
	}

	assert.Equal(t, []int{1, 3, 4, 5, 7, 8, 9}, treeKeys(tree))
	assert.Equal(t, 7, tree.Len())
	assert.Equal(t, 1, valueOf(tree, tree.Leftmost()))
	assert.Equal(t, 9, valueOf(tree, tree.Rightmost()))
	assert.Equal(t, Nil, insertKey(tree, 4), "duplicates are not linked")

	require.True(t, removeKey(tree, 5))
	require.NoError(t, tree.Verify())
	assert.Equal(t, []int{1, 3, 4, 7, 8, 9}, treeKeys(tree))
	assert.Equal(t, 6, tree.Len())
	assert.False(t, removeKey(tree, 5))
}

func TestAscendingInsertHeight(t *testing.T) {
	t.Parallel()

	const count = 1024

	tree := testNewIntSet()
	for key := range count {
		insertKey(tree, key)
	}

	require.NoError(t, tree.Verify())
	assert.Equal(t, count, tree.Len())
	assert.LessOrEqual(t, float64(tree.Height()), 2*math.Log2(count+1))
	assert.Positive(t, tree.BlackHeight())
	assert.Equal(t, 0, valueOf(tree, tree.Leftmost()))
	assert.Equal(t, count-1, valueOf(tree, tree.Rightmost()))
}

func TestRemoveLeftmostRightmost(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	for key := range 32 {
		insertKey(tree, key)
	}

	for low, high := 0, 31; low < high; low, high = low+1, high-1 {
		require.True(t, removeKey(tree, low))
		require.True(t, removeKey(tree, high))
		require.NoError(t, tree.Verify())

		if tree.Len() > 0 {
			assert.Equal(t, low+1, valueOf(tree, tree.Leftmost()))
			assert.Equal(t, high-1, valueOf(tree, tree.Rightmost()))
		}
	}

	assert.Equal(t, 0, tree.Len())
	assert.Equal(t, Nil, tree.Leftmost())
	assert.Equal(t, Nil, tree.Rightmost())
}

func TestInsertRemoveRoundTrip(t *testing.T) {
	t.Parallel()

	const count = 2000

	rng := rand.New(rand.NewSource(1))
	tree := testNewIntSet()

	for _, key := range rng.Perm(count) {
		insertKey(tree, key)
	}

	require.NoError(t, tree.Verify())

	for step, key := range rng.Perm(count) {
		require.True(t, removeKey(tree, key))

		if step%97 == 0 {
			require.NoError(t, tree.Verify())
		}
	}

	require.NoError(t, tree.Verify())
	assert.Equal(t, 0, tree.Len())
	assert.Equal(t, Nil, tree.Root())
	assert.Equal(t, 0, tree.Allocator().Used())
}

// oracle keeps the same set as a sorted slice.
type oracle struct {
	data []int
}

func (o *oracle) Insert(key int) bool {
	idx, found := slices.BinarySearch(o.data, key)
	if found {
		return false
	}

	o.data = slices.Insert(o.data, idx, key)

	return true
}

func (o *oracle) Delete(key int) bool {
	idx, found := slices.BinarySearch(o.data, key)
	if !found {
		return false
	}

	o.data = slices.Delete(o.data, idx, idx+1)

	return true
}

func (o *oracle) Floor(key int) (int, bool) {
	idx, found := slices.BinarySearch(o.data, key)
	if found {
		return key, true
	}

	if idx == 0 {
		return 0, false
	}

	return o.data[idx-1], true
}

func (o *oracle) Ceil(key int) (int, bool) {
	idx, _ := slices.BinarySearch(o.data, key)
	if idx == len(o.data) {
		return 0, false
	}

	return o.data[idx], true
}

func compareRef(tb testing.TB, tree *intTree, expected int, ok bool, ref Ref) {
	tb.Helper()

	if !ok {
		assert.Equal(tb, Nil, ref)

		return
	}

	require.NotEqual(tb, Nil, ref)
	assert.Equal(tb, expected, valueOf(tree, ref))
}

func TestRandomized(t *testing.T) {
	t.Parallel()

	const numKeys = 1000

	orc := &oracle{}
	tree := testNewIntSet()
	rng := rand.New(rand.NewSource(0))

	for step := range 10000 {
		op := rng.Intn(100)
		key := rng.Intn(numKeys)

		switch {
		case op < 50:
			assert.Equal(t, orc.Insert(key), insertKey(tree, key) != Nil)
		case op < 90:
			assert.Equal(t, orc.Delete(key), removeKey(tree, key))
		case op < 95:
			expected, ok := orc.Floor(key)
			compareRef(t, tree, expected, ok, tree.Floor(key))
		default:
			expected, ok := orc.Ceil(key)
			compareRef(t, tree, expected, ok, tree.Ceil(key))
		}

		if step%500 == 0 {
			require.NoError(t, tree.Verify())
			require.Equal(t, orc.data, treeKeys(tree))
		}
	}

	require.NoError(t, tree.Verify())
	assert.Equal(t, orc.data, treeKeys(tree))
	assert.Equal(t, len(orc.data), tree.Allocator().Used())
}

func TestRemoveOnlyNode(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	for range 3 {
		insertKey(tree, 1)
		require.True(t, removeKey(tree, 1))

		require.NoError(t, tree.Verify())
		assert.Equal(t, 0, tree.Len())
		assert.Equal(t, Nil, tree.Root())
		assert.Equal(t, Nil, tree.Leftmost())
		assert.Equal(t, Nil, tree.Rightmost())
	}
}

// Every mutation is followed by a full check, and the tree is drained to empty
// between rounds.
func TestRandomizedVerifyEveryMutation(t *testing.T) {
	t.Parallel()

	const numKeys = 64

	tree := testNewIntSet()
	rng := rand.New(rand.NewSource(7))

	check := func(orc *oracle) {
		t.Helper()

		require.NoError(t, tree.Verify())
		require.Equal(t, orc.data, treeKeys(tree))

		if len(orc.data) == 0 {
			require.Equal(t, Nil, tree.Leftmost())
			require.Equal(t, Nil, tree.Rightmost())

			return
		}

		require.Equal(t, orc.data[0], valueOf(tree, tree.Leftmost()))
		require.Equal(t, orc.data[len(orc.data)-1], valueOf(tree, tree.Rightmost()))
	}

	for range 20 {
		orc := &oracle{}

		for range 200 {
			key := rng.Intn(numKeys)

			if rng.Intn(3) == 0 {
				require.Equal(t, orc.Delete(key), removeKey(tree, key))
			} else {
				require.Equal(t, orc.Insert(key), insertKey(tree, key) != Nil)
			}

			check(orc)
		}

		for _, key := range rng.Perm(numKeys) {
			require.Equal(t, orc.Delete(key), removeKey(tree, key))
			check(orc)
		}

		require.Equal(t, 0, tree.Len())
		require.Equal(t, 0, tree.Allocator().Used())
	}
}

func TestReplace(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	refs := map[int]Ref{}

	for _, key := range []int{20, 10, 30, 5, 15} {
		refs[key] = insertKey(tree, key)
	}

	for _, key := range []int{5, 20, 30} {
		cursor := tree.Find(key)
		old := cursor.Ref()
		generation := tree.Generation()
		fresh := tree.Allocator().Alloc(key)

		tree.Replace(fresh, cursor)
		require.NoError(t, tree.Verify())
		assert.Greater(t, tree.Generation(), generation)
		assert.Equal(t, fresh, tree.Find(key).Ref())
		assert.Equal(t, links{}, tree.alloc.storage[old].links)

		tree.Allocator().Free(old)
		refs[key] = fresh
	}

	assert.Equal(t, refs[5], tree.Leftmost())
	assert.Equal(t, refs[30], tree.Rightmost())
	assert.Equal(t, refs[20], tree.Root())
	assert.Equal(t, []int{5, 10, 15, 20, 30}, treeKeys(tree))
}

func TestReplaceSameNode(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	ref := insertKey(tree, 1)
	generation := tree.Generation()

	tree.Replace(ref, tree.Find(1))
	assert.Equal(t, generation+1, tree.Generation())
	assert.Equal(t, ref, tree.Root())
	require.NoError(t, tree.Verify())
}

func TestContractViolations(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	insertKey(tree, 1)
	insertKey(tree, 3)

	alloc := tree.Allocator()
	ref := alloc.Alloc(2)

	assert.PanicsWithValue(t, ErrCursorFound, func() { tree.Insert(ref, tree.Find(1)) })
	assert.PanicsWithValue(t, ErrCursorNotFound, func() { tree.Replace(ref, tree.Find(2)) })
	assert.PanicsWithValue(t, ErrCursorNotFound, func() { tree.Remove(tree.Find(2)) })
	assert.PanicsWithValue(t, ErrNilRef, func() { tree.Insert(Nil, tree.Find(2)) })
	assert.PanicsWithValue(t, ErrNilRef, func() { tree.GetCursor(Nil) })

	stale := tree.Find(2)
	insertKey(tree, 4)
	assert.PanicsWithValue(t, ErrStaleCursor, func() { tree.Insert(ref, stale) })
	assert.PanicsWithValue(t, ErrStaleCursor, func() { tree.Next(stale) })
	assert.PanicsWithValue(t, ErrStaleCursor, func() { tree.Insert(ref, Cursor{}) })
	require.NoError(t, tree.Verify())
}

func TestGenerationCheckDisabled(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet(WithGenerationCheck(false))
	insertKey(tree, 2)

	low := tree.Find(1)
	high := tree.Find(3)

	tree.Insert(tree.Allocator().Alloc(1), low)
	// high is stale, yet its slot is still the empty right child of 2.
	tree.Insert(tree.Allocator().Alloc(3), high)

	require.NoError(t, tree.Verify())
	assert.Equal(t, []int{1, 2, 3}, treeKeys(tree))
	assert.Equal(t, 3, valueOf(tree, tree.Rightmost()))
}

func TestGenerationBumps(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	generation := tree.Generation()

	insertKey(tree, 1)
	assert.Equal(t, generation+1, tree.Generation())

	tree.Find(1)
	assert.Equal(t, generation+1, tree.Generation(), "lookups do not mutate")

	removeKey(tree, 1)
	assert.Equal(t, generation+2, tree.Generation())
}

func TestClear(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	for key := range 100 {
		insertKey(tree, key)
	}

	released := 0
	tree.Clear(func(ref Ref) {
		released++

		tree.Allocator().Free(ref)
	})

	assert.Equal(t, 100, released)
	assert.Equal(t, 0, tree.Len())
	assert.Equal(t, 0, tree.Allocator().Used())
	require.NoError(t, tree.Verify())

	insertKey(tree, 7)
	assert.Equal(t, []int{7}, treeKeys(tree))
}

func TestComparatorFuncs(t *testing.T) {
	t.Parallel()

	type pair struct {
		key   string
		value int
	}

	comparator := ComparatorFuncs[string, pair]{
		Key: func(key string, value *pair) int {
			return strings.Compare(key, value.key)
		},
		Values: func(a, b *pair) int {
			return strings.Compare(a.key, b.key)
		},
	}

	tree := New(NewAllocator[pair](4), comparator)
	for idx, key := range []string{"delta", "alpha", "charlie", "bravo"} {
		cursor := tree.Find(key)
		tree.Insert(tree.Allocator().Alloc(pair{key: key, value: idx}), cursor)
	}

	require.NoError(t, tree.Verify())
	assert.Equal(t, "alpha", tree.Value(tree.Leftmost()).key)
	assert.Equal(t, 2, tree.Value(tree.Find("charlie").Ref()).value)
}
