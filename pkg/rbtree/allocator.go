package rbtree

import (
	"math"
	"slices"
	"sync"
)

// Ref addresses a slot in an Allocator. The zero Ref is Nil and never holds a value.
type Ref uint32

// Nil is the absent reference.
const Nil Ref = 0

// Color of a tree node.
type Color bool

// Node colors. A freshly allocated node is Red.
const (
	Red   Color = false
	Black Color = true
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}

	return "red"
}

// direction selects a child slot. left and right index links.child.
type direction uint8

const (
	left direction = iota
	right
)

func (d direction) opposite() direction {
	return d ^ 1
}

// links are the tree bookkeeping embedded in every slot.
type links struct {
	parent Ref
	child  [2]Ref
	color  Color
}

type slot[V any] struct {
	value V
	links links
	inUse bool
}

// Hibernated columns.
const (
	columnParent = iota
	columnLeft
	columnRight
	columnFlags
	linkColumns
)

// Bits of the flags column.
const (
	flagBlack uint32 = 1 << iota
	flagInUse
)

// growCapacityNumerator and growCapacityDenominator define the 3/2 growth factor for storage.
const (
	growCapacityNumerator   = 3
	growCapacityDenominator = 2
)

// Allocator owns the storage of tree nodes. Values live in a contiguous slice and are
// addressed by Ref; trees built on top only rewire the links and never allocate.
type Allocator[V any] struct {
	storage []slot[V]
	free    []Ref

	hibernated        bool
	packedLinks       [linkColumns][]byte
	packedFree        []byte
	parkedValues      []V
	hibernatedLen     int
	hibernatedFreeLen int

	// HibernationThreshold is the minimum number of slots for Hibernate to compress anything.
	HibernationThreshold int
}

// NewAllocator creates an allocator with room for capacity values.
func NewAllocator[V any](capacity int) *Allocator[V] {
	storage := make([]slot[V], 1, capacity+1)

	return &Allocator[V]{storage: storage}
}

// Size returns the number of slots including the reserved Nil slot.
func (allocator *Allocator[V]) Size() int {
	if allocator.hibernated {
		return 0
	}

	return len(allocator.storage)
}

// Used returns the number of live values.
func (allocator *Allocator[V]) Used() int {
	allocator.mustBeAwake()

	return len(allocator.storage) - 1 - len(allocator.free)
}

// Alloc stores value in a fresh slot and returns its reference.
// The slot is not linked into any tree.
func (allocator *Allocator[V]) Alloc(value V) Ref {
	allocator.mustBeAwake()

	var ref Ref

	if n := len(allocator.free); n > 0 {
		ref = allocator.free[n-1]
		allocator.free = allocator.free[:n-1]
	} else {
		if len(allocator.storage) >= math.MaxUint32 {
			panic("the size of my Allocator is limited by 4294967295 nodes")
		}

		if len(allocator.storage) == cap(allocator.storage) {
			grown := make([]slot[V], len(allocator.storage),
				max(cap(allocator.storage)*growCapacityNumerator/growCapacityDenominator, len(allocator.storage)+1))
			copy(grown, allocator.storage)
			allocator.storage = grown
		}

		ref = mustRef(len(allocator.storage))
		allocator.storage = append(allocator.storage, slot[V]{})
	}

	allocator.storage[ref] = slot[V]{value: value, inUse: true}

	return ref
}

// Free releases the slot. The caller must have removed it from its tree first.
func (allocator *Allocator[V]) Free(ref Ref) {
	allocator.mustBeAwake()
	allocator.mustBeLive(ref)

	allocator.storage[ref] = slot[V]{}
	allocator.free = append(allocator.free, ref)
}

// Value returns a pointer to the value stored at ref.
// The pointer is invalidated by the next Alloc.
func (allocator *Allocator[V]) Value(ref Ref) *V {
	allocator.mustBeAwake()
	allocator.mustBeLive(ref)

	return &allocator.storage[ref].value
}

// Live reports whether ref addresses an allocated slot.
func (allocator *Allocator[V]) Live(ref Ref) bool {
	allocator.mustBeAwake()

	return ref != Nil && int(ref) < len(allocator.storage) && allocator.storage[ref].inUse
}

// Parent returns the parent of ref in its tree, or Nil for a root.
func (allocator *Allocator[V]) Parent(ref Ref) Ref {
	allocator.mustBeAwake()

	return allocator.storage[ref].links.parent
}

// Left returns the left child of ref.
func (allocator *Allocator[V]) Left(ref Ref) Ref {
	allocator.mustBeAwake()

	return allocator.storage[ref].links.child[left]
}

// Right returns the right child of ref.
func (allocator *Allocator[V]) Right(ref Ref) Ref {
	allocator.mustBeAwake()

	return allocator.storage[ref].links.child[right]
}

// ColorOf returns the color of ref. Nil is Black.
func (allocator *Allocator[V]) ColorOf(ref Ref) Color {
	allocator.mustBeAwake()

	return allocator.storage[ref].links.color || ref == Nil
}

// IsRed reports whether ref is a red node.
func (allocator *Allocator[V]) IsRed(ref Ref) bool {
	return allocator.ColorOf(ref) == Red
}

// IsBlack reports whether ref is black. Nil is black.
func (allocator *Allocator[V]) IsBlack(ref Ref) bool {
	return allocator.ColorOf(ref) == Black
}

// Successor returns the in-order next node of ref, or Nil when ref is the maximum.
func (allocator *Allocator[V]) Successor(ref Ref) Ref {
	allocator.mustBeAwake()

	return allocator.step(ref, right)
}

// Predecessor returns the in-order previous node of ref, or Nil when ref is the minimum.
func (allocator *Allocator[V]) Predecessor(ref Ref) Ref {
	allocator.mustBeAwake()

	return allocator.step(ref, left)
}

// step moves one position in-order towards d.
func (allocator *Allocator[V]) step(ref Ref, d direction) Ref {
	s := allocator.storage
	doAssert(ref != Nil)

	if next := s[ref].links.child[d]; next != Nil {
		return allocator.extreme(next, d.opposite())
	}

	for parent := s[ref].links.parent; parent != Nil; parent = s[ref].links.parent {
		if s[parent].links.child[d] != ref {
			return parent
		}

		ref = parent
	}

	return Nil
}

// extreme descends from ref towards d as far as possible.
func (allocator *Allocator[V]) extreme(ref Ref, d direction) Ref {
	s := allocator.storage

	for s[ref].links.child[d] != Nil {
		ref = s[ref].links.child[d]
	}

	return ref
}

// Hibernate compresses the link columns and parks the values.
// A hibernated allocator panics on every access until Boot.
func (allocator *Allocator[V]) Hibernate() {
	if allocator.hibernated {
		panic("cannot hibernate an already hibernated Allocator")
	}

	if len(allocator.storage) < allocator.HibernationThreshold {
		return
	}

	n := len(allocator.storage)
	columns := [linkColumns][]uint32{}

	for idx := range columns {
		columns[idx] = make([]uint32, n)
	}

	values := make([]V, n)

	// Deinterleaving gives LZ4 runs of similar integers.
	for idx, sl := range allocator.storage {
		values[idx] = sl.value
		columns[columnParent][idx] = uint32(sl.links.parent)
		columns[columnLeft][idx] = uint32(sl.links.child[left])
		columns[columnRight][idx] = uint32(sl.links.child[right])

		if sl.links.color == Black {
			columns[columnFlags][idx] |= flagBlack
		}

		if sl.inUse {
			columns[columnFlags][idx] |= flagInUse
		}
	}

	free := make([]uint32, len(allocator.free))
	for idx, ref := range allocator.free {
		free[idx] = uint32(ref)
	}

	slices.Sort(free)
	DeltaEncodeUInt32Slice(free)

	wg := &sync.WaitGroup{}
	wg.Add(len(columns) + 1)

	for idx, column := range columns {
		go func() {
			defer wg.Done()

			allocator.packedLinks[idx] = CompressUInt32Slice(column)
		}()
	}

	go func() {
		defer wg.Done()

		allocator.packedFree = CompressUInt32Slice(free)
	}()

	wg.Wait()

	allocator.hibernated = true
	allocator.hibernatedLen = n
	allocator.hibernatedFreeLen = len(free)
	allocator.parkedValues = values
	allocator.storage = nil
	allocator.free = nil
}

// Boot restores a hibernated allocator. It is a no-op on an awake allocator.
func (allocator *Allocator[V]) Boot() {
	if !allocator.hibernated {
		return
	}

	n := allocator.hibernatedLen
	columns := [linkColumns][]uint32{}
	free := make([]uint32, allocator.hibernatedFreeLen)
	errs := make([]error, linkColumns+1)

	wg := &sync.WaitGroup{}
	wg.Add(len(columns) + 1)

	for idx := range columns {
		columns[idx] = make([]uint32, n)

		go func() {
			defer wg.Done()

			errs[idx] = DecompressUInt32Slice(allocator.packedLinks[idx], columns[idx])
		}()
	}

	go func() {
		defer wg.Done()

		errs[linkColumns] = DecompressUInt32Slice(allocator.packedFree, free)
	}()

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			panic(err)
		}
	}

	DeltaDecodeUInt32Slice(free)

	storage := make([]slot[V], n)
	for idx := range storage {
		flags := columns[columnFlags][idx]
		storage[idx] = slot[V]{
			value: allocator.parkedValues[idx],
			links: links{
				parent: Ref(columns[columnParent][idx]),
				child:  [2]Ref{Ref(columns[columnLeft][idx]), Ref(columns[columnRight][idx])},
				color:  Color(flags&flagBlack != 0),
			},
			inUse: flags&flagInUse != 0,
		}
	}

	allocator.storage = storage
	allocator.free = make([]Ref, len(free))

	for idx, ref := range free {
		allocator.free[idx] = Ref(ref)
	}

	allocator.hibernated = false
	allocator.packedLinks = [linkColumns][]byte{}
	allocator.packedFree = nil
	allocator.parkedValues = nil
	allocator.hibernatedLen = 0
	allocator.hibernatedFreeLen = 0
}

// Hibernated reports whether the allocator is compressed.
func (allocator *Allocator[V]) Hibernated() bool {
	return allocator.hibernated
}

// PackedSize returns the number of bytes held by the compressed link columns.
func (allocator *Allocator[V]) PackedSize() int {
	total := len(allocator.packedFree)
	for _, column := range allocator.packedLinks {
		total += len(column)
	}

	return total
}

func (allocator *Allocator[V]) mustBeAwake() {
	if allocator.hibernated {
		panic("hibernated allocators cannot be used")
	}
}

func (allocator *Allocator[V]) mustBeLive(ref Ref) {
	if ref == Nil {
		panic(ErrNilRef)
	}

	doAssert(int(ref) < len(allocator.storage) && allocator.storage[ref].inUse)
}

func mustRef(idx int) Ref {
	doAssert(idx >= 0 && idx <= math.MaxUint32)

	return Ref(idx)
}

func doAssert(condition bool) {
	if !condition {
		panic("rbtree internal assertion failed")
	}
}
