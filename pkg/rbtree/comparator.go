package rbtree

import "cmp"

// Comparator orders the values of a tree and locates them by key.
// Both methods return a negative number, zero or a positive number like cmp.Compare.
type Comparator[K, V any] interface {
	// CompareKey compares a search key against a stored value.
	CompareKey(key K, value *V) int
	// Compare compares two stored values. Used by Verify.
	Compare(a, b *V) int
}

// ComparatorFuncs adapts a pair of functions to Comparator.
type ComparatorFuncs[K, V any] struct {
	Key    func(key K, value *V) int
	Values func(a, b *V) int
}

// CompareKey calls Key.
func (funcs ComparatorFuncs[K, V]) CompareKey(key K, value *V) int {
	return funcs.Key(key, value)
}

// Compare calls Values.
func (funcs ComparatorFuncs[K, V]) Compare(a, b *V) int {
	return funcs.Values(a, b)
}

type orderedBy[K cmp.Ordered, V any] struct {
	keyOf func(*V) K
}

// OrderedBy orders values by an extracted ordered key.
func OrderedBy[K cmp.Ordered, V any](keyOf func(*V) K) Comparator[K, V] {
	return orderedBy[K, V]{keyOf: keyOf}
}

func (o orderedBy[K, V]) CompareKey(key K, value *V) int {
	return cmp.Compare(key, o.keyOf(value))
}

func (o orderedBy[K, V]) Compare(a, b *V) int {
	return cmp.Compare(o.keyOf(a), o.keyOf(b))
}
