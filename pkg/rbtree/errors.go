package rbtree

import "errors"

// Contract violations. Operations panic with these values; Verify wraps ErrCorrupted.
var (
	// ErrStaleCursor is raised when a cursor is used after the tree was modified.
	ErrStaleCursor = errors.New("rbtree: stale cursor")
	// ErrCursorFound is raised when inserting at a cursor that already names a node.
	ErrCursorFound = errors.New("rbtree: cursor names an existing node")
	// ErrCursorNotFound is raised when replacing or removing at an empty slot.
	ErrCursorNotFound = errors.New("rbtree: cursor names an empty slot")
	// ErrNilRef is raised when Nil is passed where a node is required.
	ErrNilRef = errors.New("rbtree: nil reference")
	// ErrIteratorEnd is raised when an iterator past the end is dereferenced or advanced.
	ErrIteratorEnd = errors.New("rbtree: iterator at end")
	// ErrIteratorRemoved is raised when the current element of an iterator was just removed.
	ErrIteratorRemoved = errors.New("rbtree: iterator element removed")
	// ErrCorrupted is wrapped by every structural violation reported by Verify.
	ErrCorrupted = errors.New("rbtree: corrupted tree")
)
