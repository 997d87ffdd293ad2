// Package store provides the indexed document collections the derived
// reporting records live in.
package store

import "errors"

// ErrNotFound is returned by Update when no document has the given id.
var ErrNotFound = errors.New("store: document not found")

// Collection is an indexed document store: insert, update-by-identity and
// filtered lookup with an optional sort. Implementations must serialize
// conflicting writes so a read-modify-write against one identity never
// races another.
type Collection[T any] interface {
	Insert(id string, doc T)
	Update(id string, doc T) error
	Get(id string) (T, bool)
	Find(pred func(T) bool) []T
	FindFirst(pred func(T) bool) (id string, doc T, ok bool)
	FindSorted(pred func(T) bool, less func(a, b T) bool) []T
	All() []T
	Len() int
	Truncate() int
}
