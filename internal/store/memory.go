package store

import (
	"sort"
	"sync"
)

// Memory is an in-memory Collection. Insertion order is preserved by Find
// and All so lookups over derived records are deterministic.
type Memory[T any] struct {
	mu   sync.RWMutex
	ids  []string
	docs map[string]T
}

// NewMemory creates an empty in-memory collection.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{
		docs: make(map[string]T),
	}
}

// Insert stores a document under id. Inserting an existing id replaces the
// document in place without disturbing insertion order.
func (m *Memory[T]) Insert(id string, doc T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[id]; !exists {
		m.ids = append(m.ids, id)
	}
	m.docs[id] = doc
}

// Update replaces the document stored under id, failing with ErrNotFound
// when the identity does not exist.
func (m *Memory[T]) Update(id string, doc T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[id]; !exists {
		return ErrNotFound
	}
	m.docs[id] = doc
	return nil
}

// Get returns the document stored under id.
func (m *Memory[T]) Get(id string) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	return doc, ok
}

// Find returns all documents matching pred in insertion order.
func (m *Memory[T]) Find(pred func(T) bool) []T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []T
	for _, id := range m.ids {
		if doc := m.docs[id]; pred(doc) {
			out = append(out, doc)
		}
	}
	return out
}

// FindFirst returns the first document matching pred, with its id.
func (m *Memory[T]) FindFirst(pred func(T) bool) (string, T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.ids {
		if doc := m.docs[id]; pred(doc) {
			return id, doc, true
		}
	}
	var zero T
	return "", zero, false
}

// FindSorted returns all documents matching pred, ordered by less.
func (m *Memory[T]) FindSorted(pred func(T) bool, less func(a, b T) bool) []T {
	out := m.Find(pred)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// All returns every document in insertion order.
func (m *Memory[T]) All() []T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]T, 0, len(m.ids))
	for _, id := range m.ids {
		out = append(out, m.docs[id])
	}
	return out
}

// Len returns the number of stored documents.
func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Truncate removes every document and returns how many were dropped.
func (m *Memory[T]) Truncate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.docs)
	m.ids = nil
	m.docs = make(map[string]T)
	return n
}
