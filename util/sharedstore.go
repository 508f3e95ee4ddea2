package util

import (
	"sync"
)

// SharedStore caches expensive-to-load, read-only resources (term maps and
// the like) by file path. Every Get must be matched by a Release; a resource
// is evicted once its last holder releases it. The store is an explicit
// object handed to whoever needs it rather than process-global state.
type SharedStore struct {
	mu      sync.Mutex
	entries map[string]*storeEntry
}

type storeEntry struct {
	value interface{}
	refs  int
}

func NewSharedStore() *SharedStore {
	return &SharedStore{entries: make(map[string]*storeEntry)}
}

// Get returns the resource loaded from path, loading it with load on first
// use. The caller holds a reference until it calls Release(path).
func (s *SharedStore) Get(path string, load func(string) (interface{}, error)) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, exists := s.entries[path]; exists {
		entry.refs++
		return entry.value, nil
	}
	value, err := load(path)
	if err != nil {
		return nil, err
	}
	s.entries[path] = &storeEntry{value, 1}
	return value, nil
}

// Release drops one reference to the resource at path.
func (s *SharedStore) Release(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, exists := s.entries[path]
	if !exists {
		panic("released unknown shared store path: " + path)
	}
	entry.refs--
	if entry.refs == 0 {
		delete(s.entries, path)
	}
}

// Len returns the number of live resources, for tests.
func (s *SharedStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
