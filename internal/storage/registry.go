package storage

import (
	"sort"
	"sync"
)

// Registry maps keys to live stores so collaborators that cannot hold a
// reference can look one up. It also holds an explicit "current" slot that
// an application sets at session start and clears at session end.
type Registry struct {
	mu      sync.Mutex
	stores  map[string]*Store
	current *Store
}

var defaultRegistry = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

// DefaultRegistry returns the process-wide registry stores join unless
// WithRegistry says otherwise
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Set registers s under key, replacing any previous entry
func (r *Registry) Set(key string, s *Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[key] = s
}

// Get returns the store registered under key
func (r *Registry) Get(key string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[key]
	return s, ok
}

// Clear removes the entry under key
func (r *Registry) Clear(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, key)
}

// Release removes key only while it still maps to s, and empties the current
// slot if it holds s
func (r *Registry) Release(key string, s *Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stores[key] == s {
		delete(r.stores, key)
	}
	if r.current == s {
		r.current = nil
	}
}

// Keys returns the registered keys in sorted order
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.stores))
	for k := range r.stores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCurrent makes s the current store
func (r *Registry) SetCurrent(s *Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = s
}

// Current returns the current store
func (r *Registry) Current() (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.current != nil
}

// ClearCurrent empties the current slot
func (r *Registry) ClearCurrent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nil
}
