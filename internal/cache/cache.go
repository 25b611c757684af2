// Package cache provides small named TTL stores for read-mostly reference
// data (carrier configs, scoring configs, inventory, locations). Entries
// expire lazily on read; callers treat every miss as "load from source".
package cache

import (
	"sort"
	"sync"
	"time"
)

type entry struct {
	value    any
	storedAt time.Time
}

// Store is one named TTL cache. Safe for concurrent use.
type Store struct {
	name string
	ttl  time.Duration

	mu      sync.RWMutex
	entries map[string]entry

	// test hook
	now func() time.Time
}

// NewStore creates a standalone store. A non-positive TTL disables
// expiry (entries live until deleted).
func NewStore(name string, ttl time.Duration) *Store {
	return &Store{
		name:    name,
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached value if present and fresh.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.ttl > 0 && s.now().Sub(e.storedAt) >= s.ttl {
		s.mu.Lock()
		// Re-check under the write lock, a fresh Set may have raced the expiry.
		if cur, still := s.entries[key]; still && cur.storedAt.Equal(e.storedAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores a value, resetting its TTL clock.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	s.entries[key] = entry{value: value, storedAt: s.now()}
	s.mu.Unlock()
}

// Delete removes one entry.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Purge removes every entry.
func (s *Store) Purge() {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()
}

// Len returns the current entry count, expired entries included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Name returns the store's registry name.
func (s *Store) Name() string { return s.name }

var (
	regMu    sync.RWMutex
	registry = make(map[string]*Store)
)

// Register creates (or replaces) a named store in the process registry.
func Register(name string, ttl time.Duration) *Store {
	s := NewStore(name, ttl)
	regMu.Lock()
	registry[name] = s
	regMu.Unlock()
	return s
}

// Named returns a registered store, or nil when the name is unknown.
func Named(name string) *Store {
	regMu.RLock()
	defer regMu.RUnlock()
	return registry[name]
}

// Sizes reports entry counts per registered store, sorted by name.
func Sizes() []StoreSize {
	regMu.RLock()
	stores := make([]*Store, 0, len(registry))
	for _, s := range registry {
		stores = append(stores, s)
	}
	regMu.RUnlock()

	out := make([]StoreSize, 0, len(stores))
	for _, s := range stores {
		out = append(out, StoreSize{Name: s.name, Entries: s.Len(), TTL: s.ttl.String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StoreSize is one row of the cache diagnostic listing.
type StoreSize struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
	TTL     string `json:"ttl"`
}

// PurgeAll clears every registered store.
func PurgeAll() {
	regMu.RLock()
	defer regMu.RUnlock()
	for _, s := range registry {
		s.Purge()
	}
}
