// Package cache provides a small TTL cache for admin booking queries.
// Staleness is decided lazily on read; writes to the bookings table
// clear the whole store rather than guessing which views were affected.
package cache

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultTTL bounds how long a cached query result is served.
const DefaultTTL = 60 * time.Second

type entry struct {
	data      any
	timestamp time.Time
}

// Store is a TTL cache keyed by query signature. State is owned by the
// instance; construct one per service and inject it.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates a cache store with the given TTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock overrides the store's clock. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Get returns the cached value for key if present and fresh.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if s.now().Sub(e.timestamp) >= s.ttl {
		delete(s.entries, key)
		return nil, false
	}
	return e.data, true
}

// Set stores value under key, stamped now.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{data: value, timestamp: s.now()}
}

// Clear removes a single entry.
func (s *Store) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// ClearAll empties the store. Called after any booking mutation:
// stats and every filtered view may be affected by a single write.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
}

// Len reports the number of entries, fresh or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Signature derives a deterministic cache key from a query's parameters.
// Parameters are serialized in sorted key order so logically identical
// queries always hit the same slot, and empty values are skipped so an
// unset filter and an absent one agree.
func Signature(scope string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(scope)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%s", k, params[k])
	}
	return b.String()
}
