package store

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Entry is a cached value and the time it was written.
type Entry[T any] struct {
	Data      T
	Timestamp time.Time
}

// FreshAt reports whether the entry is younger than ttl at now. A ttl of 0
// means the entry is never fresh.
func (e Entry[T]) FreshAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.Timestamp) < ttl
}

// MemoryStore is a concurrency-safe keyed cache holding the last successful
// result per key. Writes to one key never touch another key's entry except
// through the retention limits.
type MemoryStore[T any] struct {
	mu    sync.RWMutex
	clock clockwork.Clock

	data map[string]Entry[T]

	// retention configuration
	maxEntries int           // oldest entry evicted beyond this
	maxAge     time.Duration // entries older than this dropped on write
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxEntries or maxAge is <= 0, it is treated as unlimited. A nil clock
// uses the real clock.
func NewMemoryStore[T any](clock clockwork.Clock, maxEntries int, maxAge time.Duration) *MemoryStore[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore[T]{
		clock:      clock,
		data:       make(map[string]Entry[T]),
		maxEntries: maxEntries,
		maxAge:     maxAge,
	}
}

// Clock returns the clock used to stamp entries.
func (s *MemoryStore[T]) Clock() clockwork.Clock {
	return s.clock
}

// Get returns the entry stored under key, fresh or not.
func (s *MemoryStore[T]) Get(key string) (Entry[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	return e, ok
}

// Put stores data under key stamped with the current time, overwriting any
// previous entry, and enforces retention.
func (s *MemoryStore[T]) Put(key string, data T) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = Entry[T]{Data: data, Timestamp: now}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := now.Add(-s.maxAge)
		for k, e := range s.data {
			if e.Timestamp.Before(cutoff) {
				delete(s.data, k)
			}
		}
	}

	// Enforce retention by count.
	for s.maxEntries > 0 && len(s.data) > s.maxEntries {
		s.evictOldest(key)
	}
}

// evictOldest removes the oldest entry other than keep.
func (s *MemoryStore[T]) evictOldest(keep string) {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for k, e := range s.data {
		if k == keep {
			continue
		}
		if !found || e.Timestamp.Before(oldest) {
			oldestKey, oldest, found = k, e.Timestamp, true
		}
	}
	if !found {
		return
	}
	delete(s.data, oldestKey)
}

// Len returns the number of cached entries.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
