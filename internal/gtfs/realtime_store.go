package gtfs

import (
	"sync"
	"time"
)

// CacheEntry is a decoded payload and the time it was fetched.
// Entries are never modified after being stored; a refresh stores a new one.
type CacheEntry[T any] struct {
	Payload   T
	FetchedAt time.Time
}

// FreshAt reports whether the entry is younger than ttl at now.
func (e *CacheEntry[T]) FreshAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}

// Store is a thread-safe map of cache entries.
//
// Every Clear bumps a generation counter. A refresh that started before a
// Clear stores its result with SetIfGeneration and is dropped, so cleared
// state is not repopulated by a fetch already in flight.
type Store[T any] struct {
	mu         sync.RWMutex
	entries    map[string]*CacheEntry[T]
	generation uint64
}

// NewStore creates and returns a new empty Store.
func NewStore[T any]() *Store[T] {
	return &Store[T]{entries: make(map[string]*CacheEntry[T])}
}

func (s *Store[T]) Get(key string) (*CacheEntry[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	return entry, ok
}

func (s *Store[T]) Set(key string, entry *CacheEntry[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
}

// SetIfGeneration stores entry only if no Clear happened since generation was read.
func (s *Store[T]) SetIfGeneration(key string, entry *CacheEntry[T], generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return false
	}
	s.entries[key] = entry
	return true
}

func (s *Store[T]) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Clear drops every entry.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*CacheEntry[T])
	s.generation++
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
