package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultSize bounds the number of cached responses held in memory.
const DefaultSize = 256

// MemoryStore is an in-process Store whose entries expire after a fixed TTL.
// It is safe for concurrent use.
type MemoryStore struct {
	lru *expirable.LRU[string, []byte]
	ttl time.Duration
}

// NewMemoryStore creates a MemoryStore holding at most size entries, each
// readable for ttl after it was stored. A non-positive ttl disables caching.
func NewMemoryStore(size int, ttl time.Duration) Store {
	if ttl <= 0 {
		return Disabled{}
	}
	if size <= 0 {
		size = DefaultSize
	}
	return &MemoryStore{
		lru: expirable.NewLRU[string, []byte](size, nil, ttl),
		ttl: ttl,
	}
}

// Get returns the payload stored under key if it is still fresh.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	return s.lru.Get(key)
}

// Set stores a payload under key.
func (s *MemoryStore) Set(key string, payload []byte) {
	s.lru.Add(key, payload)
}

// Purge drops every entry.
func (s *MemoryStore) Purge() {
	s.lru.Purge()
}

// Len returns the number of entries currently held, expired ones included
// until the background sweep removes them.
func (s *MemoryStore) Len() int {
	return s.lru.Len()
}

// TTL returns the configured time to live.
func (s *MemoryStore) TTL() time.Duration {
	return s.ttl
}
