// Package memcache is the process-local hot tier: a small bounded LRU that is
// safe for concurrent use.
package memcache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache maps keys to values, evicting the least recently used entry once
// capacity is reached.
type Cache[K comparable, V any] struct {
	lru *lru.Cache[K, V]
}

// New builds a cache holding at most capacity entries.
func New[K comparable, V any](capacity int) (*Cache[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("memcache capacity must be positive, got %d", capacity)
	}
	inner, err := lru.New[K, V](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating lru: %w", err)
	}
	return &Cache[K, V]{lru: inner}, nil
}

// Get returns the value for key and marks it recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.lru.Get(key)
}

// Add inserts or replaces key and reports whether an older entry was evicted.
func (c *Cache[K, V]) Add(key K, value V) bool {
	return c.lru.Add(key, value)
}

// Remove drops key if present.
func (c *Cache[K, V]) Remove(key K) bool {
	return c.lru.Remove(key)
}

// Purge empties the cache.
func (c *Cache[K, V]) Purge() {
	c.lru.Purge()
}

// Len is the number of entries currently held.
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}
