// Package cache holds the in-process read caches of the ledger.
package cache

import "time"

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)

	// Size returns the current number of items in the cache
	Size() int
}

// Nop never stores anything. It stands in when caching is disabled.
type Nop[T any] struct{}

func (Nop[T]) Get(string) (T, bool) {
	var zero T
	return zero, false
}

func (Nop[T]) Set(string, T) {}
func (Nop[T]) Delete(string) {}
func (Nop[T]) Size() int     { return 0 }

// New returns an LRU cache, or Nop when maxSize is not positive.
func New[T any](maxSize int, ttl time.Duration) Cache[T] {
	if maxSize <= 0 {
		return Nop[T]{}
	}
	return NewLRUCache[T](maxSize, ttl)
}
