package cache

import "errors"

// ErrUnknownStore is returned by New for an unsupported store name.
var ErrUnknownStore = errors.New("unknown cache store")

// Cache is a concurrent key/value store. Implementations must be safe for
// use by any number of goroutines and never evict on their own.
type Cache[K comparable, V any] interface {
	// Get returns the value for key and true if present.
	Get(key K) (V, bool)

	// Set stores the value for key, replacing any previous value.
	Set(key K, value V)

	// Delete removes the key from the cache.
	Delete(key K)

	// Len returns the number of items currently stored.
	Len() int

	// GetAll returns a copy of all the cache contents.
	GetAll() map[K]V

	// Keys returns the stored keys in no particular order.
	Keys() []K

	// Close releases resources held by the store.
	Close() error
}
