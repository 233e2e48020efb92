package cache

import (
	"bytes"
	"hash/maphash"
	"sync"
)

const defaultShards = 32

// ShardedOption is a functional option for building a Sharded cache
type ShardedOption[K comparable, V any] func(*Sharded[K, V])

// shard is one independently locked bucket of the map
type shard[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// Sharded is an unbounded in-memory cache split into lock-protected shards,
// so operations on keys in different shards never wait on each other.
type Sharded[K comparable, V any] struct {
	shards []*shard[K, V]
	mask   uint64
	seed   maphash.Seed
	hasher func(seed maphash.Seed, key K) uint64
	cloner func(V) V
}

// WithShards sets the number of shards, rounded up to a power of two.
func WithShards[K comparable, V any](n int) ShardedOption[K, V] {
	return func(c *Sharded[K, V]) {
		if n <= 0 {
			panic("shard count must be > 0")
		}
		c.initShards(n)
	}
}

// WithHasher replaces the default key hash. Mostly useful in tests to force
// keys into the same shard.
func WithHasher[K comparable, V any](hasher func(seed maphash.Seed, key K) uint64) ShardedOption[K, V] {
	return func(c *Sharded[K, V]) {
		c.hasher = hasher
	}
}

// WithCloner makes Set store cloner(value) instead of value, so callers may
// reuse their buffers after Set returns.
func WithCloner[K comparable, V any](cloner func(V) V) ShardedOption[K, V] {
	return func(c *Sharded[K, V]) {
		c.cloner = cloner
	}
}

// NewSharded creates an empty sharded cache.
func NewSharded[K comparable, V any](opts ...ShardedOption[K, V]) *Sharded[K, V] {
	c := &Sharded[K, V]{
		seed:   maphash.MakeSeed(),
		hasher: maphash.Comparable[K],
	}
	c.initShards(defaultShards)

	for _, o := range opts {
		o(c)
	}
	return c
}

// NewBytes creates the string to body store used by the proxy. Stored bodies
// are copied on Set.
func NewBytes(opts ...ShardedOption[string, []byte]) *Sharded[string, []byte] {
	opts = append([]ShardedOption[string, []byte]{WithCloner[string](bytes.Clone)}, opts...)
	return NewSharded(opts...)
}

func (c *Sharded[K, V]) initShards(n int) {
	size := 1
	for size < n {
		size <<= 1
	}
	c.shards = make([]*shard[K, V], size)
	for i := range c.shards {
		c.shards[i] = &shard[K, V]{items: make(map[K]V)}
	}
	c.mask = uint64(size - 1)
}

func (c *Sharded[K, V]) shardFor(key K) *shard[K, V] {
	return c.shards[c.hasher(c.seed, key)&c.mask]
}

// ShardCount returns the number of shards in use.
func (c *Sharded[K, V]) ShardCount() int {
	return len(c.shards)
}

// Get returns the value for key and true if present.
// Uses read lock on the key's shard only
func (c *Sharded[K, V]) Get(key K) (V, bool) {
	s := c.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[key]
	return value, ok
}

// Set stores value for key. Last writer wins.
func (c *Sharded[K, V]) Set(key K, value V) {
	if c.cloner != nil {
		value = c.cloner(value)
	}
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}

// Delete removes the key from its shard.
func (c *Sharded[K, V]) Delete(key K) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

// Len returns number of stored items. Shards are locked one at a time, so
// the result is only a snapshot under concurrent writes.
func (c *Sharded[K, V]) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

// GetAll returns a shallow copy of the current contents.
func (c *Sharded[K, V]) GetAll() map[K]V {
	out := make(map[K]V)
	for _, s := range c.shards {
		s.mu.RLock()
		for k, v := range s.items {
			out[k] = v
		}
		s.mu.RUnlock()
	}
	return out
}

// Keys returns every stored key.
func (c *Sharded[K, V]) Keys() []K {
	var keys []K
	for _, s := range c.shards {
		s.mu.RLock()
		for k := range s.items {
			keys = append(keys, k)
		}
		s.mu.RUnlock()
	}
	return keys
}

// Close is a no-op for the in-memory store.
func (c *Sharded[K, V]) Close() error {
	return nil
}
