package rag

import (
	"sync"
	"time"
)

// EmbeddingCache stores query embeddings keyed by exact text equality.
// Implementations must be safe for concurrent use; a benign race that
// recomputes the same vector twice is acceptable, losing entries is not.
type EmbeddingCache interface {
	Get(text string) ([]float32, bool)
	Set(text string, vector []float32)
}

type cacheEntry struct {
	vector    []float32
	createdAt time.Time
}

// TTLCache is an unbounded in-memory EmbeddingCache with lazy TTL eviction.
// Expired entries are removed on the next lookup, never proactively swept.
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewTTLCache creates a cache whose entries expire after ttl.
// A ttl of zero or less disables expiry.
func NewTTLCache(ttl time.Duration) *TTLCache {
	return &TTLCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached vector for text if present and fresh.
// An expired entry is deleted and reported as a miss.
func (c *TTLCache) Get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[text]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(entry.createdAt) >= c.ttl {
		delete(c.entries, text)
		return nil, false
	}
	return entry.vector, true
}

// Set stores vector for text, overwriting any previous entry.
func (c *TTLCache) Set(text string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[text] = cacheEntry{vector: vector, createdAt: c.now()}
}

// Len reports the number of entries, including any not yet lazily evicted.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
