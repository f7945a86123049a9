package engine

import (
	"sync"

	"biascope/domain/core"
	"biascope/domain/distribution"
	"biascope/internal/profiling"
)

// CacheKey identifies one cached reference profile. ReferenceVersion
// changes whenever the reference population snapshot does, which is the
// invalidation rule: stale versions simply stop being looked up.
type CacheKey struct {
	Variable         core.VariableKey
	Binning          string
	ReferenceVersion string
}

// CachedReference stores the derived shared buckets together with the
// reference profile built on them.
type CachedReference struct {
	Shared  profiling.Shared
	Profile *distribution.Profile
}

// ReferenceCache avoids recomputing reference-population profiles across
// repeated cohort comparisons, the dominant cost of iterative refinement.
// Implementations must be safe for concurrent readers with occasional
// writers.
type ReferenceCache interface {
	Get(key CacheKey) (CachedReference, bool)
	Put(key CacheKey, entry CachedReference)
	Invalidate(key CacheKey)
}

// MemoryCache is the in-process ReferenceCache. Read-mostly: lookups take
// the read lock, and a key is only ever written by the evaluation that
// missed it.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[CacheKey]CachedReference
}

// NewMemoryCache creates an empty reference-profile cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[CacheKey]CachedReference)}
}

// Get returns the cached entry for a key.
func (c *MemoryCache) Get(key CacheKey) (CachedReference, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok
}

// Put stores an entry. First write wins so concurrent evaluations of the
// same key stay consistent.
func (c *MemoryCache) Put(key CacheKey, entry CachedReference) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		return
	}
	c.entries[key] = entry
}

// Invalidate drops one key.
func (c *MemoryCache) Invalidate(key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of cached reference profiles.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
