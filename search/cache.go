package search

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/poiesic/docsearch/core"
)

const (
	// DefaultCacheSize is the default semantic cache capacity.
	DefaultCacheSize = 128

	// DefaultCacheMinSimilarity is how close a query embedding must be to a
	// cached one to count as a hit.
	DefaultCacheMinSimilarity = 0.95
)

type cacheEntry struct {
	vector  []float32
	results []*core.SearchResult
}

// semanticCache is a bounded LRU of recent search results keyed by query
// embedding. A probe hits when a cached embedding is nearly identical to
// the probe vector. Best effort: a missed hit under concurrency is fine.
type semanticCache struct {
	entries       *lru.Cache[uint64, *cacheEntry]
	minSimilarity float32

	mu   sync.Mutex
	next uint64

	hits   atomic.Int64
	misses atomic.Int64
}

func newSemanticCache(size int, minSimilarity float32) (*semanticCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if minSimilarity <= 0 {
		minSimilarity = DefaultCacheMinSimilarity
	}

	entries, err := lru.New[uint64, *cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &semanticCache{entries: entries, minSimilarity: minSimilarity}, nil
}

// probe returns cached results for a near-duplicate query embedding, or nil.
func (c *semanticCache) probe(vector []float32) []*core.SearchResult {
	for _, key := range c.entries.Keys() {
		entry, ok := c.entries.Peek(key)
		if !ok || len(entry.vector) != len(vector) {
			continue
		}
		if core.Cosine(vector, entry.vector) >= c.minSimilarity {
			c.entries.Get(key) // refresh recency
			c.hits.Add(1)
			return entry.results
		}
	}
	c.misses.Add(1)
	return nil
}

// store caches results under the query embedding.
func (c *semanticCache) store(vector []float32, results []*core.SearchResult) {
	c.mu.Lock()
	key := c.next
	c.next++
	c.mu.Unlock()

	c.entries.Add(key, &cacheEntry{vector: vector, results: results})
}

// stats returns hit and miss counts since startup.
func (c *semanticCache) stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
