package chain

import (
	"strings"
	"sync"
	"time"

	"github.com/sawpanic/putscan/internal/domain"
)

type cacheKey struct {
	ticker string
	expiry string
}

func keyFor(ticker string, expiry time.Time) cacheKey {
	return cacheKey{
		ticker: strings.ToUpper(ticker),
		expiry: expiry.UTC().Format(domain.DateLayout),
	}
}

// Cache memoizes chain lookups for one scan run. A stored nil chain marks
// the pair as unavailable. Entries never expire; a new run gets a new Cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*domain.Chain
}

// NewCache creates an empty run-scoped cache
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]*domain.Chain)}
}

// Get returns the memoized chain and whether the pair was seen before
func (c *Cache) Get(ticker string, expiry time.Time) (*domain.Chain, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	chain, ok := c.entries[keyFor(ticker, expiry)]
	return chain, ok
}

// Put stores chain, or nil for unavailable. Racing writers for the same key
// compute the same value, so the last write wins.
func (c *Cache) Put(ticker string, expiry time.Time, chain *domain.Chain) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[keyFor(ticker, expiry)] = chain
}

// Len returns the number of memoized pairs
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Unavailable counts the pairs memoized as unavailable
func (c *Cache) Unavailable() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, chain := range c.entries {
		if chain == nil {
			n++
		}
	}
	return n
}
