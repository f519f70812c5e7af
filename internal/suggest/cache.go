package suggest

import (
	"strings"
	"sync"
	"time"

	"github.com/Henners-111/Stock-Correlation/internal/provider"
)

type cacheKey struct {
	query string
	limit int
}

type cacheEntry struct {
	insertedAt time.Time
	items      []provider.Suggestion
}

// Cache memoizes suggestion results per (lowercased query, limit) for a TTL.
// Expired entries are never proactively purged; they are ignored on read and
// overwritten by the next fetch. MaxEntries bounds the map with best-effort
// eviction so hostile query streams cannot grow memory without limit.
type Cache struct {
	TTL        time.Duration
	MaxEntries int

	now func() time.Time

	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
}

func NewCache(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{TTL: ttl, MaxEntries: maxEntries, now: time.Now, entries: make(map[cacheKey]cacheEntry)}
}

func key(query string, limit int) cacheKey {
	return cacheKey{query: strings.ToLower(query), limit: limit}
}

// Get returns the cached items for a key while they are fresh.
func (c *Cache) Get(query string, limit int) ([]provider.Suggestion, bool) {
	if c == nil || c.TTL <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key(query, limit)]
	if !ok || c.now().Sub(e.insertedAt) >= c.TTL {
		return nil, false
	}
	return e.items, true
}

// Put stores a fresh result, overwriting any prior entry for the key.
func (c *Cache) Put(query string, limit int, items []provider.Suggestion) {
	if c == nil || c.TTL <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[cacheKey]cacheEntry)
	}
	c.entries[key(query, limit)] = cacheEntry{insertedAt: c.now(), items: items}

	// Best-effort cap: drop expired entries first, then arbitrary ones.
	if c.MaxEntries > 0 && len(c.entries) > c.MaxEntries {
		now := c.now()
		for k, e := range c.entries {
			if now.Sub(e.insertedAt) >= c.TTL {
				delete(c.entries, k)
			}
			if len(c.entries) <= c.MaxEntries {
				return
			}
		}
		for k := range c.entries {
			if len(c.entries) <= c.MaxEntries {
				return
			}
			delete(c.entries, k)
		}
	}
}
