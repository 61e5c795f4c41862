package geocode

import (
	"strings"
	"sync"

	"github.com/datapulse/ingest/models"
)

// Cache memoizes address lookups, including confirmed not-found results. A
// stored nil value means "queried, not found" and is distinct from "never
// queried".
type Cache struct {
	mu      sync.Mutex
	entries map[string]*models.GeocodeResult
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*models.GeocodeResult)}
}

// Key normalizes an address triple into the cache key: lowercase-trimmed
// address, then optional lowercase-trimmed city and trimmed postcode,
// pipe-joined.
func Key(address, city, postcode string) string {
	parts := []string{strings.ToLower(strings.TrimSpace(address))}
	if city = strings.ToLower(strings.TrimSpace(city)); city != "" {
		parts = append(parts, city)
	}
	if postcode = strings.TrimSpace(postcode); postcode != "" {
		parts = append(parts, postcode)
	}
	return strings.Join(parts, "|")
}

// Get returns the cached entry and whether the key has been queried before.
// A (nil, true) return is a confirmed not-found.
func (c *Cache) Get(key string) (*models.GeocodeResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.entries[key]
	return res, ok
}

// Put stores a result; res may be nil to record a not-found terminal state.
func (c *Cache) Put(key string, res *models.GeocodeResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = res
}

// Len reports the number of cached keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
