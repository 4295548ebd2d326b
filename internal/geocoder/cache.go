package geocoder

import (
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/couchcryptid/geocode-orchestrator/internal/domain"
	lru "github.com/hashicorp/golang-lru/v2"
)

// resultCache holds successful lookups for the life of the process.
type resultCache struct {
	lru *lru.Cache[string, domain.Location]
}

func newResultCache(size int) (*resultCache, error) {
	c, err := lru.New[string, domain.Location](size)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	return &resultCache{lru: c}, nil
}

func (c *resultCache) get(key string) (domain.Location, bool) {
	loc, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return cloneLocation(loc), true
}

// put stores only successful results so a transient empty answer is retried
// on the next lookup.
func (c *resultCache) put(key string, res domain.Result) {
	if !res.OK() {
		return
	}
	c.lru.Add(key, cloneLocation(res.Location))
}

func (c *resultCache) len() int {
	return c.lru.Len()
}

// cloneLocation copies slice-backed locations so cached entries never alias
// a caller's result.
func cloneLocation(loc domain.Location) domain.Location {
	if b, ok := loc.(domain.BoundaryCoordinate); ok {
		b.Locations = slices.Clone(b.Locations)
		return b
	}
	return loc
}

// keyHash is the log-safe form of a cache key.
func keyHash(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}
