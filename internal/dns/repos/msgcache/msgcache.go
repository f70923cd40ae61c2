// Package msgcache caches resolved answers so hot names skip the lookup
// path. Entries are keyed by question and snapshot generation, so an
// answer computed against one generation of zone data can never be served
// after that generation is replaced.
package msgcache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/caprine/goatd/internal/dns/domain"
)

// Cache is an LRU of complete lookup results.
type Cache struct {
	lru *lru.Cache[string, domain.LookupResult]
}

// New returns a Cache bounded to size entries.
func New(size int) (*Cache, error) {
	c, err := lru.New[string, domain.LookupResult](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

// key scopes the question key to a snapshot generation. Stale generations
// simply stop being asked for and age out of the LRU.
func key(q domain.Question, generation uint64) string {
	return fmt.Sprintf("%d|%s", generation, q.CacheKey())
}

// Get returns the cached result for q against the given generation.
func (c *Cache) Get(q domain.Question, generation uint64) (domain.LookupResult, bool) {
	return c.lru.Get(key(q, generation))
}

// Set stores the result for q against the given generation.
func (c *Cache) Set(q domain.Question, generation uint64, res domain.LookupResult) {
	c.lru.Add(key(q, generation), res)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.lru.Purge()
}
