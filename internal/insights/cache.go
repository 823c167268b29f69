package insights

import (
	"sync"
	"time"
)

// factCache keeps built facts per artist so the player does not refetch them on every track
// by the same artist. Expired entries are dropped on read.
type factCache struct {
	mu      sync.RWMutex
	entries map[string]cachedFacts
	ttl     time.Duration
	now     func() time.Time
}

type cachedFacts struct {
	facts    []string
	cachedAt time.Time
}

func newFactCache(ttl time.Duration, now func() time.Time) *factCache {
	return &factCache{entries: make(map[string]cachedFacts), ttl: ttl, now: now}
}

func (c *factCache) Get(artistID string) ([]string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[artistID]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.now().After(entry.cachedAt.Add(c.ttl)) {
		c.mu.Lock()
		delete(c.entries, artistID)
		c.mu.Unlock()
		return nil, false
	}
	return entry.facts, true
}

func (c *factCache) Set(artistID string, facts []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[artistID] = cachedFacts{facts: facts, cachedAt: c.now()}
}

func (c *factCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cachedFacts)
}
