package orchestrator

import (
	"sync"

	"github.com/lbliii/bengal/internal/core/domain"
	"github.com/lbliii/bengal/internal/core/ports"
)

var _ ports.FragmentCache = (*FragmentCache)(nil)

// FragmentCache is the content-addressed sub-render cache shared by workers
// within one cycle. It is constructed per cycle and passed explicitly, never
// held as a process singleton, so a long-lived watch-style driver cannot
// leak state across cycles.
//
// A single coarse lock guards the whole map. Hits are cheap and misses
// dominate cost, so finer locking buys nothing here.
type FragmentCache struct {
	mu      sync.Mutex
	entries map[domain.Hash][]byte
	hits    int
	misses  int
}

// NewFragmentCache returns an empty cycle-scoped cache.
func NewFragmentCache() *FragmentCache {
	return &FragmentCache{entries: make(map[domain.Hash][]byte)}
}

// GetOrCompute returns the cached bytes for key, computing and storing them
// on a miss. The lock is held across compute so a key is computed at most
// once per cycle.
func (c *FragmentCache) GetOrCompute(key domain.Hash, compute func() ([]byte, error)) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if body, ok := c.entries[key]; ok {
		c.hits++
		return body, nil
	}

	body, err := compute()
	if err != nil {
		return nil, err
	}
	c.misses++
	c.entries[key] = body
	return body, nil
}

// Stats returns the hit and miss counters for the cycle summary.
func (c *FragmentCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
