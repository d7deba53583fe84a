package executor

import (
	"sync"
	"time"

	"signalbridge/src/utils"
)

// idempotencyCache remembers recently executed keys so a replayed signal
// places at most one entry. Entries expire after the configured window.
type idempotencyCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock utils.Clock
	seen  map[string]time.Time
}

func newIdempotencyCache(ttl time.Duration, clock utils.Clock) *idempotencyCache {
	return &idempotencyCache{
		ttl:   ttl,
		clock: clock,
		seen:  make(map[string]time.Time),
	}
}

// Claim marks the key as executed and reports whether this caller won it.
// The check and the mark are a single step under the lock, so two concurrent
// executions of the same key resolve to exactly one winner.
func (c *idempotencyCache) Claim(key string) bool {
	if key == "" {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for k, at := range c.seen {
		if now.Sub(at) > c.ttl {
			delete(c.seen, k)
		}
	}
	if _, ok := c.seen[key]; ok {
		return false
	}
	c.seen[key] = now
	return true
}

// Release forgets a key so the same signal may run again, used when a claim
// was taken but nothing was submitted.
func (c *idempotencyCache) Release(key string) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, key)
}
