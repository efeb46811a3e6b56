package webhook

import (
	"sync"
	"time"
)

// eventCache remembers recently seen webhookEventIds.
//
// LINE may resend an event it believes was not acknowledged, flagged with
// deliveryContext.isRedelivery. A redelivered ID seen within the window is a
// duplicate and must not produce a second reply.
type eventCache struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

func newEventCache(window time.Duration) *eventCache {
	return &eventCache{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// isDuplicate records id and reports whether it should be skipped.
// Empty IDs are never duplicates.
func (c *eventCache) isDuplicate(id string, redelivery bool) bool {
	if id == "" || c.window <= 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, at := range c.seen {
		if now.Sub(at) > c.window {
			delete(c.seen, k)
		}
	}

	_, seen := c.seen[id]
	c.seen[id] = now
	return seen && redelivery
}

func (c *eventCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
