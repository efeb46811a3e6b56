package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindowCounter approximates a rolling window with two fixed
// windows:
//
//	effective = current + previous * (time left in current window / window)
//
// It backs the per-user daily LLM cap. A nil counter allows everything.
type SlidingWindowCounter struct {
	mu          sync.Mutex
	curr        int
	prev        int
	windowStart time.Time
	window      time.Duration
	limit       int
}

// NewSlidingWindowCounter returns nil when limit <= 0 (disabled).
func NewSlidingWindowCounter(limit int, window time.Duration) *SlidingWindowCounter {
	if limit <= 0 {
		return nil
	}
	return &SlidingWindowCounter{
		windowStart: time.Now(),
		window:      window,
		limit:       limit,
	}
}

// Allow counts the request if the window has room.
func (c *SlidingWindowCounter) Allow() bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rotate()
	if c.effective() >= float64(c.limit) {
		return false
	}
	c.curr++
	return true
}

// Check reports whether Allow would succeed without counting.
func (c *SlidingWindowCounter) Check() bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rotate()
	return c.effective() < float64(c.limit)
}

// Consume counts a request that already passed Check.
func (c *SlidingWindowCounter) Consume() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rotate()
	if c.effective() < float64(c.limit) {
		c.curr++
	}
}

// Effective returns the weighted request count.
func (c *SlidingWindowCounter) Effective() float64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rotate()
	return c.effective()
}

// Remaining returns the approximate quota left, or -1 when disabled.
func (c *SlidingWindowCounter) Remaining() int {
	if c == nil {
		return -1
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rotate()
	return max(0, int(float64(c.limit)-c.effective()))
}

// rotate must be called with mu held.
func (c *SlidingWindowCounter) rotate() {
	elapsed := time.Since(c.windowStart)
	if elapsed < c.window {
		return
	}
	passed := int(elapsed / c.window)
	if passed == 1 {
		c.prev = c.curr
	} else {
		// The previous window is entirely outside the rolling range.
		c.prev = 0
	}
	c.curr = 0
	c.windowStart = c.windowStart.Add(time.Duration(passed) * c.window)
}

// effective must be called with mu held.
func (c *SlidingWindowCounter) effective() float64 {
	overlap := float64(c.window-time.Since(c.windowStart)) / float64(c.window)
	overlap = min(1, max(0, overlap))
	return float64(c.curr) + float64(c.prev)*overlap
}
