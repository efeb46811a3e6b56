package ratelimit

import (
	"sync"
	"time"

	"github.com/garyellow/scamguard-linebot-go/internal/metrics"
)

// Decision is the outcome of KeyedLimiter.Take.
type Decision int

const (
	// Allowed means the request may proceed.
	Allowed Decision = iota
	// Throttled means the key exhausted its burst; retry shortly.
	Throttled
	// DailyExhausted means the rolling 24h cap is reached.
	DailyExhausted
)

// KeyedConfig configures a KeyedLimiter.
type KeyedConfig struct {
	// Name labels metrics (user, llm).
	Name string

	Burst      float64 // bucket capacity
	RefillRate float64 // tokens per second

	// DailyLimit caps requests per rolling 24h. 0 disables it.
	DailyLimit int

	// CleanupPeriod is how often idle keys are dropped. Default 5m.
	CleanupPeriod time.Duration

	Metrics *metrics.Metrics
}

// KeyedLimiter keeps one token bucket (and optional daily counter) per key,
// e.g. per LINE user ID. Call Stop when done.
type KeyedLimiter struct {
	mu      sync.RWMutex
	entries map[string]*keyedEntry
	cfg     KeyedConfig

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// keyedEntry.mu makes the two-layer check-then-consume atomic.
type keyedEntry struct {
	mu     sync.Mutex
	bucket *Limiter
	daily  *SlidingWindowCounter
}

// NewKeyedLimiter starts the cleanup goroutine.
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = 5 * time.Minute
	}
	kl := &KeyedLimiter{
		entries: make(map[string]*keyedEntry),
		cfg:     cfg,
		stopCh:  make(chan struct{}),
	}
	kl.wg.Go(kl.cleanupLoop)
	return kl
}

// Allow reports whether a request for key may proceed.
func (kl *KeyedLimiter) Allow(key string) bool {
	return kl.Take(key) == Allowed
}

// Take checks both layers and consumes from both only if both pass.
// An empty key is always allowed.
func (kl *KeyedLimiter) Take(key string) Decision {
	if key == "" {
		return Allowed
	}

	entry := kl.entry(key)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.daily.Check() {
		kl.cfg.Metrics.RecordRateLimiterDrop(kl.cfg.Name)
		return DailyExhausted
	}
	if !entry.bucket.Check() {
		kl.cfg.Metrics.RecordRateLimiterDrop(kl.cfg.Name)
		return Throttled
	}

	entry.daily.Consume()
	entry.bucket.Consume()
	return Allowed
}

func (kl *KeyedLimiter) entry(key string) *keyedEntry {
	kl.mu.RLock()
	e, ok := kl.entries[key]
	kl.mu.RUnlock()
	if ok {
		return e
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()
	if e, ok = kl.entries[key]; ok {
		return e
	}
	e = &keyedEntry{
		bucket: New(kl.cfg.Burst, kl.cfg.RefillRate),
		daily:  NewSlidingWindowCounter(kl.cfg.DailyLimit, 24*time.Hour),
	}
	kl.entries[key] = e
	return e
}

// Available returns the tokens left for key; Burst for unseen keys.
func (kl *KeyedLimiter) Available(key string) float64 {
	kl.mu.RLock()
	e, ok := kl.entries[key]
	kl.mu.RUnlock()
	if !ok {
		return kl.cfg.Burst
	}
	return e.bucket.Available()
}

// DailyRemaining returns the daily quota left for key, or -1 when the
// daily cap is disabled.
func (kl *KeyedLimiter) DailyRemaining(key string) int {
	if kl.cfg.DailyLimit <= 0 {
		return -1
	}
	kl.mu.RLock()
	e, ok := kl.entries[key]
	kl.mu.RUnlock()
	if !ok {
		return kl.cfg.DailyLimit
	}
	return e.daily.Remaining()
}

// ActiveCount returns the number of tracked keys.
func (kl *KeyedLimiter) ActiveCount() int {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	return len(kl.entries)
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.cfg.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.cleanup()
		}
	}
}

// cleanup drops keys whose bucket is full and whose daily window is empty.
// Keys with daily usage are kept so the cap survives idle periods.
func (kl *KeyedLimiter) cleanup() {
	kl.mu.Lock()
	for key, e := range kl.entries {
		if e.bucket.IsFull() && e.daily.Effective() == 0 {
			delete(kl.entries, key)
		}
	}
	n := len(kl.entries)
	kl.mu.Unlock()

	kl.cfg.Metrics.SetRateLimiterUsers(kl.cfg.Name, n)
}

// Stop ends the cleanup goroutine and waits for it. Safe to call twice.
func (kl *KeyedLimiter) Stop() {
	kl.stopOnce.Do(func() { close(kl.stopCh) })
	kl.wg.Wait()
}
