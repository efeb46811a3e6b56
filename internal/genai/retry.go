package genai

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"
)

// CalculateBackoff returns a Full Jitter delay:
//
//	delay = random(0, min(maxDelay, initial * 2^(attempt-1)))
//
// attempt <= 0 returns 0.
func CalculateBackoff(attempt int, initial, maxDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := time.Duration(float64(initial) * math.Pow(2, float64(attempt-1)))
	if delay > maxDelay {
		delay = maxDelay
	}
	if delay <= 0 {
		return 0
	}

	jitter, err := rand.Int(rand.Reader, big.NewInt(int64(delay)))
	if err != nil {
		return delay / 2
	}
	return time.Duration(jitter.Int64())
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HasSufficientBudget reports whether ctx has at least required time left.
func HasSufficientBudget(ctx context.Context, required time.Duration) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return true
	}
	return time.Until(deadline) >= required
}

// withRetry calls fn until it succeeds, returns a non-retryable error, or
// attempts run out. A provider-supplied Retry-After replaces the jittered
// delay when it is shorter than cfg.MaxDelay.
func withRetry[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	attempts := max(cfg.MaxAttempts, 1)

	for attempt := range attempts {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("%w (last error: %w)", err, lastErr)
			}
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ClassifyError(err) != ActionRetry || attempt == attempts-1 {
			break
		}

		backoff := CalculateBackoff(attempt+1, cfg.InitialDelay, cfg.MaxDelay)
		var llmErr *LLMError
		if errors.As(err, &llmErr) && llmErr.RetryAfter > 0 && llmErr.RetryAfter <= cfg.MaxDelay {
			backoff = llmErr.RetryAfter
		}
		if !HasSufficientBudget(ctx, backoff) {
			return zero, fmt.Errorf("no time left to retry: %w", lastErr)
		}
		if err := Sleep(ctx, backoff); err != nil {
			return zero, lastErr
		}
	}

	return zero, lastErr
}
