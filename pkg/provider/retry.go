package provider

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// RetryPolicy configures the exponential backoff used when retrying
// transient provider errors: base 500ms, factor 1.5, cap
// 30s, at most 5 attempts per operation.
type RetryPolicy struct {
	BaseDelay   time.Duration
	Factor      float64
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy returns the default backoff parameters.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:   500 * time.Millisecond,
		Factor:      1.5,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 5,
	}
}

// delay returns the backoff delay before attempt number `attempt` (1-based),
// with up to 20% jitter applied so that concurrently-retrying operations
// don't synchronize their retries against the same provider.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Factor
	}
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	jitter := d * 0.2 * rand.Float64()
	return time.Duration(d + jitter)
}

// WithRetry runs fn, retrying on transient errors (IsTransient) with
// exponential backoff and jitter, up to policy.MaxAttempts. Permanent and
// conflict errors are returned immediately without retry. A
// RateLimitedError carrying a Retry-After hint overrides the computed
// backoff delay for that attempt.
func WithRetry(ctx context.Context, logger *slog.Logger, policy RetryPolicy, operation string, fn func() error) error {
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ErrCancelled
		}
		if !IsTransient(err) {
			return err
		}
		if attempt == policy.MaxAttempts {
			break
		}

		wait := policy.delay(attempt)
		var rl *RateLimitedError
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			wait = rl.RetryAfter
		}

		logger.Warn("retrying after transient provider error",
			slog.String("operation", operation),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ErrCancelled
		case <-timer.C:
		}
	}

	return lastErr
}
