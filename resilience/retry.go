package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ErrMaxAttemptsExceeded wraps the last attempt's error when the retry
// budget is exhausted.
var ErrMaxAttemptsExceeded = errors.New("max attempts exceeded")

// Policy computes exponential backoff delays. The zero value is not usable;
// call ApplyDefaults or use DefaultPolicy.
type Policy struct {
	// BaseDelay is the delay returned for attempt 0.
	BaseDelay time.Duration
	// MaxDelay caps the computed delay.
	MaxDelay time.Duration
	// Multiplier is the exponential growth factor per attempt.
	Multiplier float64
	// Jitter scales the delay by a random factor in [1-Jitter, 1+Jitter].
	// Zero disables jitter.
	Jitter float64
	// Rand is the randomness source for jitter. Nil uses the shared
	// package-level source; tests inject a seeded one for determinism.
	Rand *rand.Rand
}

// DefaultPolicy returns the registration/config-load backoff defaults.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:  1 * time.Second,
		MaxDelay:   2 * time.Second,
		Multiplier: 1.1,
		Jitter:     0,
	}
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (p *Policy) ApplyDefaults() {
	if p.BaseDelay <= 0 {
		p.BaseDelay = 1 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 2 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 1.1
	}
}

// Delay returns the backoff delay for a 0-based attempt count.
// Attempt 0 returns BaseDelay (before jitter). The result never exceeds
// MaxDelay and is never negative.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}

	if p.Jitter > 0 {
		d *= 1 + p.Jitter*(2*p.rand01()-1)
		if d > float64(p.MaxDelay) {
			d = float64(p.MaxDelay)
		}
	}

	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func (p Policy) rand01() float64 {
	if p.Rand != nil {
		return p.Rand.Float64()
	}
	return rand.Float64()
}

// RetryConfig configures Retry.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts including the first.
	// Zero or negative means unbounded.
	MaxAttempts int
	// Backoff computes the delay between attempts.
	Backoff Policy
	// RetryIf determines whether an error should be retried.
	// Nil retries everything except context cancellation.
	RetryIf func(error) bool
	// OnRetry is called before each backoff sleep with the 1-based attempt
	// number that just failed.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryIf retries all errors except context cancellation.
func DefaultRetryIf(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Retry executes fn until it succeeds, a non-retryable error occurs, the
// attempt budget is exhausted, or ctx is cancelled. The backoff sleep is
// interrupted immediately by ctx cancellation.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	cfg.Backoff.ApplyDefaults()
	if cfg.RetryIf == nil {
		cfg.RetryIf = DefaultRetryIf
	}

	for attempt := 1; cfg.MaxAttempts <= 0 || attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !cfg.RetryIf(err) {
			return zero, err
		}
		if cfg.MaxAttempts > 0 && attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.Backoff.Delay(attempt - 1)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("%w: %w", ErrMaxAttemptsExceeded, lastErr)
}

// RetryFunc executes a function that returns only an error.
func RetryFunc(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := Retry(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
