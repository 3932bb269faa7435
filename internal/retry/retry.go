package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"finsync/internal/syncerr"
)

// Policy defines exponential backoff parameters for failed sync attempts.
type Policy struct {
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	BackoffFactor  float64
	JitterFraction float64
}

// DefaultPolicy mirrors the engine-wide retry defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     5,
		InitialDelay:   2 * time.Second,
		MaxDelay:       time.Minute,
		BackoffFactor:  2,
		JitterFraction: 0.2,
	}
}

// NextDelay returns the delay for a given attempt (1-based) with clamping.
// Ignoring jitter, the delay is non-decreasing in attempt and never exceeds
// MaxDelay. Jitter perturbs the result by up to ±JitterFraction to avoid
// synchronized retry storms; the result is never negative.
func (p Policy) NextDelay(attempt int) time.Duration {
	d := p.baseDelay(attempt)
	if p.JitterFraction > 0 {
		jitter := float64(d) * p.JitterFraction * (2*rand.Float64() - 1)
		d += time.Duration(jitter)
	}
	if d < 0 {
		d = 0
	}
	return d
}

func (p Policy) baseDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Second
	}
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = 2
	}

	delay := float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt-1))
	d := time.Duration(delay)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}
	return d
}

// ShouldRetry decides whether a failed attempt is worth repeating. The error
// taxonomy is fixed: network, timeout, rate-limit and unknown failures retry;
// authentication, validation and data-conflict failures never do. Once attempt
// reaches MaxRetries the answer is always false.
func (p Policy) ShouldRetry(err error, attempt int) bool {
	if attempt >= p.MaxRetries {
		return false
	}
	return syncerr.Retryable(err)
}

// Do invokes op up to MaxRetries times, returning on the first success or the
// first non-retryable error. Between attempts it sleeps NextDelay, or the
// server-provided rate-limit hint when one is present. The hard cap on
/// attempts is an invariant: op is never called more than MaxRetries times.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if p.MaxRetries < 1 {
		p.MaxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !p.ShouldRetry(lastErr, attempt) {
			return lastErr
		}

		delay := p.NextDelay(attempt)
		if hint, ok := syncerr.RetryAfterHint(lastErr); ok {
			delay = hint
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
