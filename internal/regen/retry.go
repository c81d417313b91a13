// internal/regen/retry.go
package regen

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/user/voicebrief/pkg/summarize"
)

// RetryPolicy controls how failed service calls are retried with
// exponential backoff and jitter. Only errors the port classifies as
// transient or quota are retried; anything else aborts immediately.
type RetryPolicy struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	Multiplier     float64
	MaxDelay       time.Duration
	QuotaDelay     time.Duration
	JitterFraction float64
}

// DefaultRetryPolicy returns a RetryPolicy with sensible defaults:
// 3 attempts, 1s initial delay, 2x multiplier, 30s max delay, 10s floor
// for quota backoff, 25% jitter.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		Multiplier:     2.0,
		MaxDelay:       30 * time.Second,
		QuotaDelay:     10 * time.Second,
		JitterFraction: 0.25,
	}
}

// NextDelay returns the backoff delay for the given attempt number
// (1-indexed). Quota rejections get a longer floor since the service will
// keep refusing until its window rolls over.
func (p *RetryPolicy) NextDelay(attempt int, kind summarize.ErrorKind) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if kind == summarize.KindQuota && delay < float64(p.QuotaDelay) {
		delay = float64(p.QuotaDelay)
	}
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.JitterFraction > 0 {
		delay += delay * p.JitterFraction * rand.Float64()
	}
	return time.Duration(delay)
}

// Execute runs fn up to MaxAttempts times, sleeping between retries.
// Returns nil on success, the last error when attempts are exhausted, or
// immediately on a non-retryable error or context cancellation.
func (p *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !summarize.Retryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(p.NextDelay(attempt, summarize.KindOf(err))):
		}
	}
	return lastErr
}
