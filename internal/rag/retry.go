package rag

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// errorClass buckets provider errors for backoff selection.
type errorClass int

const (
	classFatal errorClass = iota
	classTransient
	classRateLimited
)

// Error substrings matched case-insensitively against err.Error().
//
// NOTE: This uses string matching because Genkit and LLM provider SDKs
// do not expose typed/sentinel errors for transient failures.
// Re-evaluate if Genkit adds structured error types in a future version.
var (
	rateLimitPatterns = []string{"rate limit", "quota exceeded", "too many requests", "429"}
	transientPatterns = []string{"500", "502", "503", "504", "unavailable", "connection reset", "connection refused", "timeout", "temporary", "deadline exceeded"}
)

// classify buckets err as rate-limited, transient, or fatal.
// Context cancellation is always fatal: the caller has gone away.
func classify(err error) errorClass {
	if err == nil {
		return classFatal
	}
	if errors.Is(err, context.Canceled) {
		return classFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return classTransient
	}
	errStr := strings.ToLower(err.Error())
	for _, sub := range rateLimitPatterns {
		if strings.Contains(errStr, sub) {
			return classRateLimited
		}
	}
	for _, sub := range transientPatterns {
		if strings.Contains(errStr, sub) {
			return classTransient
		}
	}
	return classFatal
}

// RetryPolicy wraps provider calls with classified exponential backoff.
// Rate-limited errors back off harder than generic transient faults:
// delay for attempt n is min(base*2^n, max) for transient errors and
// min(base*3^n, 2*max) for rate limits, with uniform ±10% jitter.
// Fatal errors propagate immediately without retry.
//
// The zero value retries nothing; use NewRetryPolicy for defaults.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// sleep is replaceable in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
	// jitter returns a multiplier in [0.9, 1.1].
	jitter func() float64
}

// NewRetryPolicy builds a policy with the given budget and backoff bounds.
func NewRetryPolicy(maxRetries int, baseDelay, maxDelay time.Duration) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		MaxDelay:   maxDelay,
		sleep:      sleepCtx,
		jitter:     func() float64 { return 0.9 + 0.2*rand.Float64() },
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context canceled during retry: %w", ctx.Err())
	case <-time.After(d):
		return nil
	}
}

// delayFor computes the backoff before retry attempt+1, jitter included.
func (p *RetryPolicy) delayFor(class errorClass, attempt int) time.Duration {
	multiplier := time.Duration(2)
	ceiling := p.MaxDelay
	if class == classRateLimited {
		multiplier = 3
		ceiling = 2 * p.MaxDelay
	}

	delay := p.BaseDelay
	for i := 0; i < attempt && delay < ceiling; i++ {
		delay *= multiplier
	}
	if delay > ceiling {
		delay = ceiling
	}

	jitter := 1.0
	if p.jitter != nil {
		jitter = p.jitter()
	}
	return time.Duration(float64(delay) * jitter)
}

// Do runs op, retrying rate-limited and transient failures up to
// MaxRetries times. The last error is returned after exhaustion.
func (p *RetryPolicy) Do(ctx context.Context, op func(context.Context) error) error {
	var lastErr error
	start := time.Now()

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		class := classify(err)
		if class == classFatal {
			return err
		}

		// Last attempt, don't sleep.
		if attempt == p.MaxRetries {
			break
		}

		sleep := p.sleep
		if sleep == nil {
			sleep = sleepCtx
		}
		if err := sleep(ctx, p.delayFor(class, attempt)); err != nil {
			return err
		}
	}

	return fmt.Errorf("after %d retries (elapsed: %v): %w", p.MaxRetries, time.Since(start).Round(time.Millisecond), lastErr)
}
