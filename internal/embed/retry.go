package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
)

// RetryPolicy configures backoff for embedding calls.
//
// Injected rather than hardcoded so tests can use a zero-delay policy
// and callers can bound total retry time.
type RetryPolicy struct {
	MaxAttempts     int           // Total attempts including the first
	InitialInterval time.Duration // First backoff delay
	MaxInterval     time.Duration // Backoff ceiling per delay
	MaxElapsed      time.Duration // Overall ceiling across all attempts (0 = unbounded)
}

// DefaultRetryPolicy returns sensible defaults for embedding API calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		MaxElapsed:      time.Minute,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialInterval == 0 {
		p.InitialInterval = def.InitialInterval
	}
	if p.MaxInterval == 0 {
		p.MaxInterval = def.MaxInterval
	}
	return p
}

// retryablePatterns groups error substrings by category, matched
// case-insensitively against err.Error().
//
// NOTE: String matching because the provider SDKs do not expose typed
// errors for transient failures. Re-evaluate if Genkit adds structured
// error types.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},      // rate limiting
	{"500", "502", "503", "504", "unavailable"},  // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

// authPatterns match terminal credential failures which must never be retried.
var authPatterns = []string{
	"401", "403", "unauthorized", "permission denied", "invalid api key", "api key not valid",
}

// retryableError reports whether err is transient and should trigger a retry.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	if containsAny(errStr, authPatterns...) {
		return false
	}
	for _, group := range retryablePatterns {
		if containsAny(errStr, group...) {
			return true
		}
	}
	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// embedWithRetry executes the provider call with exponential backoff.
// Each attempt waits on the rate limiter first; the elapsed ceiling
// bounds how long a failing dependency can stall the caller.
func (e *Embedder) embedWithRetry(ctx context.Context, text string) (*ai.EmbedResponse, error) {
	var lastErr error
	delay := e.policy.InitialInterval
	start := time.Now()

	for attempt := 0; attempt < e.policy.MaxAttempts; attempt++ {
		if e.rateLimiter != nil {
			if err := e.rateLimiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := e.embedOnce(ctx, text)
		if err == nil {
			if attempt > 0 {
				e.logger.Debug("embedding succeeded after retry",
					"attempts", attempt+1,
					"elapsed", time.Since(start),
				)
			}
			return resp, nil
		}

		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("embed: %w", err)
		}

		if attempt == e.policy.MaxAttempts-1 {
			break
		}

		if e.policy.MaxElapsed > 0 && time.Since(start)+delay > e.policy.MaxElapsed {
			e.logger.Debug("retry budget exhausted", "elapsed", time.Since(start))
			break
		}

		e.logger.Debug("retrying embedding after error",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, e.policy.MaxInterval)
		}
	}

	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("embed: %w", ctx.Err())
	}
	return nil, fmt.Errorf("embed after %d attempts (elapsed: %v): %w",
		e.policy.MaxAttempts, time.Since(start).Round(time.Millisecond), lastErr)
}
