//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryOptions bounds the dispatch retry loop.
type RetryOptions struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Backoff holds the sleep before each attempt; Backoff[0] applies to
	// the first attempt. Attempts past the end reuse the last entry.
	Backoff []time.Duration
}

// DefaultRetryOptions returns the standard bounded retry policy.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts: 3,
		Backoff:     []time.Duration{0, time.Second, 2 * time.Second},
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable: WithRetry stops after the attempt
// that produced it. Used for deterministic failures such as schema
// violations and sandbox policy breaches.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// WithRetry runs fn up to opts.MaxAttempts times with increasing backoff.
// It returns the attempt count, one log line per failed attempt and the
// final error, wrapped with the attempt count when all attempts failed.
// Permanent errors stop the loop immediately.
func WithRetry(ctx context.Context, opts RetryOptions, fn func(ctx context.Context) error) (int, []string, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	var (
		attempts    int
		attemptLogs []string
		lastErr     error
	)
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		if delay := backoffFor(opts.Backoff, attempt); delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return attempts, attemptLogs, ctx.Err()
			}
		}

		attempts++
		err := fn(ctx)
		if err == nil {
			return attempts, attemptLogs, nil
		}
		lastErr = err
		attemptLogs = append(attemptLogs, fmt.Sprintf("attempt %d/%d failed: %v", attempts, opts.MaxAttempts, err))
		if IsPermanent(err) {
			break
		}
	}
	return attempts, attemptLogs, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

func backoffFor(backoff []time.Duration, attempt int) time.Duration {
	if len(backoff) == 0 {
		return 0
	}
	if attempt >= len(backoff) {
		return backoff[len(backoff)-1]
	}
	return backoff[attempt]
}
