// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// RetryPolicy bounds how a failing call is retried.
type RetryPolicy struct {
	// MaxAttempts is the number of attempts for transient failures (must be > 0).
	MaxAttempts int

	// BaseDelay is the delay after the first failure; it doubles each time.
	BaseDelay time.Duration

	// MaxDelay caps the backoff delay. 0 means no cap.
	MaxDelay time.Duration

	// RateLimitPause is the minimum wait after a rate-limit response.
	RateLimitPause time.Duration

	// MaxRateLimitWaits bounds rate-limit pauses. They do not use up MaxAttempts.
	MaxRateLimitWaits int

	// AttemptTimeout bounds a single attempt. 0 disables the per-attempt deadline.
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy matches DefaultConfig().RetryPolicy().
func DefaultRetryPolicy() RetryPolicy {
	return DefaultConfig().RetryPolicy()
}

// backoff returns BaseDelay * 2^(n-1), capped at MaxDelay. Without a cap
// the delay saturates at the largest Duration instead of overflowing.
func (p RetryPolicy) backoff(n int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < n; i++ {
		if delay > math.MaxInt64/2 {
			delay = math.MaxInt64
			break
		}
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Retry runs operation until it succeeds, fails permanently or exhausts the
// policy. It returns the number of attempts made alongside the final error.
//
// Transient errors back off exponentially up to MaxAttempts. Errors wrapping
// ErrRateLimited pause for at least RateLimitPause and are counted against
// MaxRateLimitWaits instead. Errors wrapping ErrPermanent return at once.
// An attempt that exceeds AttemptTimeout is treated as transient.
func Retry(ctx context.Context, policy RetryPolicy, operation func(ctx context.Context) error) (int, error) {
	if policy.MaxAttempts <= 0 {
		return 0, ErrInvalidMaxAttempts
	}

	attempts, failures, waits := 0, 0, 0
	for {
		// Check context before attempting
		if err := ctx.Err(); err != nil {
			return attempts, err
		}

		attempts++
		err := runAttempt(ctx, policy.AttemptTimeout, operation)
		if err == nil {
			if attempts > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempts)
			}
			return attempts, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempts, ctxErr
		}

		var delay time.Duration
		switch {
		case IsPermanent(err):
			return attempts, err
		case errors.Is(err, ErrRateLimited):
			waits++
			if waits > policy.MaxRateLimitWaits {
				return attempts, fmt.Errorf("%w: still rate limited after %d pauses: %w", ErrRetriesExhausted, waits-1, err)
			}
			delay = max(policy.RateLimitPause, policy.backoff(waits))
			slog.Warn("rate limited, pausing", "attempt", attempts, "pause", delay)
		default:
			failures++
			if failures >= policy.MaxAttempts {
				return attempts, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, failures, err)
			}
			delay = policy.backoff(failures)
			slog.Debug("operation failed, will retry", "attempt", attempts, "maxAttempts", policy.MaxAttempts, "delay", delay, "error", err)
		}

		// Sleep with context awareness
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempts, ctx.Err()
		case <-timer.C:
		}
	}
}

func runAttempt(ctx context.Context, timeout time.Duration, operation func(ctx context.Context) error) error {
	if timeout <= 0 {
		return operation(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := operation(attemptCtx)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: attempt timed out after %s: %w", ErrTransient, timeout, err)
	}
	return err
}
