package ai

import (
	"context"
	"errors"
)

var (
	// ErrTransient marks failures worth retrying: 5xx, timeouts, dropped connections.
	ErrTransient = errors.New("transient AI service error")

	// ErrRateLimited marks rate-limit responses. Callers pause and retry.
	ErrRateLimited = errors.New("AI service rate limited")

	// ErrPermanent marks failures that will not succeed on retry:
	// bad credentials, invalid requests, exhausted quota.
	ErrPermanent = errors.New("permanent AI service error")

	// ErrRetriesExhausted wraps the last error once the retry budget is spent.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrInvalidMaxAttempts indicates a retry policy with no attempts.
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than 0")

	// ErrEmptyResponse indicates the service answered without content.
	ErrEmptyResponse = errors.New("empty response from AI service")
)

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent) || errors.Is(err, context.Canceled)
}

// IsRetryable reports whether err may succeed on a later attempt.
func IsRetryable(err error) bool {
	return err != nil && !IsPermanent(err)
}
