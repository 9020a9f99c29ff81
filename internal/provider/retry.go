package provider

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultAttempts   = 3
	DefaultMinBackoff = time.Second
	DefaultMaxBackoff = 30 * time.Second
)

// Retry runs fn up to attempts times, doubling the backoff from minBackoff
// up to maxBackoff between tries. isRetryable decides whether an error is
// worth another attempt; nil means IsTransient.
func Retry(ctx context.Context, attempts int, minBackoff, maxBackoff time.Duration, isRetryable func(error) bool, fn func() error) error {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if minBackoff <= 0 {
		minBackoff = DefaultMinBackoff
	}
	if maxBackoff <= 0 {
		maxBackoff = DefaultMaxBackoff
	}
	if isRetryable == nil {
		isRetryable = IsTransient
	}

	backoff := minBackoff
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}

// IsTransient classifies transport failures and transient 5xx responses as
// retryable. Client-side 4xx rejections are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, permanent := range []string{"400", "401", "403", "404", "422"} {
		if strings.Contains(msg, permanent) {
			return false
		}
	}
	for _, pattern := range []string{
		"timeout",
		"deadline",
		"network",
		"connection",
		"temporary",
		"rate limit",
		"429",
		"500",
		"502",
		"503",
		"504",
		"eof",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
