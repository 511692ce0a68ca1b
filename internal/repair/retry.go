package repair

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// connRetryDelays is the backoff schedule for transient SSL/EOF-class
// connection errors during cleanup (spec.md:224's MUST), the same
// three-step shape internal/gcpclient/retry.go uses for Vertex AI 429s but
// keyed on a different error signature.
var connRetryDelays = []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond, 2000 * time.Millisecond}

// isTransientConnectionError reports whether err looks like a dropped or
// reset connection rather than a genuine query failure — the class of
// error a retry on the same dedicated connection can recover from.
func isTransientConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, sig := range []string{
		"SSL", "EOF", "connection reset", "broken pipe",
		"bad connection", "connection refused", "i/o timeout",
		"conn closed", "unexpected EOF",
	} {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// withConnRetry runs fn up to len(connRetryDelays)+1 times, retrying only on
// isTransientConnectionError. Every cleanup call site in this package goes
// through it so a dropped connection mid-delete doesn't surface as a
// permanent failure.
func withConnRetry[T any](ctx context.Context, operation string, fn func() (T, error)) (T, error) {
	result, err := fn()
	if err == nil || !isTransientConnectionError(err) {
		return result, err
	}

	for i, delay := range connRetryDelays {
		slog.Warn("repair: transient connection error, retrying",
			"operation", operation, "attempt", i+2, "delay_ms", delay.Milliseconds(), "error", err.Error())

		select {
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("%s: context cancelled during retry: %w", operation, ctx.Err())
		case <-time.After(delay):
		}

		result, err = fn()
		if err == nil || !isTransientConnectionError(err) {
			return result, err
		}
	}

	slog.Error("repair: transient connection retries exhausted", "operation", operation, "attempts", len(connRetryDelays)+1)
	return result, err
}
