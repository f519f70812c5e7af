package httpx

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StatusError reports a non-2xx upstream response with a truncated body for
// diagnosis.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string { return fmt.Sprintf("http %d: %s", e.Code, e.Body) }

// Retryable reports whether an outbound failure is transient: a network
// error, a 429, or a 5xx. Definitive client errors are not retried.
func Retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || (se.Code >= 500 && se.Code < 600)
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// RateLimited reports whether the upstream explicitly refused the request
// with a rate-limit or server error after retries were exhausted.
func RateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && (se.Code == 429 || se.Code >= 500)
}

// Backoff returns the delay before retry attempt n (0-based).
func Backoff(attempt int) time.Duration {
	return time.Duration(250*(1<<attempt)) * time.Millisecond
}

// Sleep waits out a backoff or returns early when the context is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
