package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPError is a non-2xx response from a provider endpoint.
type HTTPError struct {
	Status        int
	Body          string
	RetryAfter    time.Duration // parsed Retry-After header
	HasRetryAfter bool          // distinguishes "Retry-After: 0" from no header
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ParseRetryAfter interprets a Retry-After header value as a number of
// seconds, accepting both integer and fractional forms ("5", "5.0").
// ok is false for anything it cannot parse.
func ParseRetryAfter(v string) (d time.Duration, ok bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	// Truncate to whole seconds; "5.9" waits 5s.
	return time.Duration(int64(f)) * time.Second, true
}

// RetryConfig bounds the retry loop around provider requests.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    10,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     60 * time.Second,
	}
}

// retryable reports whether err is worth another attempt: HTTP 429,
// HTTP 5xx, or a transport-level failure. Decode errors and other HTTP
// statuses surface immediately.
func retryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status == http.StatusTooManyRequests || httpErr.Status >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var transient *transportError
	return errors.As(err, &transient)
}

// transportError marks connection-level failures as retryable.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// RetryDo runs fn until it succeeds, the error is not retryable, or the
// attempt budget is spent. A 429 carrying Retry-After waits exactly that
// long; everything else follows exponential backoff doubling from
// InitialBackoff and capped at MaxBackoff.
func RetryDo[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	backoff := cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		out, err := fn()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !retryable(err) || attempt == cfg.MaxAttempts {
			return zero, err
		}

		wait := backoff
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.Status == http.StatusTooManyRequests && httpErr.HasRetryAfter {
			wait = httpErr.RetryAfter
		} else {
			backoff *= 2
			if backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		}

		slog.Info("request failed, retrying",
			"attempt", attempt,
			"wait", wait,
			"error", err)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}
	return zero, lastErr
}
