package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// retryPolicy retries throttling, outages, timeouts and empty answers with
// exponential backoff. A Retry-After header overrides the computed delay.
type retryPolicy struct {
	attempts int
	base     time.Duration
	max      time.Duration
	sleep    func(time.Duration)
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{attempts: 5, base: time.Second, max: 10 * time.Second}
}

func (p retryPolicy) do(ctx context.Context, fn func() error) error {
	attempts := max(p.attempts, 1)
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		hint, ok := retryable(err)
		if !ok || ctx.Err() != nil {
			return err
		}
		if attempt >= attempts {
			if attempts == 1 {
				return err
			}
			return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
		}
		wait := hint
		if wait <= 0 {
			wait = p.backoff(attempt)
		}
		if p.max > 0 {
			wait = min(wait, p.max)
		}
		if err := p.pause(ctx, wait); err != nil {
			return err
		}
	}
}

// backoff returns base, 2*base, 4*base ... for attempts 1, 2, 3 ...
func (p retryPolicy) backoff(attempt int) time.Duration {
	if p.base <= 0 {
		return 0
	}
	delay := p.base
	for i := 1; i < attempt; i++ {
		if p.max > 0 && delay >= p.max {
			return p.max
		}
		delay *= 2
	}
	return delay
}

func (p retryPolicy) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if p.sleep != nil {
		p.sleep(d)
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryable reports whether err may succeed on another request, with the
// delay the provider asked for when it sent one.
func retryable(err error) (time.Duration, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var empty *emptyContentError
	if errors.As(err, &empty) {
		return 0, !empty.rejected()
	}
	var status *httpStatusError
	if errors.As(err, &status) {
		return status.RetryAfter, status.transient()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return 0, true
	}
	return 0, false
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return max(time.Duration(seconds)*time.Second, 0)
	}
	if when, err := http.ParseTime(value); err == nil {
		return max(time.Until(when), 0)
	}
	return 0
}
