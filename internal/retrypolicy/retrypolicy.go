// Package retrypolicy implements the bounded retry contract used when
// calling the upstream model API: three attempts, exponential backoff
// starting at 250ms and capped at 8s, honoring a clamped Retry-After
// hint when the server supplies one.
package retrypolicy

import (
	"errors"
	"time"

	"github.com/0xfe/buddy-sub001/internal/errs"
)

// Policy is a bounded retry policy. The zero value is not usable; use
// Default.
type Policy struct {
	MaxAttempts    uint32
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Default returns the standard policy: 3 attempts, 250ms initial
// backoff doubling each attempt, capped at 8s.
func Default() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
	}
}

// ShouldRetry reports whether another attempt should be scheduled after
// err, given the zero-based attempt number that just failed.
func (p Policy) ShouldRetry(err error, attempt uint32) bool {
	if attempt+1 >= p.MaxAttempts {
		return false
	}
	var apiErr *errs.ApiError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Kind {
	case errs.ApiHTTP:
		return isTimeoutOrConnect(apiErr.Err)
	case errs.ApiStatus:
		return apiErr.Code == 429 || (apiErr.Code >= 500 && apiErr.Code <= 599)
	default:
		// LoginRequired and InvalidResponse are never retryable.
		return false
	}
}

// isTimeoutOrConnect classifies the wrapped transport error. It prefers
// the standard net.Error Timeout() hook and falls back to a Temporary-
// style marker interface some transports implement.
func isTimeoutOrConnect(err error) bool {
	if err == nil {
		return false
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return true
	}
	var connectErr interface{ IsConnect() bool }
	if errors.As(err, &connectErr) && connectErr.IsConnect() {
		return true
	}
	return false
}

// RetryDelayFor computes the delay to wait before the next attempt,
// preferring a Retry-After hint (clamped to [1, 300]s) over the
// exponential backoff schedule.
func (p Policy) RetryDelayFor(attempt uint32, err error) time.Duration {
	var apiErr *errs.ApiError
	if errors.As(err, &apiErr) {
		if secs, ok := apiErr.RetryAfterSeconds(); ok {
			if secs < 1 {
				secs = 1
			} else if secs > 300 {
				secs = 300
			}
			return time.Duration(secs) * time.Second
		}
	}

	pow := uint64(1) << attempt // saturating in practice: attempt is tiny
	if attempt >= 63 {
		pow = 1 << 63
	}
	millis := uint64(p.InitialBackoff.Milliseconds()) * pow
	maxMillis := uint64(p.MaxBackoff.Milliseconds())
	if millis > maxMillis {
		millis = maxMillis
	}
	return time.Duration(millis) * time.Millisecond
}
