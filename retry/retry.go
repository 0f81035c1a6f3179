// Package retry provides a bounded retry executor with exponential
// backoff, jitter and cooperative cancellation for outbound calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"syscall"
	"time"
)

// Policy configures retry behaviour for one class of operation.
// A Policy value is immutable; construct it once and share it.
type Policy struct {
	MaxAttempts int           // total attempts including the first, >= 1
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // ceiling for any single delay
	Multiplier  float64       // backoff growth factor, >= 1
	Jitter      bool          // apply +-10% to each delay
	RetryIf     func(error) bool
}

// Attempt records one try of the wrapped operation
type Attempt struct {
	Number int           `json:"number"`
	Delay  time.Duration `json:"delay"`
	Err    error         `json:"-"`
	At     time.Time     `json:"at"`
}

// ExhaustedError is returned when the operation failed on its final
// attempt or hit a non-retryable error. It carries the full attempt
// trail for diagnostics.
type ExhaustedError struct {
	Attempts []Attempt
	Elapsed  time.Duration
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempt(s) in %s: %v",
		len(e.Attempts), e.Elapsed.Round(time.Millisecond), e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// CancelledError is returned when the caller's context is cancelled
// before or during a retry wait. Cancellation never triggers a further
// attempt and is never counted as an operation failure.
type CancelledError struct {
	Attempts []Attempt
	Cause    error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("retry cancelled after %d attempt(s): %v", len(e.Attempts), e.Cause)
}

func (e *CancelledError) Unwrap() error { return e.Cause }

// Outcome is the tagged classification of an error returned by Do,
// so callers branch on an explicit case instead of error shape.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomeTerminal
	OutcomeCancelled
)

// Classify maps an error returned by Do to its outcome case
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	var cancelled *CancelledError
	if errors.As(err, &cancelled) {
		return OutcomeCancelled
	}
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		if DefaultRetryIf(exhausted.LastErr) {
			return OutcomeRetryable
		}
		return OutcomeTerminal
	}
	return OutcomeTerminal
}

// statusCoder is implemented by provider errors carrying an HTTP status
type statusCoder interface {
	HTTPStatus() int
}

// DefaultRetryIf retries connection failures, DNS errors, timeouts and
// HTTP 5xx/429/408 responses. Cancellation is never retried.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		status := sc.HTTPStatus()
		return status >= 500 || status == 429 || status == 408
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// NetworkPolicy is the aggressive policy used by scheduled refreshes
func NetworkPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
		RetryIf:     DefaultRetryIf,
	}
}

// InteractivePolicy is used for user-initiated lookups: fewer attempts
// and no retry on timeouts, so a slow provider fails the request fast
func InteractivePolicy() Policy {
	return Policy{
		MaxAttempts: 2,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
		RetryIf: func(err error) bool {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return false
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			return DefaultRetryIf(err)
		},
	}
}

// Do executes op under the given policy. It returns the operation's
// result, or *ExhaustedError when attempts run out or the error is not
// retryable, or *CancelledError when ctx is cancelled. Retries happen
// sequentially in place; each backoff wait aborts promptly on ctx.Done.
func Do[T any](ctx context.Context, policy Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 1
	}
	retryIf := policy.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}

	start := time.Now()
	attempts := make([]Attempt, 0, policy.MaxAttempts)
	var delay time.Duration

	for number := 1; number <= policy.MaxAttempts; number++ {
		if err := ctx.Err(); err != nil {
			return zero, &CancelledError{Attempts: attempts, Cause: err}
		}

		result, err := op(ctx)
		attempts = append(attempts, Attempt{Number: number, Delay: delay, Err: err, At: time.Now()})
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return zero, &CancelledError{Attempts: attempts, Cause: err}
		}
		if number == policy.MaxAttempts || !retryIf(err) {
			return zero, &ExhaustedError{Attempts: attempts, Elapsed: time.Since(start), LastErr: err}
		}

		delay = backoffDelay(policy, number)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &CancelledError{Attempts: attempts, Cause: ctx.Err()}
		case <-timer.C:
		}
	}

	// loop always returns from inside
	return zero, &ExhaustedError{Attempts: attempts, Elapsed: time.Since(start)}
}

// backoffDelay computes the wait after a failed attempt:
// min(base * multiplier^(attempt-1), max), +-10% when jitter is on
func backoffDelay(policy Policy, failedAttempt int) time.Duration {
	delay := float64(policy.BaseDelay) * math.Pow(policy.Multiplier, float64(failedAttempt-1))
	if max := float64(policy.MaxDelay); policy.MaxDelay > 0 && delay > max {
		delay = max
	}
	if policy.Jitter {
		delay *= 0.9 + 0.2*rand.Float64()
	}
	return time.Duration(delay)
}
