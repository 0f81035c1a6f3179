package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatusError struct {
	status int
}

func (e *fakeStatusError) Error() string   { return http.StatusText(e.status) }
func (e *fakeStatusError) HTTPStatus() int { return e.status }

// fastPolicy keeps backoff waits short enough for tests
func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Multiplier:  2.0,
		RetryIf:     DefaultRetryIf,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastPolicy(4), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
	assert.Equal(t, OutcomeSuccess, Classify(err))
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastPolicy(4), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, &fakeStatusError{status: http.StatusServiceUnavailable}
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(4), func(ctx context.Context) (int, error) {
		calls++
		return 0, &fakeStatusError{status: http.StatusBadGateway}
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Len(t, exhausted.Attempts, 4)
	assert.Equal(t, OutcomeRetryable, Classify(err))

	// the first attempt has no preceding delay, later ones do
	assert.Equal(t, time.Duration(0), exhausted.Attempts[0].Delay)
	assert.Greater(t, exhausted.Attempts[1].Delay, time.Duration(0))
}

func TestDoStopsOnTerminalError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(4), func(ctx context.Context) (int, error) {
		calls++
		return 0, &fakeStatusError{status: http.StatusNotFound}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "404 must not be retried")

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, OutcomeTerminal, Classify(err))
}

func TestDoCancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, fastPolicy(4), func(ctx context.Context) (int, error) {
		calls++
		return 0, nil
	})
	require.Error(t, err)
	assert.Equal(t, 0, calls)

	var cancelled *CancelledError
	require.ErrorAs(t, err, &cancelled)
	assert.Equal(t, OutcomeCancelled, Classify(err))
}

func TestDoCancelledDuringBackoffWait(t *testing.T) {
	policy := Policy{
		MaxAttempts: 3,
		BaseDelay:   5 * time.Second,
		MaxDelay:    5 * time.Second,
		Multiplier:  1.0,
		RetryIf:     DefaultRetryIf,
	}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, policy, func(ctx context.Context) (int, error) {
			calls++
			return 0, &fakeStatusError{status: http.StatusInternalServerError}
		})
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		var cancelled *CancelledError
		require.ErrorAs(t, err, &cancelled)
		assert.Equal(t, 1, calls, "cancellation during the wait must not start another attempt")
		assert.Len(t, cancelled.Attempts, 1)
	case <-time.After(time.Second):
		t.Fatal("Do did not abort the backoff wait on cancellation")
	}
}

func TestDoOperationObservesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, fastPolicy(4), func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, context.Canceled
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, OutcomeCancelled, Classify(err))
}

func TestBackoffDelayBounds(t *testing.T) {
	policy := Policy{
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
	}

	assert.Equal(t, time.Second, backoffDelay(policy, 1))
	assert.Equal(t, 2*time.Second, backoffDelay(policy, 2))
	assert.Equal(t, 4*time.Second, backoffDelay(policy, 3))
	// capped at MaxDelay from the fifth failure on
	assert.Equal(t, 10*time.Second, backoffDelay(policy, 5))
	assert.Equal(t, 10*time.Second, backoffDelay(policy, 20))
}

func TestBackoffDelayJitterStaysWithinBand(t *testing.T) {
	policy := Policy{
		BaseDelay:  time.Second,
		MaxDelay:   time.Minute,
		Multiplier: 2.0,
		Jitter:     true,
	}
	for i := 0; i < 200; i++ {
		d := backoffDelay(policy, 2)
		assert.GreaterOrEqual(t, d, time.Duration(float64(2*time.Second)*0.9))
		assert.LessOrEqual(t, d, time.Duration(float64(2*time.Second)*1.1))
	}
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(errors.New("parse failure")))
	assert.True(t, DefaultRetryIf(context.DeadlineExceeded))
	assert.True(t, DefaultRetryIf(&fakeStatusError{status: 500}))
	assert.True(t, DefaultRetryIf(&fakeStatusError{status: 429}))
	assert.True(t, DefaultRetryIf(&fakeStatusError{status: 408}))
	assert.False(t, DefaultRetryIf(&fakeStatusError{status: 404}))
	assert.False(t, DefaultRetryIf(&fakeStatusError{status: 400}))
}

func TestInteractivePolicyDoesNotRetryTimeouts(t *testing.T) {
	policy := InteractivePolicy()
	assert.False(t, policy.RetryIf(context.DeadlineExceeded))
	assert.True(t, policy.RetryIf(&fakeStatusError{status: 503}))
}
