package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy(maxAttempts int) Policy {
	return Policy{MaxAttempts: maxAttempts, Backoff: Exponential(10*time.Millisecond, 0)}
}

func TestDo_Success(t *testing.T) {
	attempts := 0
	n, err := Do(context.Background(), testPolicy(3), func(context.Context) error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
	assert.Equal(t, 1, n)
}

func TestDo_EventualSuccess(t *testing.T) {
	attempts := 0
	n, err := Do(context.Background(), testPolicy(5), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
	assert.Equal(t, 3, n)
}

func TestDo_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")
	n, err := Do(context.Background(), testPolicy(3), func(context.Context) error {
		attempts++
		return expectedErr
	})
	require.Error(t, err)
	assert.Equal(t, expectedErr, err, "should return the original error")
	assert.Equal(t, 3, attempts, "should attempt exactly MaxAttempts times")
	assert.Equal(t, 3, n)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	errBadInput := errors.New("bad input")
	policy := testPolicy(5)
	policy.Retryable = func(err error) bool { return !errors.Is(err, errBadInput) }

	attempts := 0
	_, err := Do(context.Background(), policy, func(context.Context) error {
		attempts++
		return errBadInput
	})
	require.ErrorIs(t, err, errBadInput)
	assert.Equal(t, 1, attempts)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	inner := errors.New("unauthorized")
	attempts := 0
	_, err := Do(context.Background(), testPolicy(5), func(context.Context) error {
		attempts++
		return Permanent(inner)
	})
	require.ErrorIs(t, err, inner)
	assert.Equal(t, 1, attempts)
	assert.False(t, IsPermanent(err), "top-level permanent marker is removed")
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	_, err := Do(ctx, testPolicy(10), func(context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled, "should return context.Canceled")
	assert.LessOrEqual(t, attempts, 2, "should stop when context is canceled")
}

func TestDo_ContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attempts := 0
	_, err := Do(ctx, testPolicy(10), func(context.Context) error {
		attempts++
		time.Sleep(30 * time.Millisecond)
		return errors.New("error")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.LessOrEqual(t, attempts, 3)
}

func TestDo_ExponentialBackoff(t *testing.T) {
	attempts := 0
	var delays []time.Duration
	lastTime := time.Now()

	_, err := Do(context.Background(), testPolicy(5), func(context.Context) error {
		attempts++
		if attempts > 1 {
			delays = append(delays, time.Since(lastTime))
		}
		lastTime = time.Now()
		if attempts < 4 {
			return errors.New("error")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, attempts)

	require.Len(t, delays, 3, "should have 3 delays")
	assert.Greater(t, delays[1], delays[0], "second delay should be greater than first")
	assert.Greater(t, delays[2], delays[1], "third delay should be greater than second")
}

func TestDo_ZeroMaxAttempts(t *testing.T) {
	attempts := 0
	_, err := Do(context.Background(), Policy{}, func(context.Context) error {
		attempts++
		return nil
	})
	require.ErrorIs(t, err, ErrInvalidMaxAttempts)
	assert.Equal(t, 0, attempts)
}

func TestDo_OnRetry(t *testing.T) {
	var seen []int
	policy := Policy{
		MaxAttempts: 3,
		Backoff:     Immediate(),
		OnRetry:     func(attempt int, _ error, _ time.Duration) { seen = append(seen, attempt) },
	}
	_, err := Do(context.Background(), policy, func(context.Context) error { return errors.New("x") })
	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}
