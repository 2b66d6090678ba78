package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errUnavailable = errors.New("503 service unavailable")

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts: attempts,
		BaseDelay:   time.Microsecond,
		MaxDelay:    time.Millisecond,
		Multiplier:  2,
	}
}

func TestAlwaysTransientTerminates(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(7), func(ctx context.Context, attempt int) (int, error) {
		calls++
		require.Equal(t, calls, attempt)
		return 0, Transient(errUnavailable)
	})
	require.ErrorIs(t, err, ErrExhausted)
	require.ErrorIs(t, err, errUnavailable)
	require.Equal(t, 7, calls)
}

func TestDefaultsAreBounded(t *testing.T) {
	calls := 0
	policy := Policy{BaseDelay: 0, MaxDelay: time.Nanosecond}
	_, err := Do(context.Background(), policy, func(ctx context.Context, attempt int) (struct{}, error) {
		calls++
		return struct{}{}, Transient(errUnavailable)
	})
	require.ErrorIs(t, err, ErrExhausted)
	require.Equal(t, DefaultMaxAttempts, calls)
}

func TestSucceedsAfterTransient(t *testing.T) {
	value, err := Do(context.Background(), fastPolicy(5), func(ctx context.Context, attempt int) (string, error) {
		if attempt < 3 {
			return "", Transient(errUnavailable)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", value)
}

func TestPermanentErrorStopsImmediately(t *testing.T) {
	permanent := errors.New("bad request")
	calls := 0
	_, err := Do(context.Background(), fastPolicy(5), func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, permanent
	})
	require.ErrorIs(t, err, permanent)
	require.NotErrorIs(t, err, ErrExhausted)
	require.Equal(t, 1, calls)
}

func TestForeverStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := fastPolicy(1)
	policy.Forever = true
	_, err := Do(ctx, policy, func(ctx context.Context, attempt int) (int, error) {
		calls++
		if calls == 50 {
			cancel()
		}
		return 0, Transient(errUnavailable)
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 50, calls)
}

func TestDelay(t *testing.T) {
	policy := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
	require.Equal(t, 100*time.Millisecond, policy.Delay(1))
	require.Equal(t, 200*time.Millisecond, policy.Delay(2))
	require.Equal(t, 800*time.Millisecond, policy.Delay(4))
	require.Equal(t, time.Second, policy.Delay(5))
	require.Equal(t, time.Second, policy.Delay(40))
}
