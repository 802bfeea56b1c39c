package backoff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comstore/storefront_sdk_go/internal/backoff"
)

func TestForAttemptGrowsAndCaps(t *testing.T) {
	b := backoff.New(backoff.Policy{BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond})

	require.Equal(t, 10*time.Millisecond, b.ForAttempt(0))
	require.Equal(t, 20*time.Millisecond, b.ForAttempt(1))
	require.Equal(t, 40*time.Millisecond, b.ForAttempt(2))
	require.Equal(t, 50*time.Millisecond, b.ForAttempt(3))
	require.Equal(t, 50*time.Millisecond, b.ForAttempt(64))
}

func TestForAttemptJitterBounds(t *testing.T) {
	b := backoff.New(backoff.Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Jitter: 0.5})
	for i := 0; i < 50; i++ {
		d := b.ForAttempt(0)
		require.GreaterOrEqual(t, d, 50*time.Millisecond)
		require.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestRetryStopsOnSuccess(t *testing.T) {
	b := backoff.New(backoff.Policy{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	calls := 0
	err := b.Retry(context.Background(), 5, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryReturnsLastError(t *testing.T) {
	b := backoff.New(backoff.Policy{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	boom := errors.New("boom")
	calls := 0
	err := b.Retry(context.Background(), 2, func(context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, calls)
}

func TestRetryHonoursContext(t *testing.T) {
	b := backoff.New(backoff.Policy{BaseDelay: time.Hour, MaxDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Retry(ctx, 3, func(context.Context) error { return errors.New("fail") })
	require.ErrorIs(t, err, context.Canceled)
}
