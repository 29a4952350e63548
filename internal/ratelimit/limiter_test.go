package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterUnlimitedDoesNotBlock(t *testing.T) {
	l := New("test", 0)
	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, "test", l.Name())
}

func TestLimiterBackoffBlocksWait(t *testing.T) {
	l := New("test", 0)
	l.Backoff(60 * time.Millisecond)
	require.True(t, l.Paused())

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	require.False(t, l.Paused())
}

func TestLimiterBackoffNeverShrinks(t *testing.T) {
	l := New("test", 0)
	l.Backoff(time.Hour)
	l.Backoff(time.Millisecond)
	require.Greater(t, l.pauseRemaining(), 59*time.Minute)
}

func TestLimiterWaitHonoursCancellation(t *testing.T) {
	l := New("test", 0)
	l.Backoff(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
