package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newSliding(t *testing.T) (Limiter, *fakeClock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return Limiter{Client: client, Prefix: "rl:preview", Now: clock.now}, clock, mr
}

func TestLimiterAllowSlidingWindow(t *testing.T) {
	limiter, clock, _ := newSliding(t)
	ctx := context.Background()
	window := 10 * time.Second

	for i := 0; i < 2; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "user:a", window, 2)
		require.NoError(t, err)
		require.True(t, allowed)
		require.Equal(t, 1-i, remaining)
		clock.advance(4 * time.Second)
	}

	allowed, remaining, reset, err := limiter.Allow(ctx, "user:a", window, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
	require.Equal(t, clock.t.Add(-8*time.Second).Add(window), reset)

	// The first event slides out after 10s; the second is still counted.
	clock.advance(3 * time.Second)
	allowed, remaining, _, err = limiter.Allow(ctx, "user:a", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Zero(t, remaining)
}

func TestLimiterRejectedEventsAreNotCounted(t *testing.T) {
	limiter, clock, mr := newSliding(t)
	ctx := context.Background()

	allowed, _, _, err := limiter.Allow(ctx, "user:b", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)

	for i := 0; i < 5; i++ {
		allowed, _, _, err = limiter.Allow(ctx, "user:b", time.Minute, 1)
		require.NoError(t, err)
		require.False(t, allowed)
	}
	members, err := mr.ZMembers("rl:preview:user:b")
	require.NoError(t, err)
	require.Len(t, members, 1)

	clock.advance(time.Minute + time.Second)
	allowed, _, _, err = limiter.Allow(ctx, "user:b", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestLimiterKeysAreIsolated(t *testing.T) {
	limiter, _, _ := newSliding(t)
	ctx := context.Background()

	allowed, _, _, err := limiter.Allow(ctx, "user:a", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)
	allowed, _, _, err = limiter.Allow(ctx, "user:b", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestLimiterWithoutClientAllows(t *testing.T) {
	allowed, remaining, _, err := Limiter{}.Allow(context.Background(), "k", time.Second, 3)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 3, remaining)
}
