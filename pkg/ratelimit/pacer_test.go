package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return nil
}

func TestPacer_SpacesCallsPerKey(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := NewPacer(PacerOptions{Interval: time.Second, Now: clock.Now, Sleep: clock.Sleep})

	ctx := context.Background()
	require.NoError(t, p.Wait(ctx, "org1"))
	require.NoError(t, p.Wait(ctx, "org1"))
	clock.now = clock.now.Add(300 * time.Millisecond)
	require.NoError(t, p.Wait(ctx, "org1"))
	require.NoError(t, p.Wait(ctx, "org2"))

	require.Equal(t, []time.Duration{0, time.Second, 700 * time.Millisecond, 0}, clock.sleeps)
}

func TestPacer_HonoursCancellation(t *testing.T) {
	t.Parallel()

	p := NewPacer(PacerOptions{Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Wait(ctx, "org1"))
	cancel()
	require.ErrorIs(t, p.Wait(ctx, "org1"), context.Canceled)
}

func TestPacer_SharedStore(t *testing.T) {
	t.Parallel()

	p := NewPacer(PacerOptions{Interval: 10 * time.Millisecond, Store: NewMemoryStore()})
	ctx := context.Background()
	for range 3 {
		require.NoError(t, p.Wait(ctx, "org1"))
	}
}

func TestSharedRate(t *testing.T) {
	t.Parallel()

	require.Equal(t, limiter.Rate{Period: time.Minute, Limit: 60}, sharedRate(time.Second))
	require.Equal(t, limiter.Rate{Period: time.Minute, Limit: 120}, sharedRate(500*time.Millisecond))
	require.Equal(t, limiter.Rate{Period: 2 * time.Minute, Limit: 1}, sharedRate(2*time.Minute))
}
