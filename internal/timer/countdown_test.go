package timer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func waitDone(t *testing.T, c *Countdown) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("countdown did not finish")
	}
}

func TestCountdownExpiresOnce(t *testing.T) {
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	clk := &clock{now: start}

	var (
		expired atomic.Int32
		mu      sync.Mutex
		ticks   []time.Duration
	)
	c := NewCountdown(start, 10,
		WithClock(clk.Now),
		WithInterval(time.Millisecond),
		OnTick(func(remaining time.Duration) {
			mu.Lock()
			ticks = append(ticks, remaining)
			mu.Unlock()
		}),
		OnExpire(func() { expired.Add(1) }),
	)
	c.Start(context.Background())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ticks) >= 3
	}, 5*time.Second, time.Millisecond)

	clk.Set(start.Add(10 * time.Minute))
	waitDone(t, c)

	c.Stop()
	c.Stop()
	assert.Equal(t, int32(1), expired.Load())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10*time.Minute, ticks[0])
	assert.Zero(t, ticks[len(ticks)-1])
	for i := 1; i < len(ticks); i++ {
		assert.LessOrEqual(t, ticks[i], ticks[i-1])
	}
}

func TestCountdownAlreadyExpired(t *testing.T) {
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	clk := &clock{now: start.Add(time.Hour)}

	var expired atomic.Int32
	c := NewCountdown(start, 10, WithClock(clk.Now), OnExpire(func() { expired.Add(1) }))
	assert.Zero(t, c.Remaining())

	c.Start(context.Background())
	waitDone(t, c)
	assert.Equal(t, int32(1), expired.Load())
}

func TestCountdownStopDoesNotExpire(t *testing.T) {
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	clk := &clock{now: start}

	var expired atomic.Int32
	c := NewCountdown(start, 10,
		WithClock(clk.Now),
		WithInterval(time.Millisecond),
		OnExpire(func() { expired.Add(1) }),
	)
	c.Start(context.Background())
	c.Stop()
	waitDone(t, c)

	clk.Set(start.Add(time.Hour))
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, expired.Load())
}

func TestCountdownContextCancel(t *testing.T) {
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	clk := &clock{now: start}

	var expired atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCountdown(start, 10,
		WithClock(clk.Now),
		WithInterval(time.Millisecond),
		OnExpire(func() { expired.Add(1) }),
	)
	c.Start(ctx)
	cancel()
	waitDone(t, c)
	assert.Zero(t, expired.Load())
}

func TestCountdownRemainingIsRecomputed(t *testing.T) {
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	clk := &clock{now: start.Add(4 * time.Minute)}

	first := NewCountdown(start, 10, WithClock(clk.Now))
	assert.Equal(t, 6*time.Minute, first.Remaining())

	resumed := NewCountdown(start, 10, WithClock(clk.Now))
	assert.Equal(t, first.Remaining(), resumed.Remaining())
}
