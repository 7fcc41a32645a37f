// Package timer drives the per-attempt countdown shown to a connected client.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/stemsi/mocktest-backend/internal/model"
)

// DefaultInterval is the tick period of a Countdown.
const DefaultInterval = time.Second

// Countdown recomputes the remaining time from the attempt's start time on
// every tick and fires OnExpire exactly once when it reaches zero.
type Countdown struct {
	startedAt       time.Time
	durationMinutes int
	interval        time.Duration
	now             func() time.Time

	onTick   func(remaining time.Duration)
	onExpire func()

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Option configures a Countdown.
type Option func(*Countdown)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Countdown) { c.now = now }
}

// WithInterval replaces the one-second tick period.
func WithInterval(d time.Duration) Option {
	return func(c *Countdown) { c.interval = d }
}

// OnTick registers the callback invoked with the remaining time on every tick.
func OnTick(fn func(remaining time.Duration)) Option {
	return func(c *Countdown) { c.onTick = fn }
}

// OnExpire registers the callback invoked once when the time runs out.
func OnExpire(fn func()) Option {
	return func(c *Countdown) { c.onExpire = fn }
}

// NewCountdown creates a stopped countdown for an attempt.
func NewCountdown(startedAt time.Time, durationMinutes int, opts ...Option) *Countdown {
	c := &Countdown{
		startedAt:       startedAt,
		durationMinutes: durationMinutes,
		interval:        DefaultInterval,
		now:             time.Now,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Remaining is the time left at the countdown's clock.
func (c *Countdown) Remaining() time.Duration {
	return model.RemainingTime(c.now(), c.startedAt, c.durationMinutes)
}

// Start runs the countdown in its own goroutine until it expires, Stop is
// called or ctx is cancelled.
func (c *Countdown) Start(ctx context.Context) {
	go c.run(ctx)
}

// Stop halts the countdown without firing OnExpire. It is safe to call more than once.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Done is closed when the countdown goroutine exits.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}

func (c *Countdown) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if c.tick() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
		}
	}
}

// tick reports the remaining time and returns true once the countdown expired.
func (c *Countdown) tick() bool {
	remaining := c.Remaining()
	if c.onTick != nil {
		c.onTick(remaining)
	}
	if remaining > 0 {
		return false
	}
	if c.onExpire != nil {
		c.onExpire()
	}
	return true
}
