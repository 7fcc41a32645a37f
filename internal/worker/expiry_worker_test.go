package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSweeper struct {
	mu      sync.Mutex
	results []int
	err     error
	calls   int
	limits  []int
}

func (s *scriptedSweeper) SweepExpired(_ context.Context, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.limits = append(s.limits, limit)
	if s.err != nil {
		return 0, s.err
	}
	if len(s.results) == 0 {
		return 0, nil
	}
	n := s.results[0]
	s.results = s.results[1:]
	return n, nil
}

func (s *scriptedSweeper) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestSweepDrainsFullBatches(t *testing.T) {
	s := &scriptedSweeper{results: []int{ExpirySweepBatch, ExpirySweepBatch, 7}}
	w := NewExpiryWorker(s, time.Second, zerolog.Nop())

	w.sweep(context.Background())

	assert.Equal(t, 3, s.callCount())
	for _, l := range s.limits {
		assert.Equal(t, ExpirySweepBatch, l)
	}
}

func TestSweepStopsOnError(t *testing.T) {
	s := &scriptedSweeper{err: errors.New("db down")}
	w := NewExpiryWorker(s, time.Second, zerolog.Nop())

	w.sweep(context.Background())
	assert.Equal(t, 1, s.callCount())
}

func TestStartRunsUntilCancelled(t *testing.T) {
	s := &scriptedSweeper{}
	w := NewExpiryWorker(s, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.callCount() >= 2 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestStartDisabled(t *testing.T) {
	s := &scriptedSweeper{}
	w := NewExpiryWorker(s, 0, zerolog.Nop())

	w.Start(context.Background())
	assert.Zero(t, s.callCount())
}
