package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ExpirySweepBatch caps how many attempts one sweep submits.
const ExpirySweepBatch = 100

// Sweeper submits attempts whose time ran out.
type Sweeper interface {
	SweepExpired(ctx context.Context, limit int) (int, error)
}

// ExpiryWorker periodically force-submits attempts that expired without an
// open stream to submit them.
type ExpiryWorker struct {
	sweeper  Sweeper
	interval time.Duration
	log      zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(sweeper Sweeper, interval time.Duration, log zerolog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		sweeper:  sweeper,
		interval: interval,
		log:      log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine. An interval of zero
// disables the worker.
func (w *ExpiryWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.log.Info().Msg("Worker disabled")
		return
	}
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep keeps submitting full batches until the backlog is cleared.
func (w *ExpiryWorker) sweep(ctx context.Context) {
	total := 0
	for ctx.Err() == nil {
		n, err := w.sweeper.SweepExpired(ctx, ExpirySweepBatch)
		if err != nil {
			w.log.Error().Err(err).Msg("Sweep failed")
			return
		}
		total += n
		if n < ExpirySweepBatch {
			break
		}
	}
	if total > 0 {
		w.log.Info().Int("submitted", total).Msg("Expired attempts submitted")
	}
}
