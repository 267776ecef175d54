package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ProcessFunc handles one delivery. It owns the acknowledgment.
type ProcessFunc func(ctx context.Context, d *Delivery)

// receiveErrorDelay is how long Consume waits after a broker error before
// receiving again.
const receiveErrorDelay = time.Second

// Consume runs a pull loop on the named queue: receive, process, repeat.
// Messages are handled one at a time. It returns nil when ctx is done or
// the broker is closed.
func Consume(ctx context.Context, r Receiver, name string, logger *slog.Logger, process ProcessFunc) error {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("queue", name)
	log.Info("consumer started")
	defer log.Info("consumer stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		d, err := r.Receive(ctx, name)
		switch {
		case err == nil:
			process(ctx, d)
		case errors.Is(err, ErrNoMessage):
			continue
		case errors.Is(err, ErrQueueClosed):
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			if ctx.Err() != nil {
				return nil
			}
		default:
			log.Error("failed to receive message", "error", err)
			select {
			case <-time.After(receiveErrorDelay):
			case <-ctx.Done():
				return nil
			}
		}
	}
}
