package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReadyKey is the list holding messages waiting to be received.
func ReadyKey(queueName string) string {
	return "queue:" + queueName + ":ready"
}

// ProcessingKey is the list holding received, unacknowledged messages.
func ProcessingKey(queueName string) string {
	return "queue:" + queueName + ":processing"
}

// ErrNilSession is returned when a RedisBroker is built without a session.
var ErrNilSession = errors.New("broker session cannot be nil")

// RedisBroker implements Broker on Redis lists. Receive atomically moves a
// message from the ready list to the processing list; Ack removes it from
// the processing list. Messages left in processing by a crashed consumer
// are returned to ready by Recover.
//
// Redis persists both lists, so queues survive a broker restart when the
// server runs with persistence enabled.
type RedisBroker struct {
	session        *Session
	receiveTimeout time.Duration
	logger         *slog.Logger
}

var _ Broker = (*RedisBroker)(nil)

// NewRedisBroker creates a broker over session.
func NewRedisBroker(session *Session, receiveTimeout time.Duration, logger *slog.Logger) (*RedisBroker, error) {
	if session == nil {
		return nil, ErrNilSession
	}
	if logger == nil {
		logger = slog.Default()
	}
	if receiveTimeout <= 0 {
		receiveTimeout = 5 * time.Second
	}
	return &RedisBroker{
		session:        session,
		receiveTimeout: receiveTimeout,
		logger:         logger.With("component", "redis_broker"),
	}, nil
}

// Publish implements Publisher.
func (b *RedisBroker) Publish(ctx context.Context, name string, body []byte) error {
	if name == "" {
		return ErrEmptyQueue
	}
	c, err := b.session.Client(ctx)
	if err != nil {
		return err
	}
	if err := c.RPush(ctx, ReadyKey(name), body).Err(); err != nil {
		b.session.observe(c, err)
		return fmt.Errorf("failed to publish to %s: %w", name, err)
	}
	b.logger.Debug("message published", "queue", name, "bytes", len(body))
	return nil
}

// Receive implements Receiver.
func (b *RedisBroker) Receive(ctx context.Context, name string) (*Delivery, error) {
	if name == "" {
		return nil, ErrEmptyQueue
	}
	c, err := b.session.Client(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.BLMove(ctx, ReadyKey(name), ProcessingKey(name), "LEFT", "RIGHT", b.receiveTimeout).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoMessage
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		b.session.observe(c, err)
		return nil, fmt.Errorf("failed to receive from %s: %w", name, err)
	}

	return NewDelivery(name, body, func(ctx context.Context) error {
		return b.ack(ctx, name, body)
	}), nil
}

func (b *RedisBroker) ack(ctx context.Context, name string, body []byte) error {
	c, err := b.session.Client(ctx)
	if err != nil {
		return err
	}
	removed, err := c.LRem(ctx, ProcessingKey(name), 1, body).Result()
	if err != nil {
		b.session.observe(c, err)
		return fmt.Errorf("failed to ack on %s: %w", name, err)
	}
	if removed == 0 {
		b.logger.Warn("acked message was not in processing list", "queue", name)
	}
	return nil
}

// Recover moves every unacknowledged message of the queue back to the front
// of the ready list, preserving their order. It returns how many moved.
func (b *RedisBroker) Recover(ctx context.Context, name string) (int, error) {
	c, err := b.session.Client(ctx)
	if err != nil {
		return 0, err
	}

	moved := 0
	for {
		err := c.LMove(ctx, ProcessingKey(name), ReadyKey(name), "RIGHT", "LEFT").Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			b.session.observe(c, err)
			return moved, fmt.Errorf("failed to recover %s: %w", name, err)
		}
		moved++
	}

	if moved > 0 {
		b.logger.Info("recovered unacknowledged messages", "queue", name, "count", moved)
	}
	return moved, nil
}

// Len returns the number of messages waiting in the ready list.
func (b *RedisBroker) Len(ctx context.Context, name string) (int64, error) {
	c, err := b.session.Client(ctx)
	if err != nil {
		return 0, err
	}
	n, err := c.LLen(ctx, ReadyKey(name)).Result()
	if err != nil {
		b.session.observe(c, err)
		return 0, err
	}
	return n, nil
}
