package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMemoryCapacity is the per-queue buffer used when none is given.
const DefaultMemoryCapacity = 256

// MemoryBroker is a buffered, channel-backed Broker. Each named queue is
// created on first use. Unacknowledged deliveries are tracked so tests can
// assert the "received count equals acked count" property.
type MemoryBroker struct {
	capacity       int
	receiveTimeout time.Duration
	logger         *slog.Logger

	mu     sync.RWMutex
	queues map[string]*memoryQueue
	closed bool
}

type memoryQueue struct {
	messages chan []byte
	inFlight atomic.Int64
	acked    atomic.Int64
}

var _ Broker = (*MemoryBroker)(nil)

// NewMemoryBroker creates a broker with the given per-queue capacity.
// A receiveTimeout of zero makes Receive wait until ctx is done.
func NewMemoryBroker(capacity int, receiveTimeout time.Duration, logger *slog.Logger) *MemoryBroker {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryBroker{
		capacity:       capacity,
		receiveTimeout: receiveTimeout,
		logger:         logger.With("component", "memory_broker"),
		queues:         make(map[string]*memoryQueue),
	}
}

func (b *MemoryBroker) queue(name string) (*memoryQueue, error) {
	if name == "" {
		return nil, ErrEmptyQueue
	}

	b.mu.RLock()
	q, ok := b.queues[name]
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return nil, ErrQueueClosed
	}
	if ok {
		return q, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrQueueClosed
	}
	if q, ok = b.queues[name]; !ok {
		q = &memoryQueue{messages: make(chan []byte, b.capacity)}
		b.queues[name] = q
	}
	return q, nil
}

// Publish adds a copy of body to the queue. It never blocks: a full queue
// returns ErrQueueFull.
func (b *MemoryBroker) Publish(ctx context.Context, name string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q, err := b.queue(name)
	if err != nil {
		return err
	}

	msg := make([]byte, len(body))
	copy(msg, body)

	// Close takes the write lock, so holding the read lock keeps the channel open.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrQueueClosed
	}

	select {
	case q.messages <- msg:
		b.logger.Debug("message published",
			"queue", name,
			"queue_len", len(q.messages),
			"queue_cap", cap(q.messages))
		return nil
	default:
		return fmt.Errorf("%w: queue %s capacity %d reached", ErrQueueFull, name, cap(q.messages))
	}
}

// Receive implements Receiver.
func (b *MemoryBroker) Receive(ctx context.Context, name string) (*Delivery, error) {
	q, err := b.queue(name)
	if err != nil {
		return nil, err
	}

	var timeout <-chan time.Time
	if b.receiveTimeout > 0 {
		timer := time.NewTimer(b.receiveTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case msg, ok := <-q.messages:
		if !ok {
			return nil, ErrQueueClosed
		}
		q.inFlight.Add(1)
		return NewDelivery(name, msg, func(context.Context) error {
			q.inFlight.Add(-1)
			q.acked.Add(1)
			return nil
		}), nil
	case <-timeout:
		return nil, ErrNoMessage
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of messages waiting in the queue.
func (b *MemoryBroker) Len(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if q, ok := b.queues[name]; ok {
		return len(q.messages)
	}
	return 0
}

// InFlight returns the number of received but unacknowledged messages.
func (b *MemoryBroker) InFlight(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if q, ok := b.queues[name]; ok {
		return int(q.inFlight.Load())
	}
	return 0
}

// Acked returns the number of acknowledged messages.
func (b *MemoryBroker) Acked(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if q, ok := b.queues[name]; ok {
		return int(q.acked.Load())
	}
	return 0
}

// Close closes every queue. Later Publish and Receive calls return
// ErrQueueClosed; a Receive already waiting drains what is buffered first.
func (b *MemoryBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, q := range b.queues {
		close(q.messages)
	}
	b.logger.Info("memory broker closed")
}
