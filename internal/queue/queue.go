package queue

import (
	"context"
	"errors"
	"sync"
)

// Common errors returned by brokers.
var (
	// ErrNoMessage is returned by Receive when no message arrived before the
	// receive timeout elapsed. Consume loops treat it as a normal idle tick.
	ErrNoMessage = errors.New("no message available")

	ErrQueueClosed  = errors.New("queue is closed")
	ErrQueueFull    = errors.New("queue is full")
	ErrAlreadyAcked = errors.New("delivery already acknowledged")
	ErrEmptyQueue   = errors.New("queue name cannot be empty")
)

// Publisher appends messages to a named queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Receiver takes the next message from a named queue. The message is not
// removed for good until the returned Delivery is acknowledged.
type Receiver interface {
	// Receive blocks until a message is available, the broker's receive
	// timeout elapses (ErrNoMessage), or ctx is done.
	Receive(ctx context.Context, queue string) (*Delivery, error)
}

// Broker is the combination both sides of the protocol need.
type Broker interface {
	Publisher
	Receiver
}

// Delivery is a received, not yet acknowledged message.
type Delivery struct {
	Queue string
	Body  []byte

	mu    sync.Mutex
	acked bool
	ack   func(ctx context.Context) error
}

// NewDelivery builds a Delivery whose Ack runs ack. Brokers outside this
// package use it to plug into the consume loops.
func NewDelivery(queue string, body []byte, ack func(ctx context.Context) error) *Delivery {
	return &Delivery{Queue: queue, Body: body, ack: ack}
}

// Ack removes the message from the queue. A second call returns
// ErrAlreadyAcked without touching the broker.
func (d *Delivery) Ack(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.acked {
		return ErrAlreadyAcked
	}
	if d.ack != nil {
		if err := d.ack(ctx); err != nil {
			return err
		}
	}
	d.acked = true
	return nil
}

// Acked reports whether Ack has succeeded.
func (d *Delivery) Acked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acked
}
