package task

import (
	"context"
	"errors"
	"log/slog"

	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/queue"
)

// Dispatcher errors
var (
	ErrNilReceiver = errors.New("receiver cannot be nil")
	ErrNilRegistry = errors.New("registry cannot be nil")
)

// Dispatcher consumes the inbound queue and routes each response envelope
// to the handler registered for its type. Every received message is
// acknowledged exactly once, whatever the outcome: malformed and unknown
// messages are dropped, handler failures are logged.
type Dispatcher struct {
	receiver queue.Receiver
	queue    string
	registry *Registry
	tracker  StatusTracker
	chain    []Middleware
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. Middleware wraps every handler call;
// when none is given Recover and Logging are used.
func NewDispatcher(
	receiver queue.Receiver,
	queueName string,
	registry *Registry,
	tracker StatusTracker,
	logger *slog.Logger,
	middleware ...Middleware,
) (*Dispatcher, error) {
	if receiver == nil {
		return nil, ErrNilReceiver
	}
	if queueName == "" {
		return nil, ErrEmptyQueue
	}
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if tracker == nil {
		return nil, ErrNilTracker
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "task_dispatcher")
	if len(middleware) == 0 {
		middleware = []Middleware{Logging(logger), Recover()}
	}
	return &Dispatcher{
		receiver: receiver,
		queue:    queueName,
		registry: registry,
		tracker:  tracker,
		chain:    middleware,
		logger:   logger,
	}, nil
}

// Run consumes until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	return queue.Consume(ctx, d.receiver, d.queue, d.logger, d.Process)
}

// Process handles one delivery and acknowledges it.
func (d *Dispatcher) Process(ctx context.Context, delivery *queue.Delivery) {
	defer d.ack(ctx, delivery)

	env, err := ParseEnvelope(delivery.Body)
	if err != nil {
		d.logger.Error("dropping malformed envelope",
			"error", err,
			"bytes", len(delivery.Body))
		return
	}

	h, ok := d.registry.Lookup(env.Type)
	if !ok {
		d.logger.Warn("dropping envelope with unknown task type",
			"task_type", string(env.Type),
			"entity_id", env.UUID)
		return
	}

	if err := Chain(h, d.chain...).Handle(ctx, env); err != nil {
		d.markFailed(ctx, env)
	}
}

// markFailed moves the entity to ERROR if the handler left it INPROGRESS.
func (d *Dispatcher) markFailed(ctx context.Context, env Envelope) {
	field, ok := env.Type.StatusField()
	if !ok {
		return
	}
	log := d.logger.With("task_type", string(env.Type), "entity_id", env.UUID)

	current, err := d.tracker.Status(ctx, env.UUID, field)
	if err != nil {
		log.Error("failed to read status after handler failure", "error", err)
		return
	}
	if current != domain.StatusInProgress {
		return
	}
	if err := d.tracker.SetStatus(ctx, env.UUID, field, domain.StatusError); err != nil {
		log.Error("failed to mark entity as errored after handler failure", "error", err)
		return
	}
	log.Warn("entity marked as errored by dispatcher")
}

func (d *Dispatcher) ack(ctx context.Context, delivery *queue.Delivery) {
	// Ack even when ctx is cancelled mid-message so shutdown does not strand it.
	if err := delivery.Ack(context.WithoutCancel(ctx)); err != nil {
		d.logger.Error("failed to acknowledge message", "error", err)
	}
}
