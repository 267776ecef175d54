package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/vivaflow/internal/generation"
	"github.com/phrazzld/vivaflow/internal/platform/logger"
	"github.com/phrazzld/vivaflow/internal/queue"
	"github.com/phrazzld/vivaflow/internal/redact"
	"github.com/phrazzld/vivaflow/internal/task"
)

// Processor errors
var (
	ErrNilBroker    = errors.New("broker cannot be nil")
	ErrNilGenerator = errors.New("generator cannot be nil")
	ErrEmptyQueues  = errors.New("request and response queue names are required")
)

// Queues names the queue the worker reads requests from and the queue it
// writes responses to.
type Queues struct {
	Requests  string
	Responses string
}

// Processor consumes request envelopes one at a time, generates a result
// for each and publishes it as a response envelope.
type Processor struct {
	broker    queue.Broker
	queues    Queues
	generator generation.Generator
	routines  map[task.Type]*Routine
	logger    *slog.Logger
}

// NewProcessor creates a Processor with a routine for every task type.
func NewProcessor(broker queue.Broker, queues Queues, generator generation.Generator, logger *slog.Logger) (*Processor, error) {
	if broker == nil {
		return nil, ErrNilBroker
	}
	if generator == nil {
		return nil, ErrNilGenerator
	}
	if queues.Requests == "" || queues.Responses == "" {
		return nil, ErrEmptyQueues
	}
	if logger == nil {
		logger = slog.Default()
	}
	routines, err := Routines()
	if err != nil {
		return nil, err
	}
	return &Processor{
		broker:    broker,
		queues:    queues,
		generator: generator,
		routines:  routines,
		logger:    logger.With("component", "worker_processor"),
	}, nil
}

// Run consumes the request queue until ctx is done.
func (p *Processor) Run(ctx context.Context) error {
	return queue.Consume(ctx, p.broker, p.queues.Requests, p.logger, p.Process)
}

// Process handles one request. The request is acknowledged once a response
// has been published, or straight away when it cannot be answered at all.
// A request interrupted by shutdown, or whose response could not be
// published, is left unacknowledged so the broker redelivers it.
func (p *Processor) Process(ctx context.Context, d *queue.Delivery) {
	env, err := task.ParseEnvelope(d.Body)
	if err != nil {
		p.logger.Error("dropping malformed request", "error", err, "bytes", len(d.Body))
		p.ack(ctx, d)
		return
	}

	log := p.logger.With("task_type", string(env.Type), "entity_id", env.UUID)
	ctx = logger.WithLogger(ctx, log)

	data, err := p.generate(ctx, env)
	if err != nil && ctx.Err() != nil {
		log.Warn("request interrupted, leaving it for redelivery", "error", err)
		return
	}
	if err != nil {
		code := errorCode(err)
		log.Error("generation failed", "error", err, "code", code)
		data = task.ErrorData(code, redact.Error(err))
	}

	if err := p.respond(ctx, env, data); err != nil {
		log.Error("failed to publish response, leaving request for redelivery", "error", err)
		return
	}
	p.ack(ctx, d)
}

func (p *Processor) generate(ctx context.Context, env task.Envelope) (json.RawMessage, error) {
	routine, ok := p.routines[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", task.ErrUnknownTaskType, env.Type)
	}

	req, err := routine.Request(env.Data)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := p.generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := routine.CheckOutput(out); err != nil {
		return nil, err
	}

	logger.FromContextOrDefault(ctx, p.logger).Info("generation completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"bytes", len(out))
	return out, nil
}

func (p *Processor) respond(ctx context.Context, req task.Envelope, data json.RawMessage) error {
	resp, err := task.NewEnvelope(req.Type, req.UUID, data)
	if err != nil {
		return err
	}
	body, err := resp.Marshal()
	if err != nil {
		return err
	}
	if err := p.broker.Publish(context.WithoutCancel(ctx), p.queues.Responses, body); err != nil {
		return err
	}
	logger.FromContextOrDefault(ctx, p.logger).Debug("response published", "queue", p.queues.Responses)
	return nil
}

func (p *Processor) ack(ctx context.Context, d *queue.Delivery) {
	if err := d.Ack(context.WithoutCancel(ctx)); err != nil {
		p.logger.Error("failed to acknowledge request", "error", err)
	}
}

// errorCode maps a generation failure to the code carried in the
// error-shaped response.
func errorCode(err error) string {
	switch {
	case errors.Is(err, task.ErrUnknownTaskType):
		return task.ErrorCodeUnsupportedType
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, generation.ErrEmptyPrompt):
		return task.ErrorCodeInvalidRequest
	case errors.Is(err, generation.ErrContentBlocked):
		return task.ErrorCodeContentBlocked
	case errors.Is(err, generation.ErrInvalidResponse), errors.Is(err, ErrOutputMismatch):
		return task.ErrorCodeInvalidResponse
	default:
		return task.ErrorCodeGenerationFailed
	}
}
