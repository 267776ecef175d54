package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/platform/logger"
	"github.com/phrazzld/vivaflow/internal/queue"
)

// Submission errors
var (
	// ErrSourceMissing is returned by a PayloadBuilder when the material the
	// model needs (extracted text, brief, prompt) is absent or empty.
	ErrSourceMissing = errors.New("source material missing")

	// ErrPublishFailed wraps broker errors at publish time.
	ErrPublishFailed = errors.New("failed to publish task")

	ErrNilPublisher = errors.New("publisher cannot be nil")
	ErrNilTracker   = errors.New("status tracker cannot be nil")
	ErrEmptyQueue   = errors.New("queue name cannot be empty")
)

// StatusTracker reads and writes an entity's task status fields.
type StatusTracker interface {
	Status(ctx context.Context, id string, field domain.StatusField) (domain.Status, error)
	SetStatus(ctx context.Context, id string, field domain.StatusField, status domain.Status) error
}

// PayloadBuilder fetches the source material for one task type and returns
// the envelope data. It returns ErrSourceMissing when there is nothing to
// send.
type PayloadBuilder interface {
	BuildPayload(ctx context.Context, entityID string) (any, error)
}

// PayloadBuilderFunc adapts a function to PayloadBuilder.
type PayloadBuilderFunc func(ctx context.Context, entityID string) (any, error)

// BuildPayload implements PayloadBuilder.
func (f PayloadBuilderFunc) BuildPayload(ctx context.Context, entityID string) (any, error) {
	return f(ctx, entityID)
}

// SubmitResult says what Submit did with a request.
type SubmitResult string

// Possible submit results
const (
	SubmitPublished  SubmitResult = "published"
	SubmitSuppressed SubmitResult = "suppressed"
)

// Submitter is the application-side entry point for AI work. It moves the
// entity to INPROGRESS and publishes an envelope whose uuid is the entity id.
type Submitter struct {
	publisher queue.Publisher
	queue     string
	tracker   StatusTracker
	builders  map[Type]PayloadBuilder
	dedup     *Deduplicator
	logger    *slog.Logger
}

// NewSubmitter creates a Submitter publishing to queueName. Task types
// without a builder are rejected by Submit.
func NewSubmitter(
	publisher queue.Publisher,
	queueName string,
	tracker StatusTracker,
	builders map[Type]PayloadBuilder,
	dedup *Deduplicator,
	logger *slog.Logger,
) (*Submitter, error) {
	if publisher == nil {
		return nil, ErrNilPublisher
	}
	if tracker == nil {
		return nil, ErrNilTracker
	}
	if queueName == "" {
		return nil, ErrEmptyQueue
	}
	if dedup == nil {
		dedup = NewDeduplicator(DefaultDebounceWindow)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		publisher: publisher,
		queue:     queueName,
		tracker:   tracker,
		builders:  builders,
		dedup:     dedup,
		logger:    logger.With("component", "task_submitter"),
	}, nil
}

// Submit requests AI work of type t for entity entityID.
//
// When the source material is missing the entity goes to ERROR and nothing
// is published. When an identical envelope was published within the
// debounce window the call is a logged no-op returning SubmitSuppressed.
// Otherwise the entity moves to INPROGRESS before publishing; a publish
// failure moves it to ERROR and returns ErrPublishFailed.
func (s *Submitter) Submit(ctx context.Context, t Type, entityID string) (SubmitResult, error) {
	field, ok := t.StatusField()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTaskType, t)
	}
	builder, ok := s.builders[t]
	if !ok || builder == nil {
		return "", fmt.Errorf("%w: no payload builder for %q", ErrUnknownTaskType, t)
	}

	log := logger.FromContextOrDefault(ctx, s.logger).With(
		"task_type", string(t),
		"entity_id", entityID,
	)

	payload, err := builder.BuildPayload(ctx, entityID)
	if err != nil {
		if errors.Is(err, ErrSourceMissing) {
			log.Warn("source material missing, marking task failed", "error", err)
			if markErr := s.failBeforeSend(ctx, entityID, field); markErr != nil {
				log.Error("failed to mark entity as errored", "error", markErr)
				return "", errors.Join(err, markErr)
			}
		}
		return "", err
	}

	env, err := NewEnvelope(t, entityID, payload)
	if err != nil {
		return "", err
	}
	body, err := env.Marshal()
	if err != nil {
		return "", err
	}

	if !s.dedup.Claim(body) {
		log.Info("duplicate task suppressed within debounce window")
		return SubmitSuppressed, nil
	}

	if err := s.start(ctx, entityID, field); err != nil {
		s.dedup.Release(body)
		return "", err
	}

	if err := s.publisher.Publish(ctx, s.queue, body); err != nil {
		log.Error("failed to publish task", "error", err)
		s.dedup.Release(body)
		if markErr := s.tracker.SetStatus(ctx, entityID, field, domain.StatusError); markErr != nil {
			log.Error("failed to mark entity as errored after publish failure", "error", markErr)
		}
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	log.Info("task published", "queue", s.queue, "bytes", len(body))
	return SubmitPublished, nil
}

// start moves field to INPROGRESS, resetting to PENDING first when a
// previous attempt left it elsewhere.
func (s *Submitter) start(ctx context.Context, id string, field domain.StatusField) error {
	if err := s.reset(ctx, id, field); err != nil {
		return err
	}
	return s.tracker.SetStatus(ctx, id, field, domain.StatusInProgress)
}

func (s *Submitter) failBeforeSend(ctx context.Context, id string, field domain.StatusField) error {
	if err := s.reset(ctx, id, field); err != nil {
		return err
	}
	return s.tracker.SetStatus(ctx, id, field, domain.StatusError)
}

func (s *Submitter) reset(ctx context.Context, id string, field domain.StatusField) error {
	current, err := s.tracker.Status(ctx, id, field)
	if err != nil {
		return err
	}
	if current == domain.StatusPending {
		return nil
	}
	return s.tracker.SetStatus(ctx, id, field, domain.StatusPending)
}
