package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/platform/logger"
	"github.com/phrazzld/vivaflow/internal/task"
)

// Handler errors
var (
	// ErrInvalidPayload is returned when response data does not have the
	// shape its task type requires.
	ErrInvalidPayload = errors.New("invalid response payload")

	// ErrWorkerFailure is returned when the worker answered with an
	// error-shaped response.
	ErrWorkerFailure = errors.New("worker reported failure")

	// ErrPersistFailed wraps store errors while saving an artifact.
	ErrPersistFailed = errors.New("failed to persist artifact")

	ErrNilTracker = errors.New("status tracker cannot be nil")
	ErrNilStore   = errors.New("store cannot be nil")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// base holds what every handler shares: the status field it drives and the
// tracker that writes it.
type base struct {
	taskType task.Type
	field    domain.StatusField
	tracker  task.StatusTracker
	logger   *slog.Logger
}

func newBase(t task.Type, tracker task.StatusTracker, log *slog.Logger) (base, error) {
	if tracker == nil {
		return base{}, ErrNilTracker
	}
	field, ok := t.StatusField()
	if !ok {
		return base{}, fmt.Errorf("%w: %q", task.ErrUnknownTaskType, t)
	}
	if log == nil {
		log = slog.Default()
	}
	return base{
		taskType: t,
		field:    field,
		tracker:  tracker,
		logger:   log.With("component", "task_handler", "task_type", string(t)),
	}, nil
}

// accept reports whether env should be processed. It ignores responses for
// entities that are not INPROGRESS and fails the entity on an error-shaped
// response.
func (b base) accept(ctx context.Context, env task.Envelope) (bool, error) {
	log := logger.FromContextOrDefault(ctx, b.logger)

	current, err := b.tracker.Status(ctx, env.UUID, b.field)
	if err != nil {
		return false, fmt.Errorf("failed to read %s of %s: %w", b.field, env.UUID, err)
	}
	if current != domain.StatusInProgress {
		log.Info("ignoring response for entity not in progress",
			"entity_id", env.UUID,
			"status", string(current))
		return false, nil
	}

	if detail, ok := task.ResponseError(env.Data); ok {
		return false, b.fail(ctx, env.UUID, fmt.Errorf("%w: %w", ErrWorkerFailure, detail))
	}
	return true, nil
}

// decode unmarshals and validates data into dst, failing the entity when
// either step fails.
func (b base) decode(ctx context.Context, env task.Envelope, dst any) error {
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return b.fail(ctx, env.UUID, fmt.Errorf("%w: %v", ErrInvalidPayload, err))
	}
	if err := validate.Struct(dst); err != nil {
		return b.fail(ctx, env.UUID, fmt.Errorf("%w: %v", ErrInvalidPayload, err))
	}
	return nil
}

func (b base) complete(ctx context.Context, id string) error {
	if err := b.tracker.SetStatus(ctx, id, b.field, domain.StatusCompleted); err != nil {
		return fmt.Errorf("failed to mark %s completed: %w", id, err)
	}
	logger.FromContextOrDefault(ctx, b.logger).Info("task completed", "entity_id", id)
	return nil
}

// fail moves the entity to ERROR and returns cause, joined with any error
// from the status write.
func (b base) fail(ctx context.Context, id string, cause error) error {
	log := logger.FromContextOrDefault(ctx, b.logger)
	log.Warn("task failed", "entity_id", id, "error", cause)

	if err := b.tracker.SetStatus(ctx, id, b.field, domain.StatusError); err != nil {
		log.Error("failed to mark entity as errored", "entity_id", id, "error", err)
		return errors.Join(cause, err)
	}
	return cause
}
