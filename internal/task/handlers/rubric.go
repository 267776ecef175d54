package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/store"
	"github.com/phrazzld/vivaflow/internal/task"
)

// CreateRubricHandler stores generated rubric criteria on the rubric. The
// response data is the rubric itself and is stored as given.
type CreateRubricHandler struct {
	base
	rubrics store.RubricStore
}

var _ task.Handler = (*CreateRubricHandler)(nil)

// NewCreateRubricHandler creates the handler.
func NewCreateRubricHandler(tracker task.StatusTracker, rubrics store.RubricStore, log *slog.Logger) (*CreateRubricHandler, error) {
	b, err := newBase(task.TypeCreateRubric, tracker, log)
	if err != nil {
		return nil, err
	}
	if rubrics == nil {
		return nil, ErrNilStore
	}
	return &CreateRubricHandler{base: b, rubrics: rubrics}, nil
}

// Handle implements task.Handler.
func (h *CreateRubricHandler) Handle(ctx context.Context, env task.Envelope) error {
	ok, err := h.accept(ctx, env)
	if !ok {
		return err
	}

	if err := domain.ValidateRubricData(env.Data); err != nil {
		return h.fail(ctx, env.UUID, fmt.Errorf("%w: %v", ErrInvalidPayload, err))
	}
	if err := h.rubrics.SaveRubricData(ctx, env.UUID, env.Data); err != nil {
		return h.fail(ctx, env.UUID, fmt.Errorf("%w: %v", ErrPersistFailed, err))
	}
	return h.complete(ctx, env.UUID)
}

type optimizePromptPayload struct {
	OptimizedPrompt string `json:"optimized_prompt" validate:"required"`
}

// OptimizePromptHandler stores the optimised tutor prompt on the rubric.
type OptimizePromptHandler struct {
	base
	rubrics store.RubricStore
}

var _ task.Handler = (*OptimizePromptHandler)(nil)

// NewOptimizePromptHandler creates the handler.
func NewOptimizePromptHandler(tracker task.StatusTracker, rubrics store.RubricStore, log *slog.Logger) (*OptimizePromptHandler, error) {
	b, err := newBase(task.TypeOptimizePrompt, tracker, log)
	if err != nil {
		return nil, err
	}
	if rubrics == nil {
		return nil, ErrNilStore
	}
	return &OptimizePromptHandler{base: b, rubrics: rubrics}, nil
}

// Handle implements task.Handler.
func (h *OptimizePromptHandler) Handle(ctx context.Context, env task.Envelope) error {
	ok, err := h.accept(ctx, env)
	if !ok {
		return err
	}

	var p optimizePromptPayload
	if err := h.decode(ctx, env, &p); err != nil {
		return err
	}
	if err := h.rubrics.SaveOptimizedPrompt(ctx, env.UUID, p.OptimizedPrompt); err != nil {
		return h.fail(ctx, env.UUID, fmt.Errorf("%w: %v", ErrPersistFailed, err))
	}
	return h.complete(ctx, env.UUID)
}
