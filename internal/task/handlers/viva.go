package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/platform/logger"
	"github.com/phrazzld/vivaflow/internal/store"
	"github.com/phrazzld/vivaflow/internal/task"
)

type vivaPayload struct {
	Questions []vivaQuestion `json:"questions" validate:"required,min=1,dive"`
}

type vivaQuestion struct {
	QuestionText     string `json:"question_text" validate:"required"`
	QuestionCategory string `json:"question_category" validate:"required"`
}

// VivaQuestionsHandler stores generated viva questions as GENERATED rows
// referencing the submission.
type VivaQuestionsHandler struct {
	base
	artifacts store.ArtifactStore
}

var _ task.Handler = (*VivaQuestionsHandler)(nil)

// NewVivaQuestionsHandler creates the handler.
func NewVivaQuestionsHandler(tracker task.StatusTracker, artifacts store.ArtifactStore, log *slog.Logger) (*VivaQuestionsHandler, error) {
	b, err := newBase(task.TypeVivaQuestions, tracker, log)
	if err != nil {
		return nil, err
	}
	if artifacts == nil {
		return nil, ErrNilStore
	}
	return &VivaQuestionsHandler{base: b, artifacts: artifacts}, nil
}

// Handle implements task.Handler. A store failure part way through leaves
// the questions already saved in place and the submission in ERROR.
func (h *VivaQuestionsHandler) Handle(ctx context.Context, env task.Envelope) error {
	ok, err := h.accept(ctx, env)
	if !ok {
		return err
	}

	var p vivaPayload
	if err := h.decode(ctx, env, &p); err != nil {
		return err
	}

	questions := make([]*domain.VivaQuestion, 0, len(p.Questions))
	for _, q := range p.Questions {
		vq, err := domain.NewVivaQuestion(env.UUID, q.QuestionText, q.QuestionCategory)
		if err != nil {
			return h.fail(ctx, env.UUID, fmt.Errorf("%w: %v", ErrInvalidPayload, err))
		}
		questions = append(questions, vq)
	}

	for i, q := range questions {
		if err := h.artifacts.CreateVivaQuestion(ctx, q); err != nil {
			logger.FromContextOrDefault(ctx, h.logger).Error("failed to save viva question",
				"entity_id", env.UUID,
				"saved", i,
				"total", len(questions),
				"error", err)
			return h.fail(ctx, env.UUID, fmt.Errorf("%w: question %d of %d: %v",
				ErrPersistFailed, i+1, len(questions), err))
		}
	}

	return h.complete(ctx, env.UUID)
}
