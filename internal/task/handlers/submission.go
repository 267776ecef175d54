package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/store"
	"github.com/phrazzld/vivaflow/internal/task"
)

type writingQualityPayload struct {
	OverallScore *float64        `json:"overall_score" validate:"required,gte=0,lte=100"`
	Feedback     string          `json:"feedback" validate:"required"`
	Metrics      json.RawMessage `json:"metrics,omitempty"`
}

// WritingQualityHandler stores the writing-quality report for a submission.
type WritingQualityHandler struct {
	base
	artifacts store.ArtifactStore
}

var _ task.Handler = (*WritingQualityHandler)(nil)

// NewWritingQualityHandler creates the handler.
func NewWritingQualityHandler(tracker task.StatusTracker, artifacts store.ArtifactStore, log *slog.Logger) (*WritingQualityHandler, error) {
	b, err := newBase(task.TypeWritingQuality, tracker, log)
	if err != nil {
		return nil, err
	}
	if artifacts == nil {
		return nil, ErrNilStore
	}
	return &WritingQualityHandler{base: b, artifacts: artifacts}, nil
}

// Handle implements task.Handler.
func (h *WritingQualityHandler) Handle(ctx context.Context, env task.Envelope) error {
	ok, err := h.accept(ctx, env)
	if !ok {
		return err
	}

	var p writingQualityPayload
	if err := h.decode(ctx, env, &p); err != nil {
		return err
	}
	report, err := domain.NewWritingQualityReport(env.UUID, *p.OverallScore, p.Feedback, p.Metrics)
	if err != nil {
		return h.fail(ctx, env.UUID, fmt.Errorf("%w: %v", ErrInvalidPayload, err))
	}
	if err := h.artifacts.SaveWritingQuality(ctx, report); err != nil {
		return h.fail(ctx, env.UUID, fmt.Errorf("%w: %v", ErrPersistFailed, err))
	}
	return h.complete(ctx, env.UUID)
}

type summaryPayload struct {
	Summary string          `json:"summary" validate:"required"`
	Report  json.RawMessage `json:"report,omitempty"`
}

// SummaryHandler stores the summary and tutor report for a submission.
type SummaryHandler struct {
	base
	artifacts store.ArtifactStore
}

var _ task.Handler = (*SummaryHandler)(nil)

// NewSummaryHandler creates the handler.
func NewSummaryHandler(tracker task.StatusTracker, artifacts store.ArtifactStore, log *slog.Logger) (*SummaryHandler, error) {
	b, err := newBase(task.TypeSummaryAndReport, tracker, log)
	if err != nil {
		return nil, err
	}
	if artifacts == nil {
		return nil, ErrNilStore
	}
	return &SummaryHandler{base: b, artifacts: artifacts}, nil
}

// Handle implements task.Handler.
func (h *SummaryHandler) Handle(ctx context.Context, env task.Envelope) error {
	ok, err := h.accept(ctx, env)
	if !ok {
		return err
	}

	var p summaryPayload
	if err := h.decode(ctx, env, &p); err != nil {
		return err
	}
	summary, err := domain.NewSubmissionSummary(env.UUID, p.Summary, p.Report)
	if err != nil {
		return h.fail(ctx, env.UUID, fmt.Errorf("%w: %v", ErrInvalidPayload, err))
	}
	if err := h.artifacts.SaveSummary(ctx, summary); err != nil {
		return h.fail(ctx, env.UUID, fmt.Errorf("%w: %v", ErrPersistFailed, err))
	}
	return h.complete(ctx, env.UUID)
}

type marksheetPayload struct {
	Marks []markPayload `json:"marks" validate:"required,min=1,dive"`
}

type markPayload struct {
	Criterion string   `json:"criterion" validate:"required"`
	Score     *float64 `json:"score" validate:"required,gte=0"`
	MaxScore  float64  `json:"max_score" validate:"gt=0"`
	Comment   string   `json:"comment"`
}

// MarksheetHandler stores the automated marksheet for a submission.
type MarksheetHandler struct {
	base
	artifacts store.ArtifactStore
}

var _ task.Handler = (*MarksheetHandler)(nil)

// NewMarksheetHandler creates the handler.
func NewMarksheetHandler(tracker task.StatusTracker, artifacts store.ArtifactStore, log *slog.Logger) (*MarksheetHandler, error) {
	b, err := newBase(task.TypeAutomatedMarksheet, tracker, log)
	if err != nil {
		return nil, err
	}
	if artifacts == nil {
		return nil, ErrNilStore
	}
	return &MarksheetHandler{base: b, artifacts: artifacts}, nil
}

// Handle implements task.Handler. The marksheet and its marks are saved
// atomically, so a failure leaves no partial marksheet.
func (h *MarksheetHandler) Handle(ctx context.Context, env task.Envelope) error {
	ok, err := h.accept(ctx, env)
	if !ok {
		return err
	}

	var p marksheetPayload
	if err := h.decode(ctx, env, &p); err != nil {
		return err
	}
	marks := make([]domain.Mark, 0, len(p.Marks))
	for _, m := range p.Marks {
		marks = append(marks, domain.Mark{
			Criterion: m.Criterion,
			Score:     *m.Score,
			MaxScore:  m.MaxScore,
			Comment:   m.Comment,
		})
	}
	marksheet, err := domain.NewMarksheet(env.UUID, marks)
	if err != nil {
		return h.fail(ctx, env.UUID, fmt.Errorf("%w: %v", ErrInvalidPayload, err))
	}
	if err := h.artifacts.SaveMarksheet(ctx, marksheet); err != nil {
		return h.fail(ctx, env.UUID, fmt.Errorf("%w: %v", ErrPersistFailed, err))
	}
	return h.complete(ctx, env.UUID)
}
