package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/vivaflow/internal/store"
	"github.com/phrazzld/vivaflow/internal/task"
)

// SubmissionText is the data sent for submission tasks that need only the
// extracted text.
type SubmissionText struct {
	Text string `json:"text"`
}

// MarksheetRequest pairs a submission's text with the criteria it is marked
// against.
type MarksheetRequest struct {
	Text   string          `json:"text"`
	Rubric json.RawMessage `json:"rubric"`
}

// RubricBrief is the data sent to generate rubric criteria.
type RubricBrief struct {
	Title string `json:"title"`
	Brief string `json:"brief"`
}

// RubricPrompt is the data sent to optimise a tutor prompt.
type RubricPrompt struct {
	Prompt     string          `json:"prompt"`
	RubricData json.RawMessage `json:"rubric_data,omitempty"`
}

// Builders creates the payload builder for every task type.
type Builders struct {
	submissions store.SubmissionStore
	rubrics     store.RubricStore
	logger      *slog.Logger
}

// NewBuilders creates Builders over the entity stores.
func NewBuilders(submissions store.SubmissionStore, rubrics store.RubricStore, logger *slog.Logger) (*Builders, error) {
	if submissions == nil || rubrics == nil {
		return nil, fmt.Errorf("source builders need both entity stores")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builders{
		submissions: submissions,
		rubrics:     rubrics,
		logger:      logger.With("component", "source_builders"),
	}, nil
}

// All returns a builder for every task type, ready for task.NewSubmitter.
func (b *Builders) All() map[task.Type]task.PayloadBuilder {
	text := task.PayloadBuilderFunc(b.submissionText)
	return map[task.Type]task.PayloadBuilder{
		task.TypeVivaQuestions:      text,
		task.TypeWritingQuality:     text,
		task.TypeSummaryAndReport:   text,
		task.TypeAutomatedMarksheet: task.PayloadBuilderFunc(b.marksheet),
		task.TypeCreateRubric:       task.PayloadBuilderFunc(b.rubricBrief),
		task.TypeOptimizePrompt:     task.PayloadBuilderFunc(b.rubricPrompt),
	}
}

// FetchText returns a submission's extracted text, or ErrSourceMissing when
// it is blank.
func (b *Builders) FetchText(ctx context.Context, submissionID string) (string, error) {
	s, err := b.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s.ExtractedText) == "" {
		return "", fmt.Errorf("%w: submission %s has no extracted text", task.ErrSourceMissing, submissionID)
	}
	return s.ExtractedText, nil
}

func (b *Builders) submissionText(ctx context.Context, id string) (any, error) {
	text, err := b.FetchText(ctx, id)
	if err != nil {
		return nil, err
	}
	return SubmissionText{Text: text}, nil
}

func (b *Builders) marksheet(ctx context.Context, id string) (any, error) {
	s, err := b.submissions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.ExtractedText) == "" {
		return nil, fmt.Errorf("%w: submission %s has no extracted text", task.ErrSourceMissing, id)
	}
	if s.RubricID == "" {
		return nil, fmt.Errorf("%w: submission %s has no rubric", task.ErrSourceMissing, id)
	}

	r, err := b.rubrics.GetByID(ctx, s.RubricID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: rubric %s not found", task.ErrSourceMissing, s.RubricID)
		}
		return nil, err
	}
	if len(r.RubricData) == 0 {
		return nil, fmt.Errorf("%w: rubric %s has no criteria yet", task.ErrSourceMissing, r.ID)
	}

	b.logger.Debug("marksheet source assembled", "submission_id", id, "rubric_id", r.ID)
	return MarksheetRequest{Text: s.ExtractedText, Rubric: r.RubricData}, nil
}

func (b *Builders) rubricBrief(ctx context.Context, id string) (any, error) {
	r, err := b.rubrics.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(r.Brief) == "" {
		return nil, fmt.Errorf("%w: rubric %s has no brief", task.ErrSourceMissing, id)
	}
	return RubricBrief{Title: r.Title, Brief: r.Brief}, nil
}

func (b *Builders) rubricPrompt(ctx context.Context, id string) (any, error) {
	r, err := b.rubrics.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return nil, fmt.Errorf("%w: rubric %s has no prompt", task.ErrSourceMissing, id)
	}
	return RubricPrompt{Prompt: r.Prompt, RubricData: r.RubricData}, nil
}
