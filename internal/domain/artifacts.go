package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Artifact validation errors. Each wraps ErrValidation.
var (
	ErrEmptySubmissionID    = fmt.Errorf("%w: submission ID cannot be empty", ErrValidation)
	ErrEmptyQuestionText    = fmt.Errorf("%w: question text cannot be empty", ErrValidation)
	ErrEmptyQuestionTopic   = fmt.Errorf("%w: question category cannot be empty", ErrValidation)
	ErrEmptyFeedback        = fmt.Errorf("%w: feedback cannot be empty", ErrValidation)
	ErrScoreOutOfRange      = fmt.Errorf("%w: score out of range", ErrValidation)
	ErrEmptySummary         = fmt.Errorf("%w: summary cannot be empty", ErrValidation)
	ErrEmptyMarks           = fmt.Errorf("%w: marksheet must contain at least one mark", ErrValidation)
	ErrInvalidArtifactJSON  = fmt.Errorf("%w: artifact content must be valid JSON", ErrValidation)
	ErrEmptyOptimizedPrompt = fmt.Errorf("%w: optimized prompt cannot be empty", ErrValidation)
)

// VivaQuestion is one generated oral-examination question for a submission.
type VivaQuestion struct {
	ID               string    `json:"id"`
	SubmissionID     string    `json:"submission_id"`
	QuestionText     string    `json:"question_text"`
	QuestionCategory string    `json:"question_category"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewVivaQuestion creates a question row marked GENERATED.
func NewVivaQuestion(submissionID, text, category string) (*VivaQuestion, error) {
	q := &VivaQuestion{
		ID:               uuid.NewString(),
		SubmissionID:     submissionID,
		QuestionText:     text,
		QuestionCategory: category,
		Status:           StatusGenerated,
		CreatedAt:        time.Now().UTC(),
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// Validate checks the question's required fields.
func (q *VivaQuestion) Validate() error {
	if q.SubmissionID == "" {
		return ErrEmptySubmissionID
	}
	if q.QuestionText == "" {
		return ErrEmptyQuestionText
	}
	if q.QuestionCategory == "" {
		return ErrEmptyQuestionTopic
	}
	return nil
}

// WritingQualityReport is the AI assessment of a submission's writing.
type WritingQualityReport struct {
	ID           string          `json:"id"`
	SubmissionID string          `json:"submission_id"`
	OverallScore float64         `json:"overall_score"`
	Feedback     string          `json:"feedback"`
	Metrics      json.RawMessage `json:"metrics,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewWritingQualityReport creates a report for a submission.
func NewWritingQualityReport(
	submissionID string,
	score float64,
	feedback string,
	metrics json.RawMessage,
) (*WritingQualityReport, error) {
	r := &WritingQualityReport{
		ID:           uuid.NewString(),
		SubmissionID: submissionID,
		OverallScore: score,
		Feedback:     feedback,
		Metrics:      metrics,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the report's required fields. Scores are percentages.
func (r *WritingQualityReport) Validate() error {
	if r.SubmissionID == "" {
		return ErrEmptySubmissionID
	}
	if r.OverallScore < 0 || r.OverallScore > 100 {
		return ErrScoreOutOfRange
	}
	if r.Feedback == "" {
		return ErrEmptyFeedback
	}
	if len(r.Metrics) > 0 && !json.Valid(r.Metrics) {
		return ErrInvalidArtifactJSON
	}
	return nil
}

// SubmissionSummary is the generated summary and tutor report for a submission.
type SubmissionSummary struct {
	ID           string          `json:"id"`
	SubmissionID string          `json:"submission_id"`
	Summary      string          `json:"summary"`
	Report       json.RawMessage `json:"report,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewSubmissionSummary creates a summary row.
func NewSubmissionSummary(submissionID, summary string, report json.RawMessage) (*SubmissionSummary, error) {
	s := &SubmissionSummary{
		ID:           uuid.NewString(),
		SubmissionID: submissionID,
		Summary:      summary,
		Report:       report,
		CreatedAt:    time.Now().UTC(),
	}
	if s.SubmissionID == "" {
		return nil, ErrEmptySubmissionID
	}
	if s.Summary == "" {
		return nil, ErrEmptySummary
	}
	if len(s.Report) > 0 && !json.Valid(s.Report) {
		return nil, ErrInvalidArtifactJSON
	}
	return s, nil
}

// Mark is a single criterion line on a marksheet.
type Mark struct {
	Criterion string  `json:"criterion"`
	Score     float64 `json:"score"`
	MaxScore  float64 `json:"max_score"`
	Comment   string  `json:"comment,omitempty"`
}

// Marksheet is the automated per-criterion marking of a submission.
type Marksheet struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	Marks        []Mark    `json:"marks"`
	TotalScore   float64   `json:"total_score"`
	MaxScore     float64   `json:"max_score"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewMarksheet creates a marksheet and derives its totals from the marks.
func NewMarksheet(submissionID string, marks []Mark) (*Marksheet, error) {
	if submissionID == "" {
		return nil, ErrEmptySubmissionID
	}
	if len(marks) == 0 {
		return nil, ErrEmptyMarks
	}

	m := &Marksheet{
		ID:           uuid.NewString(),
		SubmissionID: submissionID,
		Marks:        marks,
		CreatedAt:    time.Now().UTC(),
	}
	for _, mark := range marks {
		if mark.Criterion == "" || mark.MaxScore <= 0 || mark.Score < 0 || mark.Score > mark.MaxScore {
			return nil, ErrScoreOutOfRange
		}
		m.TotalScore += mark.Score
		m.MaxScore += mark.MaxScore
	}
	return m, nil
}
