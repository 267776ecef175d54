package domain

import (
	"errors"
	"time"
)

// StatusField names the column holding the status a task type drives.
// A submission carries one status per generated artifact; a rubric carries
// one for its criteria and one for its optimised prompt.
type StatusField string

// Submission status fields
const (
	FieldVivaStatus           StatusField = "viva_status"
	FieldWritingQualityStatus StatusField = "writing_quality_status"
	FieldSummaryStatus        StatusField = "summary_status"
	FieldMarksheetStatus      StatusField = "marksheet_status"
)

// Rubric status fields
const (
	FieldRubricStatus StatusField = "status"
	FieldPromptStatus StatusField = "prompt_status"
)

// ErrInvalidStatusField is returned when a status field does not belong to
// the entity it is applied to.
var ErrInvalidStatusField = errors.New("invalid status field")

// SubmissionFields lists the status fields owned by a submission.
var SubmissionFields = []StatusField{
	FieldVivaStatus,
	FieldWritingQualityStatus,
	FieldSummaryStatus,
	FieldMarksheetStatus,
}

// RubricFields lists the status fields owned by a rubric.
var RubricFields = []StatusField{
	FieldRubricStatus,
	FieldPromptStatus,
}

// IsSubmissionField reports whether f is a submission status column.
func IsSubmissionField(f StatusField) bool {
	for _, s := range SubmissionFields {
		if s == f {
			return true
		}
	}
	return false
}

// IsRubricField reports whether f is a rubric status column.
func IsRubricField(f StatusField) bool {
	for _, s := range RubricFields {
		if s == f {
			return true
		}
	}
	return false
}

// Submission is a student's uploaded work. Its extracted text is the source
// material for every submission-level AI task.
type Submission struct {
	ID                   string    `json:"id"`
	RubricID             string    `json:"rubric_id,omitempty"`
	ExtractedText        string    `json:"-"`
	VivaStatus           Status    `json:"viva_status"`
	WritingQualityStatus Status    `json:"writing_quality_status"`
	SummaryStatus        Status    `json:"summary_status"`
	MarksheetStatus      Status    `json:"marksheet_status"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// StatusOf returns the value of the given status field.
func (s *Submission) StatusOf(field StatusField) (Status, error) {
	switch field {
	case FieldVivaStatus:
		return s.VivaStatus, nil
	case FieldWritingQualityStatus:
		return s.WritingQualityStatus, nil
	case FieldSummaryStatus:
		return s.SummaryStatus, nil
	case FieldMarksheetStatus:
		return s.MarksheetStatus, nil
	default:
		return "", ErrInvalidStatusField
	}
}

// SetStatus changes a status field after checking the transition rule and
// bumps UpdatedAt.
func (s *Submission) SetStatus(field StatusField, status Status) error {
	current, err := s.StatusOf(field)
	if err != nil {
		return err
	}
	if err := ValidateTransition(current, status); err != nil {
		return err
	}

	switch field {
	case FieldVivaStatus:
		s.VivaStatus = status
	case FieldWritingQualityStatus:
		s.WritingQualityStatus = status
	case FieldSummaryStatus:
		s.SummaryStatus = status
	case FieldMarksheetStatus:
		s.MarksheetStatus = status
	}
	s.UpdatedAt = time.Now().UTC()
	return nil
}
