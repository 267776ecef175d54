package store

import (
	"context"
	"time"

	"github.com/phrazzld/vivaflow/internal/domain"
)

// SubmissionStore persists submissions and their per-task status fields.
type SubmissionStore interface {
	// Create saves a new submission.
	Create(ctx context.Context, submission *domain.Submission) error

	// GetByID retrieves a submission, including its extracted text.
	// Returns ErrSubmissionNotFound if the submission does not exist.
	GetByID(ctx context.Context, id string) (*domain.Submission, error)

	// UpdateStatus moves one status field to status, but only when its
	// current value is one of domain.AllowedFrom(status).
	// Returns ErrSubmissionNotFound if the submission does not exist and
	// domain.ErrInvalidStatusTransition if the current value forbids the move.
	UpdateStatus(ctx context.Context, id string, field domain.StatusField, status domain.Status) error

	// FindInProgressOlderThan returns the ids of submissions whose field has
	// been INPROGRESS since before cutoff.
	FindInProgressOlderThan(ctx context.Context, field domain.StatusField, cutoff time.Time) ([]string, error)
}
