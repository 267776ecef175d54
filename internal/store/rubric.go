package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/phrazzld/vivaflow/internal/domain"
)

// RubricStore persists rubrics, their generated criteria and optimised prompt.
type RubricStore interface {
	Create(ctx context.Context, rubric *domain.Rubric) error

	// GetByID returns ErrRubricNotFound if the rubric does not exist.
	GetByID(ctx context.Context, id string) (*domain.Rubric, error)

	// UpdateStatus follows the same conditional rules as
	// SubmissionStore.UpdateStatus.
	UpdateStatus(ctx context.Context, id string, field domain.StatusField, status domain.Status) error

	// SaveRubricData replaces the rubric's generated criteria.
	SaveRubricData(ctx context.Context, id string, data json.RawMessage) error

	// SaveOptimizedPrompt stores the generated tutor prompt.
	SaveOptimizedPrompt(ctx context.Context, id string, prompt string) error

	FindInProgressOlderThan(ctx context.Context, field domain.StatusField, cutoff time.Time) ([]string, error)
}
