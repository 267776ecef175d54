package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/platform/logger"
)

// EntityStatusTracker reads and writes task status fields, routing each
// field to the store that owns it. It is the single writer of status on the
// application side.
type EntityStatusTracker struct {
	submissions SubmissionStore
	rubrics     RubricStore
	logger      *slog.Logger
}

// NewEntityStatusTracker creates a tracker over the two entity stores.
func NewEntityStatusTracker(submissions SubmissionStore, rubrics RubricStore, logger *slog.Logger) (*EntityStatusTracker, error) {
	if submissions == nil {
		return nil, fmt.Errorf("submission store cannot be nil")
	}
	if rubrics == nil {
		return nil, fmt.Errorf("rubric store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EntityStatusTracker{
		submissions: submissions,
		rubrics:     rubrics,
		logger:      logger.With(slog.String("component", "status_tracker")),
	}, nil
}

// Status returns the current value of field on entity id.
func (t *EntityStatusTracker) Status(ctx context.Context, id string, field domain.StatusField) (domain.Status, error) {
	switch {
	case domain.IsSubmissionField(field):
		s, err := t.submissions.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		return s.StatusOf(field)
	case domain.IsRubricField(field):
		r, err := t.rubrics.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		return r.StatusOf(field)
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidStatusField, field)
	}
}

// SetStatus moves field on entity id to status.
func (t *EntityStatusTracker) SetStatus(ctx context.Context, id string, field domain.StatusField, status domain.Status) error {
	log := logger.FromContextOrDefault(ctx, t.logger)

	var err error
	switch {
	case domain.IsSubmissionField(field):
		err = t.submissions.UpdateStatus(ctx, id, field, status)
	case domain.IsRubricField(field):
		err = t.rubrics.UpdateStatus(ctx, id, field, status)
	default:
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatusField, field)
	}
	if err != nil {
		return err
	}

	log.Debug("entity status updated",
		slog.String("entity_id", id),
		slog.String("field", string(field)),
		slog.String("status", string(status)))
	return nil
}

// StaleEntity identifies one status field left INPROGRESS too long.
type StaleEntity struct {
	ID    string
	Field domain.StatusField
}

// FindStale returns every entity field that has been INPROGRESS since before cutoff.
func (t *EntityStatusTracker) FindStale(ctx context.Context, cutoff time.Time) ([]StaleEntity, error) {
	var stale []StaleEntity
	for _, field := range domain.SubmissionFields {
		ids, err := t.submissions.FindInProgressOlderThan(ctx, field, cutoff)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			stale = append(stale, StaleEntity{ID: id, Field: field})
		}
	}
	for _, field := range domain.RubricFields {
		ids, err := t.rubrics.FindInProgressOlderThan(ctx, field, cutoff)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			stale = append(stale, StaleEntity{ID: id, Field: field})
		}
	}
	return stale, nil
}
