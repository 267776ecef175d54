package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/platform/logger"
	"github.com/phrazzld/vivaflow/internal/store"
)

// PostgresSubmissionStore implements store.SubmissionStore.
type PostgresSubmissionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.SubmissionStore = (*PostgresSubmissionStore)(nil)

// NewPostgresSubmissionStore creates a store over db, which may be a pool
// or a transaction.
func NewPostgresSubmissionStore(db store.DBTX, logger *slog.Logger) *PostgresSubmissionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSubmissionStore{
		db:     db,
		logger: logger.With(slog.String("component", "submission_store")),
	}
}

func (s *PostgresSubmissionStore) columns(field domain.StatusField) (statusColumns, error) {
	if !domain.IsSubmissionField(field) {
		return statusColumns{}, fmt.Errorf("%w: %q", domain.ErrInvalidStatusField, field)
	}
	return statusColumns{table: "submissions", field: field, notFound: store.ErrSubmissionNotFound}, nil
}

// Create implements store.SubmissionStore. Blank statuses start PENDING.
func (s *PostgresSubmissionStore) Create(ctx context.Context, sub *domain.Submission) error {
	log := logger.FromContextOrDefault(ctx, s.logger)
	if sub.ID == "" {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrInvalidID)
	}

	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	for _, st := range []*domain.Status{&sub.VivaStatus, &sub.WritingQualityStatus, &sub.SummaryStatus, &sub.MarksheetStatus} {
		if *st == "" {
			*st = domain.StatusPending
		}
	}

	query := `
		INSERT INTO submissions (
			id, rubric_id, extracted_text,
			viva_status, writing_quality_status, summary_status, marksheet_status,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		sub.ID,
		nullString(sub.RubricID),
		sub.ExtractedText,
		string(sub.VivaStatus),
		string(sub.WritingQualityStatus),
		string(sub.SummaryStatus),
		string(sub.MarksheetStatus),
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create submission",
			slog.String("error", err.Error()),
			slog.String("submission_id", sub.ID))
		return MapError(err)
	}

	log.Debug("submission created", slog.String("submission_id", sub.ID))
	return nil
}

// GetByID implements store.SubmissionStore.
func (s *PostgresSubmissionStore) GetByID(ctx context.Context, id string) (*domain.Submission, error) {
	query := `
		SELECT id, rubric_id, extracted_text,
			viva_status, writing_quality_status, summary_status, marksheet_status,
			created_at, updated_at
		FROM submissions
		WHERE id = $1
	`
	var (
		sub      domain.Submission
		rubricID sql.NullString
		statuses [4]string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sub.ID,
		&rubricID,
		&sub.ExtractedText,
		&statuses[0],
		&statuses[1],
		&statuses[2],
		&statuses[3],
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSubmissionNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get submission",
			slog.String("error", err.Error()),
			slog.String("submission_id", id))
		return nil, MapError(err)
	}

	sub.RubricID = rubricID.String
	sub.VivaStatus = domain.Status(statuses[0])
	sub.WritingQualityStatus = domain.Status(statuses[1])
	sub.SummaryStatus = domain.Status(statuses[2])
	sub.MarksheetStatus = domain.Status(statuses[3])
	return &sub, nil
}

// UpdateStatus implements store.SubmissionStore.
func (s *PostgresSubmissionStore) UpdateStatus(ctx context.Context, id string, field domain.StatusField, status domain.Status) error {
	c, err := s.columns(field)
	if err != nil {
		return err
	}
	if err := updateStatus(ctx, s.db, c, id, status); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("submission status not updated",
			slog.String("submission_id", id),
			slog.String("field", string(field)),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

// FindInProgressOlderThan implements store.SubmissionStore.
func (s *PostgresSubmissionStore) FindInProgressOlderThan(ctx context.Context, field domain.StatusField, cutoff time.Time) ([]string, error) {
	c, err := s.columns(field)
	if err != nil {
		return nil, err
	}
	return findInProgressOlderThan(ctx, s.db, c, cutoff)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
