package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/platform/logger"
	"github.com/phrazzld/vivaflow/internal/store"
)

// PostgresArtifactStore implements store.ArtifactStore.
type PostgresArtifactStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.ArtifactStore = (*PostgresArtifactStore)(nil)

// NewPostgresArtifactStore creates a store over db.
func NewPostgresArtifactStore(db store.DBTX, logger *slog.Logger) *PostgresArtifactStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresArtifactStore{
		db:     db,
		logger: logger.With(slog.String("component", "artifact_store")),
	}
}

// CreateVivaQuestion implements store.ArtifactStore.
func (s *PostgresArtifactStore) CreateVivaQuestion(ctx context.Context, q *domain.VivaQuestion) error {
	if err := q.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO viva_questions (id, submission_id, question_text, question_category, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, q.ID, q.SubmissionID, q.QuestionText, q.QuestionCategory, string(q.Status), q.CreatedAt)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create viva question",
			slog.String("error", err.Error()),
			slog.String("submission_id", q.SubmissionID))
		return MapError(err)
	}
	return nil
}

// ListVivaQuestions implements store.ArtifactStore.
func (s *PostgresArtifactStore) ListVivaQuestions(ctx context.Context, submissionID string) ([]*domain.VivaQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, submission_id, question_text, question_category, status, created_at
		FROM viva_questions
		WHERE submission_id = $1
		ORDER BY created_at, id
	`, submissionID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var questions []*domain.VivaQuestion
	for rows.Next() {
		var (
			q      domain.VivaQuestion
			status string
		)
		if err := rows.Scan(&q.ID, &q.SubmissionID, &q.QuestionText, &q.QuestionCategory, &status, &q.CreatedAt); err != nil {
			return nil, MapError(err)
		}
		q.Status = domain.Status(status)
		questions = append(questions, &q)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return questions, nil
}

// SaveWritingQuality implements store.ArtifactStore.
func (s *PostgresArtifactStore) SaveWritingQuality(ctx context.Context, r *domain.WritingQualityReport) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO writing_quality_reports (id, submission_id, overall_score, feedback, metrics, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.ID, r.SubmissionID, r.OverallScore, r.Feedback, nullJSON(r.Metrics), r.CreatedAt)
	return MapError(err)
}

// SaveSummary implements store.ArtifactStore.
func (s *PostgresArtifactStore) SaveSummary(ctx context.Context, sum *domain.SubmissionSummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submission_summaries (id, submission_id, summary, report, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, sum.ID, sum.SubmissionID, sum.Summary, nullJSON(sum.Report), sum.CreatedAt)
	return MapError(err)
}

// SaveMarksheet implements store.ArtifactStore. The header row and every
// mark are written in one transaction.
func (s *PostgresArtifactStore) SaveMarksheet(ctx context.Context, m *domain.Marksheet) error {
	if len(m.Marks) == 0 {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrEmptyMarks)
	}
	return store.WithinTx(ctx, s.db, func(ctx context.Context, tx store.DBTX) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO marksheets (id, submission_id, total_score, max_score, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, m.ID, m.SubmissionID, m.TotalScore, m.MaxScore, m.CreatedAt)
		if err != nil {
			return MapError(err)
		}
		for i, mark := range m.Marks {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO marksheet_marks (marksheet_id, position, criterion, score, max_score, comment)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, m.ID, i, mark.Criterion, mark.Score, mark.MaxScore, mark.Comment)
			if err != nil {
				return MapError(err)
			}
		}
		return nil
	})
}
