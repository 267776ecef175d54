package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/platform/logger"
	"github.com/phrazzld/vivaflow/internal/store"
)

// PostgresRubricStore implements store.RubricStore.
type PostgresRubricStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.RubricStore = (*PostgresRubricStore)(nil)

// NewPostgresRubricStore creates a store over db.
func NewPostgresRubricStore(db store.DBTX, logger *slog.Logger) *PostgresRubricStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRubricStore{
		db:     db,
		logger: logger.With(slog.String("component", "rubric_store")),
	}
}

func (s *PostgresRubricStore) columns(field domain.StatusField) (statusColumns, error) {
	if !domain.IsRubricField(field) {
		return statusColumns{}, fmt.Errorf("%w: %q", domain.ErrInvalidStatusField, field)
	}
	return statusColumns{table: "rubrics", field: field, notFound: store.ErrRubricNotFound}, nil
}

// Create implements store.RubricStore.
func (s *PostgresRubricStore) Create(ctx context.Context, r *domain.Rubric) error {
	if r.ID == "" {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrInvalidID)
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = domain.StatusPending
	}
	if r.PromptStatus == "" {
		r.PromptStatus = domain.StatusPending
	}

	query := `
		INSERT INTO rubrics (
			id, title, brief, prompt, rubric_data, optimized_prompt,
			status, prompt_status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.Title,
		r.Brief,
		r.Prompt,
		nullJSON(r.RubricData),
		r.OptimizedPrompt,
		string(r.Status),
		string(r.PromptStatus),
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create rubric",
			slog.String("error", err.Error()),
			slog.String("rubric_id", r.ID))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.RubricStore.
func (s *PostgresRubricStore) GetByID(ctx context.Context, id string) (*domain.Rubric, error) {
	query := `
		SELECT id, title, brief, prompt, rubric_data, optimized_prompt,
			status, prompt_status, created_at, updated_at
		FROM rubrics
		WHERE id = $1
	`
	var (
		r            domain.Rubric
		data         []byte
		status       string
		promptStatus string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&r.ID,
		&r.Title,
		&r.Brief,
		&r.Prompt,
		&data,
		&r.OptimizedPrompt,
		&status,
		&promptStatus,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRubricNotFound
		}
		return nil, MapError(err)
	}

	if len(data) > 0 {
		r.RubricData = json.RawMessage(data)
	}
	r.Status = domain.Status(status)
	r.PromptStatus = domain.Status(promptStatus)
	return &r, nil
}

// UpdateStatus implements store.RubricStore.
func (s *PostgresRubricStore) UpdateStatus(ctx context.Context, id string, field domain.StatusField, status domain.Status) error {
	c, err := s.columns(field)
	if err != nil {
		return err
	}
	return updateStatus(ctx, s.db, c, id, status)
}

// SaveRubricData implements store.RubricStore.
func (s *PostgresRubricStore) SaveRubricData(ctx context.Context, id string, data json.RawMessage) error {
	if !json.Valid(data) {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrInvalidRubricData)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE rubrics SET rubric_data = $1, updated_at = $2 WHERE id = $3`,
		[]byte(data), time.Now().UTC(), id,
	)
	if err != nil {
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "rubric"); err != nil {
		return store.ErrRubricNotFound
	}
	return nil
}

// SaveOptimizedPrompt implements store.RubricStore.
func (s *PostgresRubricStore) SaveOptimizedPrompt(ctx context.Context, id string, prompt string) error {
	if prompt == "" {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrEmptyOptimizedPrompt)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE rubrics SET optimized_prompt = $1, updated_at = $2 WHERE id = $3`,
		prompt, time.Now().UTC(), id,
	)
	if err != nil {
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "rubric"); err != nil {
		return store.ErrRubricNotFound
	}
	return nil
}

// FindInProgressOlderThan implements store.RubricStore.
func (s *PostgresRubricStore) FindInProgressOlderThan(ctx context.Context, field domain.StatusField, cutoff time.Time) ([]string, error) {
	c, err := s.columns(field)
	if err != nil {
		return nil, err
	}
	return findInProgressOlderThan(ctx, s.db, c, cutoff)
}

// nullJSON returns nil for empty JSON so the column stores NULL.
func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
