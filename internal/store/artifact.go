package store

import (
	"context"

	"github.com/phrazzld/vivaflow/internal/domain"
)

// ArtifactStore persists the child rows AI tasks create for a submission.
// Every row references its submission by id.
type ArtifactStore interface {
	CreateVivaQuestion(ctx context.Context, question *domain.VivaQuestion) error
	ListVivaQuestions(ctx context.Context, submissionID string) ([]*domain.VivaQuestion, error)

	SaveWritingQuality(ctx context.Context, report *domain.WritingQualityReport) error
	SaveSummary(ctx context.Context, summary *domain.SubmissionSummary) error

	// SaveMarksheet stores the marksheet and its marks atomically.
	SaveMarksheet(ctx context.Context, marksheet *domain.Marksheet) error
}
