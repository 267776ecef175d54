package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/store"
)

// MockArtifactStore is an in-memory store.ArtifactStore.
type MockArtifactStore struct {
	mu         sync.RWMutex
	questions  []*domain.VivaQuestion
	reports    []*domain.WritingQualityReport
	summaries  []*domain.SubmissionSummary
	marksheets []*domain.Marksheet

	CreateVivaQuestionFn func(ctx context.Context, q *domain.VivaQuestion) error
	SaveWritingQualityFn func(ctx context.Context, r *domain.WritingQualityReport) error
	SaveSummaryFn        func(ctx context.Context, s *domain.SubmissionSummary) error
	SaveMarksheetFn      func(ctx context.Context, m *domain.Marksheet) error
}

var _ store.ArtifactStore = (*MockArtifactStore)(nil)

// NewMockArtifactStore creates an empty store.
func NewMockArtifactStore() *MockArtifactStore {
	return &MockArtifactStore{}
}

// CreateVivaQuestion implements store.ArtifactStore.
func (m *MockArtifactStore) CreateVivaQuestion(ctx context.Context, q *domain.VivaQuestion) error {
	if m.CreateVivaQuestionFn != nil {
		if err := m.CreateVivaQuestionFn(ctx, q); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions = append(m.questions, q)
	return nil
}

// ListVivaQuestions implements store.ArtifactStore.
func (m *MockArtifactStore) ListVivaQuestions(ctx context.Context, submissionID string) ([]*domain.VivaQuestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.VivaQuestion
	for _, q := range m.questions {
		if q.SubmissionID == submissionID {
			out = append(out, q)
		}
	}
	return out, nil
}

// SaveWritingQuality implements store.ArtifactStore.
func (m *MockArtifactStore) SaveWritingQuality(ctx context.Context, r *domain.WritingQualityReport) error {
	if m.SaveWritingQualityFn != nil {
		return m.SaveWritingQualityFn(ctx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

// SaveSummary implements store.ArtifactStore.
func (m *MockArtifactStore) SaveSummary(ctx context.Context, s *domain.SubmissionSummary) error {
	if m.SaveSummaryFn != nil {
		return m.SaveSummaryFn(ctx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, s)
	return nil
}

// SaveMarksheet implements store.ArtifactStore.
func (m *MockArtifactStore) SaveMarksheet(ctx context.Context, ms *domain.Marksheet) error {
	if m.SaveMarksheetFn != nil {
		return m.SaveMarksheetFn(ctx, ms)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marksheets = append(m.marksheets, ms)
	return nil
}

// WritingQualityReports returns the saved reports.
func (m *MockArtifactStore) WritingQualityReports() []*domain.WritingQualityReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.WritingQualityReport(nil), m.reports...)
}

// Summaries returns the saved summaries.
func (m *MockArtifactStore) Summaries() []*domain.SubmissionSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.SubmissionSummary(nil), m.summaries...)
}

// Marksheets returns the saved marksheets.
func (m *MockArtifactStore) Marksheets() []*domain.Marksheet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.Marksheet(nil), m.marksheets...)
}
