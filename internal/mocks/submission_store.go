package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/store"
)

// MockSubmissionStore is an in-memory store.SubmissionStore.
type MockSubmissionStore struct {
	mu          sync.RWMutex
	submissions map[string]*domain.Submission
	changedAt   map[string]map[domain.StatusField]time.Time

	// Now is the clock used to stamp status changes.
	Now func() time.Time

	GetByIDFn      func(ctx context.Context, id string) (*domain.Submission, error)
	UpdateStatusFn func(ctx context.Context, id string, field domain.StatusField, status domain.Status) error

	// StatusHistory records every applied status change in order.
	StatusHistory []StatusChange
}

// StatusChange is one applied status update.
type StatusChange struct {
	ID     string
	Field  domain.StatusField
	Status domain.Status
}

var _ store.SubmissionStore = (*MockSubmissionStore)(nil)

// NewMockSubmissionStore creates an empty store.
func NewMockSubmissionStore() *MockSubmissionStore {
	return &MockSubmissionStore{
		submissions: make(map[string]*domain.Submission),
		changedAt:   make(map[string]map[domain.StatusField]time.Time),
		Now:         time.Now,
	}
}

// Create implements store.SubmissionStore.
func (m *MockSubmissionStore) Create(ctx context.Context, s *domain.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.submissions[s.ID]; ok {
		return store.ErrDuplicate
	}
	cp := *s
	for _, f := range domain.SubmissionFields {
		if v, _ := cp.StatusOf(f); v == "" {
			setSubmissionField(&cp, f, domain.StatusPending)
		}
	}
	m.submissions[s.ID] = &cp
	m.changedAt[s.ID] = make(map[domain.StatusField]time.Time)
	return nil
}

// GetByID implements store.SubmissionStore and returns a copy.
func (m *MockSubmissionStore) GetByID(ctx context.Context, id string) (*domain.Submission, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.submissions[id]
	if !ok {
		return nil, store.ErrSubmissionNotFound
	}
	cp := *s
	return &cp, nil
}

// UpdateStatus implements store.SubmissionStore.
func (m *MockSubmissionStore) UpdateStatus(ctx context.Context, id string, field domain.StatusField, status domain.Status) error {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, id, field, status)
	}
	if !domain.IsSubmissionField(field) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatusField, field)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok {
		return store.ErrSubmissionNotFound
	}
	current, _ := s.StatusOf(field)
	if err := domain.ValidateTransition(current, status); err != nil {
		return err
	}
	setSubmissionField(s, field, status)
	s.UpdatedAt = m.Now().UTC()
	m.changedAt[id][field] = s.UpdatedAt
	m.StatusHistory = append(m.StatusHistory, StatusChange{ID: id, Field: field, Status: status})
	return nil
}

// FindInProgressOlderThan implements store.SubmissionStore.
func (m *MockSubmissionStore) FindInProgressOlderThan(ctx context.Context, field domain.StatusField, cutoff time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, s := range m.submissions {
		current, err := s.StatusOf(field)
		if err != nil {
			return nil, err
		}
		if current == domain.StatusInProgress && m.changedAt[id][field].Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Status returns the current value of field, or "" when id is unknown.
func (m *MockSubmissionStore) Status(id string, field domain.StatusField) domain.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.submissions[id]
	if !ok {
		return ""
	}
	v, _ := s.StatusOf(field)
	return v
}

// History returns a copy of the applied status changes.
func (m *MockSubmissionStore) History() []StatusChange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]StatusChange(nil), m.StatusHistory...)
}

func setSubmissionField(s *domain.Submission, field domain.StatusField, status domain.Status) {
	switch field {
	case domain.FieldVivaStatus:
		s.VivaStatus = status
	case domain.FieldWritingQualityStatus:
		s.WritingQualityStatus = status
	case domain.FieldSummaryStatus:
		s.SummaryStatus = status
	case domain.FieldMarksheetStatus:
		s.MarksheetStatus = status
	}
}
