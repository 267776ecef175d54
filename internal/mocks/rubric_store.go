package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/store"
)

// MockRubricStore is an in-memory store.RubricStore.
type MockRubricStore struct {
	mu        sync.RWMutex
	rubrics   map[string]*domain.Rubric
	changedAt map[string]map[domain.StatusField]time.Time

	Now func() time.Time

	UpdateStatusFn        func(ctx context.Context, id string, field domain.StatusField, status domain.Status) error
	SaveRubricDataFn      func(ctx context.Context, id string, data json.RawMessage) error
	SaveOptimizedPromptFn func(ctx context.Context, id string, prompt string) error
}

var _ store.RubricStore = (*MockRubricStore)(nil)

// NewMockRubricStore creates an empty store.
func NewMockRubricStore() *MockRubricStore {
	return &MockRubricStore{
		rubrics:   make(map[string]*domain.Rubric),
		changedAt: make(map[string]map[domain.StatusField]time.Time),
		Now:       time.Now,
	}
}

// Create implements store.RubricStore.
func (m *MockRubricStore) Create(ctx context.Context, r *domain.Rubric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rubrics[r.ID]; ok {
		return store.ErrDuplicate
	}
	cp := *r
	if cp.Status == "" {
		cp.Status = domain.StatusPending
	}
	if cp.PromptStatus == "" {
		cp.PromptStatus = domain.StatusPending
	}
	m.rubrics[r.ID] = &cp
	m.changedAt[r.ID] = make(map[domain.StatusField]time.Time)
	return nil
}

// GetByID implements store.RubricStore and returns a copy.
func (m *MockRubricStore) GetByID(ctx context.Context, id string) (*domain.Rubric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rubrics[id]
	if !ok {
		return nil, store.ErrRubricNotFound
	}
	cp := *r
	return &cp, nil
}

// UpdateStatus implements store.RubricStore.
func (m *MockRubricStore) UpdateStatus(ctx context.Context, id string, field domain.StatusField, status domain.Status) error {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, id, field, status)
	}
	if !domain.IsRubricField(field) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatusField, field)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rubrics[id]
	if !ok {
		return store.ErrRubricNotFound
	}
	current, _ := r.StatusOf(field)
	if err := domain.ValidateTransition(current, status); err != nil {
		return err
	}
	if field == domain.FieldRubricStatus {
		r.Status = status
	} else {
		r.PromptStatus = status
	}
	r.UpdatedAt = m.Now().UTC()
	m.changedAt[id][field] = r.UpdatedAt
	return nil
}

// SaveRubricData implements store.RubricStore.
func (m *MockRubricStore) SaveRubricData(ctx context.Context, id string, data json.RawMessage) error {
	if m.SaveRubricDataFn != nil {
		return m.SaveRubricDataFn(ctx, id, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rubrics[id]
	if !ok {
		return store.ErrRubricNotFound
	}
	r.RubricData = append(json.RawMessage(nil), data...)
	return nil
}

// SaveOptimizedPrompt implements store.RubricStore.
func (m *MockRubricStore) SaveOptimizedPrompt(ctx context.Context, id string, prompt string) error {
	if m.SaveOptimizedPromptFn != nil {
		return m.SaveOptimizedPromptFn(ctx, id, prompt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rubrics[id]
	if !ok {
		return store.ErrRubricNotFound
	}
	r.OptimizedPrompt = prompt
	return nil
}

// FindInProgressOlderThan implements store.RubricStore.
func (m *MockRubricStore) FindInProgressOlderThan(ctx context.Context, field domain.StatusField, cutoff time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, r := range m.rubrics {
		current, err := r.StatusOf(field)
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
func (m *MockRubricStore) Status(id string, field domain.StatusField) domain.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rubrics[id]
	if !ok {
		return ""
	}
	v, _ := r.StatusOf(field)
	return v
}
