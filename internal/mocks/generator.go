package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/phrazzld/vivaflow/internal/generation"
)

// MockGenerator implements generation.Generator for testing.
type MockGenerator struct {
	GenerateFn func(ctx context.Context, req generation.Request) (json.RawMessage, error)

	// Default response values
	Response json.RawMessage
	Err      error

	GenerateCalls struct {
		mu       sync.Mutex
		Count    int
		Requests []generation.Request
	}
}

var _ generation.Generator = (*MockGenerator)(nil)

// Generate implements generation.Generator.
func (m *MockGenerator) Generate(ctx context.Context, req generation.Request) (json.RawMessage, error) {
	m.GenerateCalls.mu.Lock()
	m.GenerateCalls.Count++
	m.GenerateCalls.Requests = append(m.GenerateCalls.Requests, req)
	m.GenerateCalls.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, req)
	}
	return m.Response, m.Err
}

// CallCount returns how many times Generate was called.
func (m *MockGenerator) CallCount() int {
	m.GenerateCalls.mu.Lock()
	defer m.GenerateCalls.mu.Unlock()
	return m.GenerateCalls.Count
}

// NewMockGeneratorWithResponse creates a MockGenerator returning body.
func NewMockGeneratorWithResponse(body string) *MockGenerator {
	return &MockGenerator{Response: json.RawMessage(body)}
}

// NewMockGeneratorWithError creates a MockGenerator returning err.
func NewMockGeneratorWithError(err error) *MockGenerator {
	return &MockGenerator{Err: err}
}

// TestifyMockGenerator is a generation.Generator built on testify/mock.
type TestifyMockGenerator struct {
	mock.Mock
}

var _ generation.Generator = (*TestifyMockGenerator)(nil)

// Generate implements generation.Generator.
func (m *TestifyMockGenerator) Generate(ctx context.Context, req generation.Request) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	if raw, ok := args.Get(0).(json.RawMessage); ok {
		return raw, args.Error(1)
	}
	return nil, args.Error(1)
}
