package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/vivaflow/internal/queue"
)

// MockPublisher records published messages and can be made to fail.
type MockPublisher struct {
	PublishFn func(ctx context.Context, queue string, body []byte) error
	Err       error

	mu        sync.Mutex
	published []PublishedMessage
}

// PublishedMessage is one recorded Publish call.
type PublishedMessage struct {
	Queue string
	Body  []byte
}

var _ queue.Publisher = (*MockPublisher)(nil)

// Publish implements queue.Publisher. Failed calls are not recorded.
func (m *MockPublisher) Publish(ctx context.Context, name string, body []byte) error {
	if m.PublishFn != nil {
		if err := m.PublishFn(ctx, name, body); err != nil {
			return err
		}
	} else if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, PublishedMessage{Queue: name, Body: append([]byte(nil), body...)})
	return nil
}

// Published returns the recorded messages.
func (m *MockPublisher) Published() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedMessage(nil), m.published...)
}
