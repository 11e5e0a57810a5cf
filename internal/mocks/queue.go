package mocks

import "sync"

// MockMessageQueue is an in-memory MessageQueue for tests.
type MockMessageQueue struct {
	PublishFunc   func(subject string, data []byte) error
	SubscribeFunc func(subject string, handler func(data []byte) error) error

	mu        sync.Mutex
	Published map[string][][]byte
}

func (m *MockMessageQueue) Publish(subject string, data []byte) error {
	m.mu.Lock()
	if m.Published == nil {
		m.Published = make(map[string][][]byte)
	}
	m.Published[subject] = append(m.Published[subject], data)
	m.mu.Unlock()

	if m.PublishFunc != nil {
		return m.PublishFunc(subject, data)
	}
	return nil
}

func (m *MockMessageQueue) Subscribe(subject string, handler func(data []byte) error) error {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(subject, handler)
	}
	return nil
}

func (m *MockMessageQueue) Close() error { return nil }
