package dispatch

import (
	"context"
	"fmt"
	"sync"
)

// MockDispatcher records sends instead of calling out. FailNext makes the
// next call return a dispatch error, mimicking an unreachable speech service.
type MockDispatcher struct {
	mu       sync.Mutex
	sent     []string
	failNext bool
}

func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{}
}

func (m *MockDispatcher) Send(ctx context.Context, text, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return "", &Error{StatusCode: 503, Err: fmt.Errorf("mock dispatch failure")}
	}
	m.sent = append(m.sent, text)
	return fmt.Sprintf("mock://audio/%s/%d", userID, len(m.sent)), nil
}

// FailNext arms a one-shot failure.
func (m *MockDispatcher) FailNext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = true
}

// Sent returns the texts dispatched so far.
func (m *MockDispatcher) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}
