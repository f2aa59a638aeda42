package completion

import (
	"context"
	"sync"
)

// MockClient is a test double recording every request it receives.
type MockClient struct {
	mu       sync.Mutex
	Response string
	Err      error
	Requests []Request
}

// Generate returns the canned response or error and records the request.
func (m *MockClient) Generate(_ context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// Calls returns how many requests Generate has received.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
