package llm

import (
	"context"
	"sync"
)

// MockClient permite tests sin llamar al proveedor real.
type MockClient struct {
	Response string
	Err      error

	mu       sync.Mutex
	Requests []CompletionRequest
}

func (m *MockClient) Complete(_ context.Context, req CompletionRequest) (string, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	return m.Response, m.Err
}

// Calls devuelve una copia de las requests recibidas.
func (m *MockClient) Calls() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.Requests...)
}
