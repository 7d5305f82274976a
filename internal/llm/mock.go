package llm

import (
	"context"
	"sync"
)

// MockClient answers with canned responses. Responses are consumed in order
// and the last one repeats; Err, when set, is returned instead.
type MockClient struct {
	ModelName string
	Responses []map[string]any
	Err       error

	mu      sync.Mutex
	prompts []string
}

// NewMockClient returns a mock that answers with responses.
func NewMockClient(responses ...map[string]any) *MockClient {
	return &MockClient{ModelName: "mock", Responses: responses}
}

func (m *MockClient) GenerateStructured(ctx context.Context, prompt string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return map[string]any{}, nil
	}
	idx := len(m.prompts) - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

func (m *MockClient) Model() string {
	if m.ModelName == "" {
		return "mock"
	}
	return m.ModelName
}

// Prompts returns every prompt received so far.
func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
