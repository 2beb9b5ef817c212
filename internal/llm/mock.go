package llm

import (
	"context"
	"sync"
)

// MockClient permite tests sin llamar a un LLM real.
type MockClient struct {
	Response string
	Err      error

	mu      sync.Mutex
	Systems []string
	History [][]ChatMessage
}

func (m *MockClient) Generate(ctx context.Context, prompt string) (string, error) {
	return m.Complete(ctx, "", []ChatMessage{{Role: RoleUser, Content: prompt}})
}

func (m *MockClient) Complete(ctx context.Context, system string, history []ChatMessage) (string, error) {
	m.mu.Lock()
	m.Systems = append(m.Systems, system)
	m.History = append(m.History, append([]ChatMessage(nil), history...))
	m.mu.Unlock()
	return m.Response, m.Err
}

// Calls devuelve cuántas veces se invocó el mock.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.History)
}
