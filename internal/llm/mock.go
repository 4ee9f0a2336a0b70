package llm

import (
	"context"

	"simple-gpt/internal/domain"
)

// MockClient permite tests sin llamar a un LLM real.
type MockClient struct {
	Response string
	Err      error
	Calls    int
	LastSys  string
	LastMsgs []domain.Message
}

func (m *MockClient) Complete(_ context.Context, system string, history []domain.Message) (string, error) {
	m.Calls++
	m.LastSys = system
	m.LastMsgs = history
	return m.Response, m.Err
}
