package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/membench/pkg/llm"
)

// MockChatProvider is a test chat provider returning canned replies.
type MockChatProvider struct {
	mu sync.Mutex

	// Reply is returned for every chat call. Replies, when non-empty,
	// takes precedence and is consumed one entry per call.
	Reply   string
	Replies []string

	// Err fails every chat call when set.
	Err error

	// Requests records every request in order.
	Requests []*llm.ChatRequest
}

func NewMockChatProvider(reply string) *MockChatProvider {
	return &MockChatProvider{Reply: reply}
}

func (m *MockChatProvider) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)

	if m.Err != nil {
		return nil, m.Err
	}

	reply := m.Reply
	if len(m.Replies) > 0 {
		reply = m.Replies[0]
		m.Replies = m.Replies[1:]
	}

	return &llm.ChatResponse{
		Model:      "mock",
		Message:    llm.Message{Role: llm.RoleAssistant, Content: reply},
		StopReason: "stop",
	}, nil
}

func (m *MockChatProvider) Close() error {
	return nil
}

var _ llm.Provider = (*MockChatProvider)(nil)
