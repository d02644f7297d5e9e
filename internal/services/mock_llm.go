package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/cfraser/adventure-engine/pkg/chat"
)

// MockLLMService is a configurable LLMService for tests.
type MockLLMService struct {
	mu sync.Mutex

	// Override functions. When set, they replace the default behavior.
	InitModelFunc    func(ctx context.Context, modelName string) error
	ChatFunc         func(ctx context.Context, messages []chat.Message) (string, error)
	IsModelReadyFunc func(ctx context.Context, modelName string) (bool, error)

	// Call tracking.
	InitModelCalls    []string
	ChatCalls         [][]chat.Message
	IsModelReadyCalls []string
}

var _ LLMService = (*MockLLMService)(nil)

// NewMockLLMService creates a mock that succeeds on every call and
// returns a canned reply from Chat.
func NewMockLLMService() *MockLLMService {
	return &MockLLMService{}
}

func (m *MockLLMService) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	m.InitModelCalls = append(m.InitModelCalls, modelName)
	fn := m.InitModelFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, modelName)
	}
	return nil
}

func (m *MockLLMService) Chat(ctx context.Context, messages []chat.Message) (string, error) {
	m.mu.Lock()
	m.ChatCalls = append(m.ChatCalls, messages)
	fn := m.ChatFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages)
	}
	return "The story continues.", nil
}

func (m *MockLLMService) IsModelReady(ctx context.Context, modelName string) (bool, error) {
	m.mu.Lock()
	m.IsModelReadyCalls = append(m.IsModelReadyCalls, modelName)
	fn := m.IsModelReadyFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, modelName)
	}
	return true, nil
}

// SetChatResponse makes Chat return the given text.
func (m *MockLLMService) SetChatResponse(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatFunc = func(ctx context.Context, messages []chat.Message) (string, error) {
		return text, nil
	}
}

// SetChatResponses makes Chat return each text in order, then repeat
// the last one.
func (m *MockLLMService) SetChatResponses(texts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := 0
	m.ChatFunc = func(ctx context.Context, messages []chat.Message) (string, error) {
		if len(texts) == 0 {
			return "", fmt.Errorf("no responses configured")
		}
		text := texts[i]
		if i < len(texts)-1 {
			i++
		}
		return text, nil
	}
}

// SetChatError makes Chat fail with the given error.
func (m *MockLLMService) SetChatError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatFunc = func(ctx context.Context, messages []chat.Message) (string, error) {
		return "", err
	}
}

// SetInitModelError makes InitModel fail with the given error.
func (m *MockLLMService) SetInitModelError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelFunc = func(ctx context.Context, modelName string) error {
		return err
	}
}

// SetModelNotReady makes IsModelReady report false.
func (m *MockLLMService) SetModelNotReady() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IsModelReadyFunc = func(ctx context.Context, modelName string) (bool, error) {
		return false, nil
	}
}

// Reset clears all overrides and recorded calls.
func (m *MockLLMService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelFunc = nil
	m.ChatFunc = nil
	m.IsModelReadyFunc = nil
	m.InitModelCalls = nil
	m.ChatCalls = nil
	m.IsModelReadyCalls = nil
}

// GetChatCalls returns a copy of the recorded Chat calls.
func (m *MockLLMService) GetChatCalls() [][]chat.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([][]chat.Message, len(m.ChatCalls))
	copy(calls, m.ChatCalls)
	return calls
}
