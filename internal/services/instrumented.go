package services

import (
	"context"

	"github.com/cfraser/adventure-engine/internal/metrics"
	"github.com/cfraser/adventure-engine/pkg/chat"
)

// InstrumentedLLMService wraps an LLMService and counts every chat
// round trip under the provider's label.
type InstrumentedLLMService struct {
	inner    LLMService
	provider string
	metrics  *metrics.Metrics
}

var _ LLMService = (*InstrumentedLLMService)(nil)

// NewInstrumentedLLMService wraps inner. A nil metrics set disables
// recording without changing behavior.
func NewInstrumentedLLMService(inner LLMService, provider string, m *metrics.Metrics) *InstrumentedLLMService {
	return &InstrumentedLLMService{
		inner:    inner,
		provider: provider,
		metrics:  m,
	}
}

func (s *InstrumentedLLMService) InitModel(ctx context.Context, modelName string) error {
	return s.inner.InitModel(ctx, modelName)
}

func (s *InstrumentedLLMService) Chat(ctx context.Context, messages []chat.Message) (string, error) {
	text, err := s.inner.Chat(ctx, messages)
	if err != nil {
		s.metrics.RecordLLMRequest(s.provider, metrics.StatusError)
		return "", err
	}
	s.metrics.RecordLLMRequest(s.provider, metrics.StatusSuccess)
	return text, nil
}

func (s *InstrumentedLLMService) IsModelReady(ctx context.Context, modelName string) (bool, error) {
	return s.inner.IsModelReady(ctx, modelName)
}
