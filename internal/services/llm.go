// Package services holds the LLM provider clients used by the
// narrative layer.
package services

import (
	"context"

	"github.com/cfraser/adventure-engine/pkg/chat"
)

// LLMService is the surface the narrative generators need from a model
// provider. Implementations are data-in/data-out: they never touch
// world state.
type LLMService interface {
	// InitModel prepares the named model for use. Providers with no
	// warm-up step return nil immediately.
	InitModel(ctx context.Context, modelName string) error

	// Chat sends the conversation and returns the model's reply text.
	Chat(ctx context.Context, messages []chat.Message) (string, error)

	// IsModelReady reports whether the named model can serve requests.
	IsModelReady(ctx context.Context, modelName string) (bool, error)
}
