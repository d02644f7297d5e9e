package narrative

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cfraser/adventure-engine/internal/services"
	"github.com/cfraser/adventure-engine/pkg/prompts"
	"github.com/cfraser/adventure-engine/pkg/session"
	"github.com/cfraser/adventure-engine/pkg/world"
)

// DiscoveryService invents one new entity after a successful
// exploration. The orchestrator validates and merges the result; the
// service itself never touches the world.
type DiscoveryService struct {
	llm    services.LLMService
	logger *slog.Logger
}

// NewDiscoveryService creates a discovery service backed by the given LLM.
func NewDiscoveryService(llm services.LLMService, logger *slog.Logger) *DiscoveryService {
	return &DiscoveryService{
		llm:    llm,
		logger: logger,
	}
}

// Discover returns a single new entity for the player to find. Unusable
// model output comes back as an error; callers treat any error as
// "nothing found" and move on.
func (d *DiscoveryService) Discover(ctx context.Context, s *session.Session) (world.Entity, error) {
	messages, err := prompts.New().
		WithTask(prompts.DiscoverySystemPrompt).
		WithWorld(s.World, s.PlayerID).
		WithHistory(s.History).
		WithHistoryLimit(session.PromptHistoryLimit).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build discovery prompt: %w", err)
	}

	response, err := d.llm.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("LLM chat failed: %w", err)
	}

	raw := extractJSONObject(response)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in discovery output")
	}

	entity, err := world.UnmarshalEntity([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal discovered entity: %w", err)
	}
	if entity.EntityID() == "" {
		return nil, fmt.Errorf("discovered entity has an empty id")
	}

	d.logger.Debug("Entity discovered",
		"session_id", s.ID.String(),
		"entity_id", entity.EntityID(),
		"entity_kind", entity.EntityKind())
	return entity, nil
}
