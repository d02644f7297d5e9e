// Package narrative implements the LLM-backed generation services around
// the engine: world generation, narration, action selection and entity
// discovery. Every service is data-in/data-out over an LLMService; the
// engine stays the single source of truth for world state.
package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cfraser/adventure-engine/internal/services"
	"github.com/cfraser/adventure-engine/pkg/prompts"
	"github.com/cfraser/adventure-engine/pkg/world"
)

// WorldBuilder generates complete worlds from free-text descriptions.
type WorldBuilder struct {
	llm    services.LLMService
	logger *slog.Logger
}

// NewWorldBuilder creates a world builder backed by the given LLM.
func NewWorldBuilder(llm services.LLMService, logger *slog.Logger) *WorldBuilder {
	return &WorldBuilder{
		llm:    llm,
		logger: logger,
	}
}

// BuildWorld asks the model for a complete world document and validates
// it. Generation gets one retry; output that still fails validation is
// discarded with an error, and the caller decides on a fallback.
func (wb *WorldBuilder) BuildWorld(ctx context.Context, description string) (*world.World, error) {
	messages, err := prompts.New().
		WithTask(prompts.WorldSystemPrompt).
		WithUserInstruction(description).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build world prompt: %w", err)
	}

	maxAttempts := 2
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			wb.logger.Info("Retrying world generation", "attempt", attempt)
		}

		response, err := wb.llm.Chat(ctx, messages)
		if err != nil {
			lastErr = fmt.Errorf("LLM chat failed: %w", err)
			continue
		}

		w, err := parseWorld(response)
		if err != nil {
			wb.logger.Warn("Discarding unusable world output",
				"error", err,
				"attempt", attempt,
				"response_preview", truncate(response, 120))
			lastErr = err
			continue
		}

		wb.logger.Info("World generated",
			"world_name", w.Name,
			"entity_count", len(w.Entities),
			"starting_location", w.StartingLocation)
		return w, nil
	}

	return nil, fmt.Errorf("world generation failed: %w", lastErr)
}

// OpeningScene narrates the start of a session in a fresh world.
func (wb *WorldBuilder) OpeningScene(ctx context.Context, w *world.World, playerID string, rating string) (string, error) {
	messages, err := prompts.New().
		WithTask(prompts.OpeningSystemPrompt).
		WithRating(rating).
		WithWorld(w, playerID).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build opening prompt: %w", err)
	}

	response, err := wb.llm.Chat(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("LLM chat failed: %w", err)
	}

	return strings.TrimSpace(response), nil
}

// parseWorld decodes and validates a world document from raw model
// output.
func parseWorld(response string) (*world.World, error) {
	raw := extractJSONObject(response)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in world output")
	}

	var w world.World
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal world: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("generated world is invalid: %w", err)
	}
	if errs := w.CheckReferences(); len(errs) > 0 {
		return nil, fmt.Errorf("generated world has broken references: %w", errs[0])
	}

	return &w, nil
}
