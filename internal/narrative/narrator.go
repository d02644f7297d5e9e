package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cfraser/adventure-engine/internal/services"
	"github.com/cfraser/adventure-engine/pkg/chat"
	"github.com/cfraser/adventure-engine/pkg/engine"
	"github.com/cfraser/adventure-engine/pkg/prompts"
	"github.com/cfraser/adventure-engine/pkg/session"
)

// Narrator turns resolved actions into story text. The engine's change
// list is the complete truth of what happened; the narrator only
// describes it.
type Narrator struct {
	llm    services.LLMService
	logger *slog.Logger
}

// NewNarrator creates a narrator backed by the given LLM.
func NewNarrator(llm services.LLMService, logger *slog.Logger) *Narrator {
	return &Narrator{
		llm:    llm,
		logger: logger,
	}
}

// Narrate describes the outcome of a resolved action. The session's
// world must already reflect the engine's result. Instruction is the
// player's optional free text accompanying the action.
func (n *Narrator) Narrate(ctx context.Context, s *session.Session, action engine.Action, result *engine.ActionResult, instruction string) (string, error) {
	desc := action.Description
	if desc == "" {
		desc = string(action.Type)
	}

	var actionMsg chat.Message
	if result.Success {
		actionMsg = prompts.ActionMessage(desc, result.Changes)
	} else {
		actionMsg = prompts.ActionMessage(fmt.Sprintf("%s (the engine rejected it: %s)", desc, result.Error), nil)
	}

	// The narration prompt reserves "Name:" lines for dialogue, so the
	// player's words carry their name.
	if instruction != "" {
		if player, ok := s.World.FindPerson(s.PlayerID); ok {
			instruction = chat.FormatWithSpeaker(instruction, player.Name)
		}
	}

	messages, err := prompts.New().
		WithTask(prompts.NarratorSystemPrompt).
		WithRating(s.Rating).
		WithWorld(s.World, s.PlayerID).
		WithAction(actionMsg).
		WithHistory(s.History).
		WithHistoryLimit(session.PromptHistoryLimit).
		WithUserInstruction(instruction).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build narration prompt: %w", err)
	}

	n.logger.Debug("Sending narration request to LLM",
		"session_id", s.ID.String(),
		"action", action.Type,
		"success", result.Success)
	response, err := n.llm.Chat(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("LLM chat failed: %w", err)
	}

	return strings.TrimSpace(response), nil
}
