package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/cfraser/adventure-engine/internal/services"
	"github.com/cfraser/adventure-engine/pkg/engine"
	"github.com/cfraser/adventure-engine/pkg/prompts"
	"github.com/cfraser/adventure-engine/pkg/session"
)

// ActionSelector narrows the engine's full action list to a smaller,
// more interesting subset for presentation. The engine's list is always
// the authority; the selector never invents actions.
type ActionSelector struct {
	llm    services.LLMService
	logger *slog.Logger
}

// NewActionSelector creates an action selector backed by the given LLM.
func NewActionSelector(llm services.LLMService, logger *slog.Logger) *ActionSelector {
	return &ActionSelector{
		llm:    llm,
		logger: logger,
	}
}

// Select returns at most maxActions of the given actions, chosen by the
// model but reordered to preserve the engine's ordering. On any failure
// the first maxActions actions are returned unchanged. A maxActions of
// zero or less disables selection.
func (sel *ActionSelector) Select(ctx context.Context, s *session.Session, actions []engine.Action, maxActions int) []engine.Action {
	if maxActions <= 0 || len(actions) <= maxActions {
		return actions
	}

	var list strings.Builder
	for i, a := range actions {
		fmt.Fprintf(&list, "%d. %s\n", i+1, a.Description)
	}

	messages, err := prompts.New().
		WithTask(fmt.Sprintf(prompts.SelectorSystemPrompt, maxActions)).
		WithWorld(s.World, s.PlayerID).
		WithHistory(s.History).
		WithHistoryLimit(session.PromptHistoryLimit).
		WithUserInstruction(list.String()).
		Build()
	if err != nil {
		sel.logger.Warn("Failed to build selector prompt", "error", err)
		return actions[:maxActions]
	}

	response, err := sel.llm.Chat(ctx, messages)
	if err != nil {
		sel.logger.Warn("Action selection failed, using deterministic prefix",
			"error", err,
			"session_id", s.ID.String())
		return actions[:maxActions]
	}

	picks := parseSelection(response, len(actions))
	if len(picks) == 0 {
		sel.logger.Warn("Unusable action selection output, using deterministic prefix",
			"session_id", s.ID.String(),
			"response_preview", truncate(response, 80))
		return actions[:maxActions]
	}

	// The model answers in preference order; keep its top picks, then
	// restore the engine's ordering.
	if len(picks) > maxActions {
		picks = picks[:maxActions]
	}
	sort.Ints(picks)

	selected := make([]engine.Action, 0, len(picks))
	for _, idx := range picks {
		selected = append(selected, actions[idx])
	}
	return selected
}

// parseSelection extracts zero-based action indexes from the model's
// JSON array of 1-based numbers, dropping duplicates and out-of-range
// picks. Returns nil when nothing usable remains.
func parseSelection(response string, count int) []int {
	raw := extractJSONArray(response)
	if raw == "" {
		return nil
	}

	var numbers []int
	if err := json.Unmarshal([]byte(raw), &numbers); err != nil {
		return nil
	}

	seen := make(map[int]bool, len(numbers))
	var picks []int
	for _, n := range numbers {
		if n < 1 || n > count || seen[n] {
			continue
		}
		seen[n] = true
		picks = append(picks, n-1)
	}
	return picks
}
