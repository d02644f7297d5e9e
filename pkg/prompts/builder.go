package prompts

import (
	"fmt"

	"github.com/cfraser/adventure-engine/pkg/chat"
	"github.com/cfraser/adventure-engine/pkg/world"
)

// Builder constructs chat messages for LLM interaction using a fluent
// interface. Each narrative service sets the pieces it has; Build
// assembles them in a fixed order: task prompt, world state, windowed
// history, user instruction.
type Builder struct {
	task         string
	rating       string
	world        *world.World
	playerID     string
	action       *chat.Message
	history      []chat.Message
	historyLimit int
	instruction  string
}

// New creates a prompt builder with default settings.
func New() *Builder {
	return &Builder{
		historyLimit: 20,
	}
}

// WithTask sets the task system prompt, for example NarratorSystemPrompt.
func (b *Builder) WithTask(prompt string) *Builder {
	b.task = prompt
	return b
}

// WithRating appends content-rating constraints to the task prompt.
func (b *Builder) WithRating(rating string) *Builder {
	b.rating = rating
	return b
}

// WithWorld sets the world serialized into the state message. A nil
// world omits the state message, which world generation relies on.
func (b *Builder) WithWorld(w *world.World, playerID string) *Builder {
	b.world = w
	b.playerID = playerID
	return b
}

// WithAction sets the resolved-action message produced by ActionMessage.
func (b *Builder) WithAction(msg chat.Message) *Builder {
	b.action = &msg
	return b
}

// WithHistory sets the conversation history to window into the prompt.
func (b *Builder) WithHistory(history []chat.Message) *Builder {
	b.history = history
	return b
}

// WithHistoryLimit sets the history window size.
func (b *Builder) WithHistoryLimit(limit int) *Builder {
	b.historyLimit = limit
	return b
}

// WithUserInstruction sets the player's free-text instruction, sent as
// the final user message.
func (b *Builder) WithUserInstruction(instruction string) *Builder {
	b.instruction = instruction
	return b
}

// Build assembles the final message array for LLM consumption.
func (b *Builder) Build() ([]chat.Message, error) {
	if b.task == "" {
		return nil, fmt.Errorf("task prompt is required")
	}

	messages := make([]chat.Message, 0, 4+b.historyLimit)

	task := b.task
	if b.rating != "" {
		task += "\n\nContent Rating: " + b.rating + " (" + GetContentRatingPrompt(b.rating) + ")"
	}
	messages = append(messages, chat.Message{
		Role:    chat.RoleSystem,
		Content: task,
	})

	if b.world != nil {
		stateMsg, err := StateMessage(b.world, b.playerID)
		if err != nil {
			return nil, fmt.Errorf("error building state message: %w", err)
		}
		messages = append(messages, stateMsg)
	}

	if b.action != nil {
		messages = append(messages, *b.action)
	}

	messages = append(messages, windowed(b.history, b.historyLimit)...)

	if b.instruction != "" {
		messages = append(messages, chat.Message{
			Role:    chat.RoleUser,
			Content: b.instruction,
		})
	}

	return messages, nil
}

func windowed(history []chat.Message, limit int) []chat.Message {
	if limit <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}
