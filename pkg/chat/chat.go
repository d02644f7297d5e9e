// Package chat defines the conversation model shared by the LLM
// services, the prompt builder and session history.
package chat

import (
	"fmt"
	"strings"
)

const (
	RoleUser     = "user"
	RoleNarrator = "assistant" // narration returned by the model
	RoleSystem   = "system"
)

// MaxInstructionLength bounds free-text player instructions accepted
// by the API.
const MaxInstructionLength = 1000

// Message is a single turn in an LLM conversation. The wire shape
// follows the chat schema that Anthropic, OpenAI and Ollama all accept.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// maxSpeakerPrefix is the longest leading "Name:" span treated as an
// existing speaker tag. A colon past this point is sentence punctuation,
// not a speaker.
const maxSpeakerPrefix = 50

// FormatWithSpeaker prefixes text with "name: " unless the text already
// opens with a speaker tag.
func FormatWithSpeaker(text string, name string) string {
	if idx := strings.Index(text, ":"); idx > 0 && idx <= maxSpeakerPrefix {
		return text
	}
	return fmt.Sprintf("%s: %s", name, text)
}

// ValidateInstruction checks a free-text player instruction before it is
// passed to the narrative layer.
func ValidateInstruction(instruction string) error {
	if instruction == "" {
		return fmt.Errorf("instruction cannot be empty")
	}
	if len(instruction) > MaxInstructionLength {
		return fmt.Errorf("instruction exceeds maximum length of %d characters", MaxInstructionLength)
	}
	return nil
}
