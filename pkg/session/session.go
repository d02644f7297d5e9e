// Package session holds the durable state of one adventure: the world,
// the player controlling it, the turn counter and the narration history.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/cfraser/adventure-engine/pkg/chat"
	"github.com/cfraser/adventure-engine/pkg/world"
)

// Content ratings a session may carry. The rating constrains narration
// tone and activates the text filter for the two family ratings.
const (
	RatingG    = "G"
	RatingPG   = "PG"
	RatingPG13 = "PG-13"
	RatingR    = "R"
)

// PromptHistoryLimit is the number of trailing history messages included
// in LLM prompts. Older narration is dropped from prompts but kept in
// the session record.
const PromptHistoryLimit = 6

// Session is one playthrough. Storage persists sessions as JSON; the
// World field always points at the latest committed world.
type Session struct {
	ID        uuid.UUID      `json:"id"`
	PlayerID  string         `json:"player_id"`
	World     *world.World   `json:"world"`
	Turn      int            `json:"turn"`
	Rating    string         `json:"rating,omitempty"`
	History   []chat.Message `json:"history,omitempty"`
	IsEnded   bool           `json:"is_ended,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// New creates a session for playerID in w.
func New(playerID string, w *world.World) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.New(),
		PlayerID:  playerID,
		World:     w,
		History:   make([]chat.Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendPlayerLine records the player's side of a turn.
func (s *Session) AppendPlayerLine(text string) {
	s.History = append(s.History, chat.Message{Role: chat.RoleUser, Content: text})
}

// AppendNarration records the narrator's side of a turn.
func (s *Session) AppendNarration(text string) {
	s.History = append(s.History, chat.Message{Role: chat.RoleNarrator, Content: text})
}

// RecentHistory returns the trailing limit messages, or all of them when
// fewer exist. The returned slice aliases the session history.
func (s *Session) RecentHistory(limit int) []chat.Message {
	if limit <= 0 {
		return nil
	}
	if len(s.History) <= limit {
		return s.History
	}
	return s.History[len(s.History)-limit:]
}
