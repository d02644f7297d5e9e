package prompts

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cfraser/adventure-engine/pkg/chat"
	"github.com/cfraser/adventure-engine/pkg/session"
	"github.com/cfraser/adventure-engine/pkg/world"
)

func builderTestWorld() *world.World {
	return &world.World{
		Name:             "Riverside",
		StartingLocation: "tavern",
		Entities: []world.Entity{
			&world.Place{ID: "tavern", Name: "The Tavern"},
			&world.Person{ID: "hero", Name: "Aria", Location: "tavern", Health: 90, Energy: 80},
		},
	}
}

func TestBuilder_MessageOrder(t *testing.T) {
	history := []chat.Message{
		{Role: chat.RoleUser, Content: "first"},
		{Role: chat.RoleNarrator, Content: "second"},
	}

	messages, err := New().
		WithTask(NarratorSystemPrompt).
		WithWorld(builderTestWorld(), "hero").
		WithAction(ActionMessage("MOVE to forest", []string{"Aria spends 5 energy."})).
		WithHistory(history).
		WithUserInstruction("keep it brief").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(messages) != 6 {
		t.Fatalf("got %d messages, want 6", len(messages))
	}

	if messages[0].Role != chat.RoleSystem || !strings.Contains(messages[0].Content, "narrator") {
		t.Errorf("first message should be the task prompt, got role %q", messages[0].Role)
	}
	if !strings.Contains(messages[1].Content, `"Riverside"`) {
		t.Errorf("second message should carry the world state, got %q", messages[1].Content)
	}
	if !strings.Contains(messages[2].Content, "Aria spends 5 energy.") {
		t.Errorf("third message should carry the action, got %q", messages[2].Content)
	}
	if messages[3].Content != "first" || messages[4].Content != "second" {
		t.Errorf("history not in order: %q then %q", messages[3].Content, messages[4].Content)
	}
	if messages[4].Role != chat.RoleNarrator {
		t.Errorf("history role = %q, want narrator", messages[4].Role)
	}
	if messages[5].Role != chat.RoleUser || messages[5].Content != "keep it brief" {
		t.Errorf("last message should be the instruction, got %+v", messages[5])
	}
}

func TestBuilder_UserInstructionLast(t *testing.T) {
	messages, err := New().
		WithTask(NarratorSystemPrompt).
		WithHistory([]chat.Message{{Role: chat.RoleNarrator, Content: "old narration"}}).
		WithUserInstruction("keep it brief").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	last := messages[len(messages)-1]
	if last.Role != chat.RoleUser || last.Content != "keep it brief" {
		t.Errorf("last message should be the user instruction, got %+v", last)
	}
}

func TestBuilder_RequiresTask(t *testing.T) {
	if _, err := New().WithWorld(builderTestWorld(), "hero").Build(); err == nil {
		t.Error("expected an error when no task prompt is set")
	}
}

func TestBuilder_NilWorldOmitsState(t *testing.T) {
	messages, err := New().
		WithTask(WorldSystemPrompt).
		WithUserInstruction("a quiet fishing village with a secret").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	if messages[1].Role != chat.RoleUser {
		t.Errorf("second message role = %q, want user", messages[1].Role)
	}
}

func TestBuilder_HistoryWindow(t *testing.T) {
	history := make([]chat.Message, 10)
	for i := range history {
		history[i] = chat.Message{Role: chat.RoleNarrator, Content: fmt.Sprintf("turn %d", i)}
	}

	messages, err := New().
		WithTask(NarratorSystemPrompt).
		WithHistory(history).
		WithHistoryLimit(3).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// task prompt + 3 windowed history messages
	if len(messages) != 4 {
		t.Fatalf("got %d messages, want 4", len(messages))
	}
	if messages[1].Content != "turn 7" {
		t.Errorf("window should start at turn 7, got %q", messages[1].Content)
	}
	if messages[3].Content != "turn 9" {
		t.Errorf("window should end at turn 9, got %q", messages[3].Content)
	}
}

func TestBuilder_RatingAppended(t *testing.T) {
	messages, err := New().
		WithTask(NarratorSystemPrompt).
		WithRating(session.RatingG).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !strings.Contains(messages[0].Content, "Content Rating: G") {
		t.Errorf("task prompt should mention the rating, got %q", messages[0].Content)
	}
	if !strings.Contains(messages[0].Content, "young children") {
		t.Error("task prompt should include the rating constraints")
	}
}
