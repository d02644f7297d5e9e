package handlers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cfraser/adventure-engine/pkg/session"
)

type commandType string

const (
	cmdLook      commandType = "look"
	cmdInventory commandType = "inventory"
	cmdStats     commandType = "stats"
	cmdNone      commandType = "" // No command, used for fallback
)

// CommandResult is the outcome of a shortcut command resolved from
// session state without the engine or the LLM.
type CommandResult struct {
	Handled bool
	Message string
}

// parseCommand parses the input string and returns the command type if
// recognized. If not recognized, returns cmdNone.
func parseCommand(input string) commandType {
	known := map[string]commandType{
		"look":      cmdLook,
		"location":  cmdLook,
		"l":         cmdLook,
		"inventory": cmdInventory,
		"i":         cmdInventory,
		"stats":     cmdStats,
		"status":    cmdStats,
	}
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return cmdNone
	}
	if cmd, ok := known[trimmed]; ok {
		return cmd
	}
	return cmdNone
}

// TryHandleCommand attempts to answer a shortcut command from the
// session. Unrecognized input comes back unhandled.
func TryHandleCommand(s *session.Session, input string) *CommandResult {
	switch parseCommand(input) {
	case cmdLook:
		return &CommandResult{Handled: true, Message: describeLocation(s)}
	case cmdInventory:
		return &CommandResult{Handled: true, Message: describeInventory(s)}
	case cmdStats:
		return &CommandResult{Handled: true, Message: describeStats(s)}
	default:
		return &CommandResult{Handled: false, Message: input}
	}
}

// describeLocation returns the player's current place, its description
// and where the paths lead.
func describeLocation(s *session.Session) string {
	player, ok := s.World.FindPerson(s.PlayerID)
	if !ok {
		return "You are in an unknown location."
	}
	place, ok := s.World.FindPlace(player.Location)
	if !ok {
		return "You are in an unknown location."
	}

	desc := fmt.Sprintf("%s: %s", place.Name, place.Description)
	if len(place.Connections) == 0 {
		return desc
	}

	targets := make([]string, 0, len(place.Connections))
	for targetID := range place.Connections {
		name := targetID
		if target, ok := s.World.FindPlace(targetID); ok {
			name = target.Name
		}
		targets = append(targets, name)
	}
	sort.Strings(targets)
	return fmt.Sprintf("%s Paths lead to: %s.", desc, strings.Join(targets, ", "))
}

// describeInventory returns a description of the player's inventory.
func describeInventory(s *session.Session) string {
	player, ok := s.World.FindPerson(s.PlayerID)
	if !ok || len(player.Inventory) == 0 {
		return "Your inventory is empty."
	}

	names := make([]string, 0, len(player.Inventory))
	for _, itemID := range player.Inventory {
		name := itemID
		if item, ok := s.World.FindItem(itemID); ok {
			name = item.Name
		}
		names = append(names, name)
	}
	return "You have:\n- " + strings.Join(names, "\n- ")
}

// describeStats returns the player's health and energy.
func describeStats(s *session.Session) string {
	player, ok := s.World.FindPerson(s.PlayerID)
	if !ok {
		return "You feel strangely absent."
	}
	return fmt.Sprintf("Health %d/100. Energy %d/100.", player.Health, player.Energy)
}
