// Package prompts builds the LLM message arrays used by the narrative
// services: world generation, narration, action selection and discovery.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cfraser/adventure-engine/pkg/chat"
	"github.com/cfraser/adventure-engine/pkg/session"
	"github.com/cfraser/adventure-engine/pkg/world"
)

// WorldSystemPrompt instructs the model to emit a complete world document.
// The engine validates the output; anything that fails validation is
// discarded by the caller.
const WorldSystemPrompt = `You are a world builder for a text adventure engine. Read the player's description of the adventure they want, then output ONLY a JSON object matching the provided schema. No prose, no markdown fences.

OUTPUT SCHEMA (strict)
- world_name: string (the world's title)
- world_description: string (a one-sentence premise)
- starting_location: string (id of an existing place)
- entities: array of typed objects. Every entity has "type", "id", "name" and may have "description".
  • type="place": may have "connections", an object mapping a destination place id to null or to {requires_item?, requires_health?}
  • type="person": has "location" (a place id), "health" (0-100), "energy" (0-100), and may have "inventory" (array of item ids)
  • type="item": has "location" (a place id or the id of the person holding it), "usable" (boolean), "consumable" (boolean), and may have "effects" {health?, energy?} when usable

GENERAL RULES
- ids are lowercase snake_case and unique across ALL entities.
- Include 3 to 6 places, 2 to 4 people, and 3 to 6 items.
- Exactly one person is the player character; give that person the id "player".
- Every connection destination must be the id of a place in the world.
- Every person's location must be the id of a place in the world.
- Every item's location must be the id of a place or person in the world.
- starting_location names the place where the player begins. Place the player person there.
- Most connections are open (null). Gate at most two connections with requires_item or requires_health.
- usable items carry effects; effects values may be negative for harmful items.

EXAMPLE (abbreviated)
{"world_name":"Harbor Town","world_description":"A fog-bound port where every favor has a price.","starting_location":"docks","entities":[{"type":"place","id":"docks","name":"The Docks","connections":{"market":null}},{"type":"place","id":"market","name":"Fish Market","connections":{"docks":null}},{"type":"person","id":"player","name":"Mara","location":"docks","health":100,"energy":100,"inventory":["rope"]},{"type":"item","id":"rope","name":"Coil of Rope","location":"player","usable":false,"consumable":false}]}`

// NarratorSystemPrompt is the persona prompt for post-action narration.
// The engine is the source of truth: the narrator describes what the
// engine already did and never invents state changes of its own.
const NarratorSystemPrompt = `You are the omniscient narrator of a text adventure. The game engine has already resolved the player's action; your job is to describe the outcome. You never discuss things outside of the game. Your perspective is third-person.

### CRITICAL DIRECTIVES
- The engine's change list is the complete truth of what happened. Narrate those changes and NOTHING else.
- DO NOT invent items, characters, locations or events.
- DO NOT move the player or alter their possessions beyond what the change list says.
- If the action failed, narrate the failure gently and leave the world as it was.

### Writing rules
- The total response must be between 1 and 3 paragraphs.
- Each paragraph may contain at most 3 sentences.
- Normal narration must never use colons. Colons are reserved for dialogue lines.
- When a character speaks, start a new paragraph and use the format:
  CharacterName: "Spoken line here."
- Do not break the fourth wall. Do not acknowledge that you are an AI.`

// OpeningSystemPrompt produces the scene-setting narration for a fresh
// world before any action has been taken.
const OpeningSystemPrompt = `You are the omniscient narrator of a text adventure that is about to begin. Using the world state you are given, write the opening scene: where the player stands, what they notice, who is nearby. Do not move the player or change the world. The total response must be between 1 and 3 paragraphs, each of at most 3 sentences. Do not use colons outside of dialogue lines.`

// SelectorSystemPrompt asks the model to pick the most interesting subset
// of the legal actions. Output is a JSON array of action numbers.
const SelectorSystemPrompt = `You are the director of a text adventure. You receive a numbered list of every action the game engine will accept this turn. Choose the %d options that are most interesting for the player right now, favoring variety over repetition. Output ONLY a JSON array of the chosen numbers in your order of preference, e.g. [3,1,7]. No prose.`

// DiscoverySystemPrompt invents a single new entity after a successful
// exploration. The engine validates and merges the result.
const DiscoverySystemPrompt = `You are a world builder for a text adventure. The player has just explored their surroundings, and the exploration succeeded. Invent exactly ONE new entity for them to find: a hidden place, a stranger, or an object. Output ONLY a JSON object for that single entity, using the same schema as world entities:
- {"type":"place","id":...,"name":...,"description":...,"connections":{...}} for a hidden place, or
- {"type":"person","id":...,"name":...,"description":...,"location":...,"health":...,"energy":...} for a stranger, or
- {"type":"item","id":...,"name":...,"description":...,"location":...,"usable":...,"consumable":...} for an object.

RULES
- The id must be lowercase snake_case and must not collide with any existing entity id.
- A discovered person or item must be located at the player's current location.
- A discovered place should connect back to the player's current location.
- No prose, no markdown fences.`

// Content rating prompts, appended to narration system prompts.
const ContentRatingG = `Write content suitable for young children. Avoid violence, romance and scary elements. Use simple language and positive messages. `
const ContentRatingPG = `Write content suitable for children and families. Mild peril or tension is okay, but avoid strong language, explicit violence, or dark themes. `
const ContentRatingPG13 = `Write content appropriate for teenagers. You may include mild swearing, romantic tension, action scenes, and complex emotional themes, but avoid explicit adult situations, graphic violence, or drug use. `
const ContentRatingR = `Write with full freedom for adult audiences. All content should progress the story. `

// StateTemplate wraps the serialized world for the model. The player id
// tells the narrator whose viewpoint anchors the scene.
const StateTemplate = "The player controls the character with id %q.\n\nThe following JSON describes the complete world and current state.\n\nWorld State:\n```json\n%s\n```"

// ActionTemplate describes a resolved action for the narrator: what the
// player did and the ordered change descriptions the engine recorded.
const ActionTemplate = "The player's action this turn: %s\n\nThe engine applied these changes, in order:\n%s"

// GetContentRatingPrompt returns the narration constraints for a rating.
func GetContentRatingPrompt(rating string) string {
	switch rating {
	case session.RatingG:
		return ContentRatingG
	case session.RatingPG:
		return ContentRatingPG
	case session.RatingPG13:
		return ContentRatingPG13
	case session.RatingR:
		return ContentRatingR
	default:
		return ContentRatingPG13
	}
}

// StateMessage renders the world into a system message for the model.
func StateMessage(w *world.World, playerID string) (chat.Message, error) {
	if w == nil {
		return chat.Message{}, fmt.Errorf("world is nil")
	}
	data, err := json.Marshal(w)
	if err != nil {
		return chat.Message{}, fmt.Errorf("failed to marshal world: %w", err)
	}
	return chat.Message{
		Role:    chat.RoleSystem,
		Content: fmt.Sprintf(StateTemplate, playerID, data),
	}, nil
}

// ActionMessage renders a resolved action and its change descriptions
// into a system message for the narrator.
func ActionMessage(actionDescription string, changeDescriptions []string) chat.Message {
	changes := "- (none; the world is unchanged)"
	if len(changeDescriptions) > 0 {
		changes = "- " + strings.Join(changeDescriptions, "\n- ")
	}
	return chat.Message{
		Role:    chat.RoleSystem,
		Content: fmt.Sprintf(ActionTemplate, actionDescription, changes),
	}
}
