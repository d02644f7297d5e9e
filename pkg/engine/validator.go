package engine

import (
	"fmt"

	"github.com/cfraser/adventure-engine/pkg/world"
)

// ValidationError reports a precondition that failed before any change
// was recorded. It is recoverable: the caller re-prompts the player and
// no state changes.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func rejectf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ActionValidator holds the pure, read-only precondition checks per
// action kind. It never mutates the world it inspects.
type ActionValidator struct{}

// Validate checks action against the world index. A nil return means the
// action may be recorded; a *ValidationError return means the action is
// rejected with no state change.
func (ActionValidator) Validate(idx map[string]world.Entity, player *world.Person, action Action) error {
	if player.Energy < action.EnergyCost {
		return rejectf("Not enough energy. Need %d, have %d.", action.EnergyCost, player.Energy)
	}

	switch action.Type {
	case ActionRest, ActionWait, ActionExplore:
		return nil

	case ActionMove:
		return validateMove(idx, player, action.TargetID)

	case ActionTalk:
		person, ok := idx[action.TargetID].(*world.Person)
		if !ok || person.Location != player.Location {
			return rejectf("Cannot talk to %q: they are not here.", action.TargetID)
		}
		return nil

	case ActionTakeItem:
		item, ok := idx[action.TargetID].(*world.Item)
		if !ok || item.Location != player.Location {
			return rejectf("Cannot take %q: no such item here.", action.TargetID)
		}
		return nil

	case ActionDropItem:
		if !player.HasItem(action.TargetID) {
			return rejectf("Cannot drop %q: it is not in your inventory.", action.TargetID)
		}
		return nil

	case ActionUseItem:
		if !player.HasItem(action.TargetID) {
			return rejectf("Cannot use %q: it is not in your inventory.", action.TargetID)
		}
		return nil

	case ActionExamine:
		if _, ok := idx[action.TargetID]; !ok {
			return rejectf("Cannot examine %q: no such entity.", action.TargetID)
		}
		return nil

	default:
		return rejectf("Unknown action type %q.", action.Type)
	}
}

// validateMove rejects a move unless the target is a listed connection
// of the player's current place whose requirements the player meets. An
// unmet requirement reads the same as a missing connection.
func validateMove(idx map[string]world.Entity, player *world.Person, targetID string) error {
	notConnected := rejectf("Cannot move to %q: it is not connected to your current location.", targetID)

	current, ok := idx[player.Location].(*world.Place)
	if !ok {
		return notConnected
	}
	req, listed := current.Connections[targetID]
	if !listed {
		return notConnected
	}
	if _, ok := idx[targetID].(*world.Place); !ok {
		return notConnected
	}
	if req != nil {
		if req.RequiresItem != "" && !player.HasItem(req.RequiresItem) {
			return notConnected
		}
		if req.RequiresHealth != nil && player.Health < *req.RequiresHealth {
			return notConnected
		}
	}
	return nil
}

// meetsRequirement reports whether the player satisfies a connection
// requirement. Used by action generation; validateMove folds the same
// checks into its rejection.
func meetsRequirement(player *world.Person, req *world.Requirement) bool {
	if req == nil {
		return true
	}
	if req.RequiresItem != "" && !player.HasItem(req.RequiresItem) {
		return false
	}
	if req.RequiresHealth != nil && player.Health < *req.RequiresHealth {
		return false
	}
	return true
}
