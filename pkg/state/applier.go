package state

import (
	"fmt"

	"github.com/cfraser/adventure-engine/pkg/world"
)

// applyChange mutates w according to a single recorded operation. idx is
// the entity index of w and is kept in sync as entities are added and
// removed. Field writes on a missing entity fail with
// *EntityNotFoundError so the caller can roll back.
func applyChange(w *world.World, idx map[string]world.Entity, op Operation) error {
	switch c := op.(type) {
	case *FieldMutation:
		entity, ok := idx[c.EntityID]
		if !ok {
			return &EntityNotFoundError{EntityID: c.EntityID}
		}
		return world.SetEntityField(entity, c.Path, c.New)

	case *EntityAdded:
		if c.Entity == nil {
			return fmt.Errorf("entity_added change carries no entity")
		}
		id := c.Entity.EntityID()
		if _, exists := idx[id]; exists {
			return fmt.Errorf("entity %q already exists in world", id)
		}
		clone := c.Entity.Clone()
		w.Entities = append(w.Entities, clone)
		idx[id] = clone
		return nil

	case *EntityRemoved:
		// Removing an absent entity is a no-op.
		w.RemoveEntity(c.EntityID)
		delete(idx, c.EntityID)
		return nil

	case *NarrativeEvent:
		// Narrative events reach the player through change descriptions
		// and never touch entity state.
		return nil

	default:
		return fmt.Errorf("unknown change operation %T", op)
	}
}
