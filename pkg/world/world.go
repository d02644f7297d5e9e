package world

import (
	"encoding/json"
	"fmt"
)

// World is the complete entity graph for one game.
type World struct {
	Name             string   `json:"world_name"`
	Description      string   `json:"world_description"`
	StartingLocation string   `json:"starting_location"`
	Entities         []Entity `json:"entities"`
}

// UnmarshalJSON decodes the world, dispatching each entity on its
// "type" discriminator.
func (w *World) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name             string            `json:"world_name"`
		Description      string            `json:"world_description"`
		StartingLocation string            `json:"starting_location"`
		Entities         []json.RawMessage `json:"entities"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	w.Name = raw.Name
	w.Description = raw.Description
	w.StartingLocation = raw.StartingLocation
	w.Entities = make([]Entity, 0, len(raw.Entities))
	for i, msg := range raw.Entities {
		e, err := UnmarshalEntity(msg)
		if err != nil {
			return fmt.Errorf("entity %d: %w", i, err)
		}
		w.Entities = append(w.Entities, e)
	}
	return nil
}

// Clone returns a deep copy of the world. Mutating the copy never
// affects the receiver.
func (w *World) Clone() *World {
	if w == nil {
		return nil
	}
	c := &World{
		Name:             w.Name,
		Description:      w.Description,
		StartingLocation: w.StartingLocation,
	}
	if w.Entities != nil {
		c.Entities = make([]Entity, len(w.Entities))
		for i, e := range w.Entities {
			c.Entities[i] = e.Clone()
		}
	}
	return c
}

// Index builds an id → entity lookup over the world's entities.
// The index aliases the world's entities; rebuild it after the entity
// slice changes.
func (w *World) Index() map[string]Entity {
	idx := make(map[string]Entity, len(w.Entities))
	for _, e := range w.Entities {
		idx[e.EntityID()] = e
	}
	return idx
}

// FindEntity returns the entity with the given id, if present.
func (w *World) FindEntity(id string) (Entity, bool) {
	for _, e := range w.Entities {
		if e.EntityID() == id {
			return e, true
		}
	}
	return nil, false
}

// FindPerson returns the person with the given id, if present.
func (w *World) FindPerson(id string) (*Person, bool) {
	e, ok := w.FindEntity(id)
	if !ok {
		return nil, false
	}
	p, ok := e.(*Person)
	return p, ok
}

// FindPlace returns the place with the given id, if present.
func (w *World) FindPlace(id string) (*Place, bool) {
	e, ok := w.FindEntity(id)
	if !ok {
		return nil, false
	}
	p, ok := e.(*Place)
	return p, ok
}

// FindItem returns the item with the given id, if present.
func (w *World) FindItem(id string) (*Item, bool) {
	e, ok := w.FindEntity(id)
	if !ok {
		return nil, false
	}
	i, ok := e.(*Item)
	return i, ok
}

// RemoveEntity deletes the entity with the given id from the world.
// Removing an absent id is a no-op.
func (w *World) RemoveEntity(id string) {
	for i, e := range w.Entities {
		if e.EntityID() == id {
			w.Entities = append(w.Entities[:i], w.Entities[i+1:]...)
			return
		}
	}
}

// Validate checks the world's structural integrity: every entity has a
// non-empty unique id, and stats start inside their bounds.
func (w *World) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("world_name is required")
	}
	if w.StartingLocation == "" {
		return fmt.Errorf("starting_location is required")
	}

	seen := make(map[string]bool, len(w.Entities))
	for i, e := range w.Entities {
		id := e.EntityID()
		if id == "" {
			return fmt.Errorf("entity %d has an empty id", i)
		}
		if seen[id] {
			return fmt.Errorf("duplicate entity id %q", id)
		}
		seen[id] = true

		if p, ok := e.(*Person); ok {
			if p.Health < StatMin || p.Health > StatMax {
				return fmt.Errorf("person %q health %d out of range [%d,%d]", id, p.Health, StatMin, StatMax)
			}
			if p.Energy < StatMin || p.Energy > StatMax {
				return fmt.Errorf("person %q energy %d out of range [%d,%d]", id, p.Energy, StatMin, StatMax)
			}
		}
	}

	if _, ok := seen[w.StartingLocation]; !ok {
		return fmt.Errorf("starting_location %q is not an entity in the world", w.StartingLocation)
	}
	if _, ok := w.FindPlace(w.StartingLocation); !ok {
		return fmt.Errorf("starting_location %q is not a place", w.StartingLocation)
	}
	return nil
}

// CheckReferences verifies the cross-entity links: person locations are
// places, item locations are places or persons, connection targets and
// requirement items exist, and inventory entries are items held by their
// owner. Used by the world validator CLI; the engine only requires
// Validate to pass.
func (w *World) CheckReferences() []error {
	var errs []error
	idx := w.Index()

	for _, e := range w.Entities {
		switch v := e.(type) {
		case *Person:
			if _, ok := idx[v.Location].(*Place); !ok {
				errs = append(errs, fmt.Errorf("person %q location %q is not a place", v.ID, v.Location))
			}
			for _, itemID := range v.Inventory {
				if _, ok := idx[itemID].(*Item); !ok {
					errs = append(errs, fmt.Errorf("person %q inventory entry %q is not an item", v.ID, itemID))
				}
			}
		case *Place:
			for target, req := range v.Connections {
				if _, ok := idx[target].(*Place); !ok {
					errs = append(errs, fmt.Errorf("place %q connection target %q is not a place", v.ID, target))
				}
				if req != nil && req.RequiresItem != "" {
					if _, ok := idx[req.RequiresItem].(*Item); !ok {
						errs = append(errs, fmt.Errorf("place %q connection to %q requires unknown item %q", v.ID, target, req.RequiresItem))
					}
				}
			}
		case *Item:
			switch idx[v.Location].(type) {
			case *Place, *Person:
			default:
				errs = append(errs, fmt.Errorf("item %q location %q is not a place or person", v.ID, v.Location))
			}
		}
	}
	return errs
}
