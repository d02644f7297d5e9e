package world

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the three entity variants in a world.
type Kind string

const (
	KindPerson Kind = "person"
	KindPlace  Kind = "place"
	KindItem   Kind = "item"
)

// Health and energy are always kept inside this range.
const (
	StatMin = 0
	StatMax = 100
)

// Entity is one node in the world graph: a person, a place or an item.
// Concrete types are *Person, *Place and *Item.
type Entity interface {
	EntityID() string
	EntityName() string
	EntityDescription() string
	EntityKind() Kind

	// Clone returns a deep copy sharing no mutable state with the receiver.
	Clone() Entity
}

// Requirement gates a connection between two places.
type Requirement struct {
	RequiresItem   string `json:"requires_item,omitempty"`
	RequiresHealth *int   `json:"requires_health,omitempty"`
}

// Clone returns a copy of the requirement.
func (r *Requirement) Clone() *Requirement {
	if r == nil {
		return nil
	}
	c := *r
	if r.RequiresHealth != nil {
		h := *r.RequiresHealth
		c.RequiresHealth = &h
	}
	return &c
}

// Effects are the stat deltas applied when a usable item is used.
// Values may be negative.
type Effects struct {
	Health int `json:"health,omitempty"`
	Energy int `json:"energy,omitempty"`
}

// Person is a character in the world. Location is always a place id.
type Person struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location"`
	Health      int      `json:"health"`
	Energy      int      `json:"energy"`
	Inventory   []string `json:"inventory,omitempty"`
}

func (p *Person) EntityID() string          { return p.ID }
func (p *Person) EntityName() string        { return p.Name }
func (p *Person) EntityDescription() string { return p.Description }
func (p *Person) EntityKind() Kind          { return KindPerson }

// Clone returns a deep copy of the person.
func (p *Person) Clone() Entity {
	c := *p
	if p.Inventory != nil {
		c.Inventory = make([]string, len(p.Inventory))
		copy(c.Inventory, p.Inventory)
	}
	return &c
}

// HasItem reports whether the person carries the given item id.
func (p *Person) HasItem(itemID string) bool {
	for _, id := range p.Inventory {
		if id == itemID {
			return true
		}
	}
	return false
}

// Place is a location in the world. Connections maps target place ids to
// an optional requirement; a nil requirement means the connection is open.
type Place struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	Connections map[string]*Requirement `json:"connections,omitempty"`
}

func (p *Place) EntityID() string          { return p.ID }
func (p *Place) EntityName() string        { return p.Name }
func (p *Place) EntityDescription() string { return p.Description }
func (p *Place) EntityKind() Kind          { return KindPlace }

// Clone returns a deep copy of the place.
func (p *Place) Clone() Entity {
	c := *p
	if p.Connections != nil {
		c.Connections = make(map[string]*Requirement, len(p.Connections))
		for target, req := range p.Connections {
			c.Connections[target] = req.Clone()
		}
	}
	return &c
}

// Item is an object in the world. Location is polymorphic: a place id
// means the item is lying there, a person id means that person holds it.
type Item struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location"`
	Usable      bool     `json:"usable"`
	Consumable  bool     `json:"consumable"`
	Effects     *Effects `json:"effects,omitempty"`
}

func (i *Item) EntityID() string          { return i.ID }
func (i *Item) EntityName() string        { return i.Name }
func (i *Item) EntityDescription() string { return i.Description }
func (i *Item) EntityKind() Kind          { return KindItem }

// Clone returns a deep copy of the item.
func (i *Item) Clone() Entity {
	c := *i
	if i.Effects != nil {
		e := *i.Effects
		c.Effects = &e
	}
	return &c
}

// MarshalJSON adds the "type" discriminator to the person's JSON form.
func (p *Person) MarshalJSON() ([]byte, error) {
	type Alias Person
	return json.Marshal(&struct {
		Type Kind `json:"type"`
		*Alias
	}{
		Type:  KindPerson,
		Alias: (*Alias)(p),
	})
}

// MarshalJSON adds the "type" discriminator to the place's JSON form.
func (p *Place) MarshalJSON() ([]byte, error) {
	type Alias Place
	return json.Marshal(&struct {
		Type Kind `json:"type"`
		*Alias
	}{
		Type:  KindPlace,
		Alias: (*Alias)(p),
	})
}

// MarshalJSON adds the "type" discriminator to the item's JSON form.
func (i *Item) MarshalJSON() ([]byte, error) {
	type Alias Item
	return json.Marshal(&struct {
		Type Kind `json:"type"`
		*Alias
	}{
		Type:  KindItem,
		Alias: (*Alias)(i),
	})
}

// UnmarshalEntity decodes one entity from its JSON form, dispatching on
// the "type" discriminator.
func UnmarshalEntity(data []byte) (Entity, error) {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to read entity type: %w", err)
	}

	switch probe.Type {
	case KindPerson:
		var p Person
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal person: %w", err)
		}
		return &p, nil
	case KindPlace:
		var p Place
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal place: %w", err)
		}
		return &p, nil
	case KindItem:
		var i Item
		if err := json.Unmarshal(data, &i); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item: %w", err)
		}
		return &i, nil
	case "":
		return nil, fmt.Errorf("entity is missing the type field")
	default:
		return nil, fmt.Errorf("unknown entity type %q", probe.Type)
	}
}

// ClampStat bounds a health or energy value to [StatMin, StatMax].
func ClampStat(v int) int {
	if v < StatMin {
		return StatMin
	}
	if v > StatMax {
		return StatMax
	}
	return v
}
