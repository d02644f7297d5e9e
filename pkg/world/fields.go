package world

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldPathError reports a field path that does not resolve on an entity,
// or a value that cannot be assigned to the resolved field.
type FieldPathError struct {
	EntityID string
	Path     string
	Reason   string
}

func (e *FieldPathError) Error() string {
	return fmt.Sprintf("cannot set field %q on entity %q: %s", e.Path, e.EntityID, e.Reason)
}

// SetEntityField assigns value to the field addressed by a dot-separated
// path on the entity. Intermediate segments must resolve to nested
// containers; a missing segment fails with a FieldPathError.
func SetEntityField(e Entity, path string, value any) error {
	if path == "" {
		return &FieldPathError{EntityID: e.EntityID(), Path: path, Reason: "empty field path"}
	}
	segments := strings.Split(path, ".")

	switch v := e.(type) {
	case *Person:
		return setPersonField(v, path, segments, value)
	case *Place:
		return setPlaceField(v, path, segments, value)
	case *Item:
		return setItemField(v, path, segments, value)
	default:
		return &FieldPathError{EntityID: e.EntityID(), Path: path, Reason: "unknown entity kind"}
	}
}

func setPersonField(p *Person, path string, segments []string, value any) error {
	fail := func(reason string) error {
		return &FieldPathError{EntityID: p.ID, Path: path, Reason: reason}
	}
	if len(segments) != 1 {
		return fail(fmt.Sprintf("no nested container %q on a person", segments[0]))
	}

	switch segments[0] {
	case "name":
		s, err := asString(value)
		if err != nil {
			return fail(err.Error())
		}
		p.Name = s
	case "description":
		s, err := asString(value)
		if err != nil {
			return fail(err.Error())
		}
		p.Description = s
	case "location":
		s, err := asString(value)
		if err != nil {
			return fail(err.Error())
		}
		p.Location = s
	case "health":
		n, err := asInt(value)
		if err != nil {
			return fail(err.Error())
		}
		p.Health = n
	case "energy":
		n, err := asInt(value)
		if err != nil {
			return fail(err.Error())
		}
		p.Energy = n
	case "inventory":
		items, err := asStringSlice(value)
		if err != nil {
			return fail(err.Error())
		}
		p.Inventory = items
	default:
		return fail("no such field on a person")
	}
	return nil
}

func setPlaceField(p *Place, path string, segments []string, value any) error {
	fail := func(reason string) error {
		return &FieldPathError{EntityID: p.ID, Path: path, Reason: reason}
	}

	switch segments[0] {
	case "name":
		if len(segments) != 1 {
			return fail("name is not a container")
		}
		s, err := asString(value)
		if err != nil {
			return fail(err.Error())
		}
		p.Name = s
	case "description":
		if len(segments) != 1 {
			return fail("description is not a container")
		}
		s, err := asString(value)
		if err != nil {
			return fail(err.Error())
		}
		p.Description = s
	case "connections":
		switch len(segments) {
		case 1:
			conns, err := asConnections(value)
			if err != nil {
				return fail(err.Error())
			}
			p.Connections = conns
		case 2:
			req, err := asRequirement(value)
			if err != nil {
				return fail(err.Error())
			}
			if p.Connections == nil {
				p.Connections = make(map[string]*Requirement)
			}
			p.Connections[segments[1]] = req
		default:
			return fail(fmt.Sprintf("no nested container %q inside a connection", segments[2]))
		}
	default:
		return fail("no such field on a place")
	}
	return nil
}

func setItemField(i *Item, path string, segments []string, value any) error {
	fail := func(reason string) error {
		return &FieldPathError{EntityID: i.ID, Path: path, Reason: reason}
	}

	switch segments[0] {
	case "name":
		if len(segments) != 1 {
			return fail("name is not a container")
		}
		s, err := asString(value)
		if err != nil {
			return fail(err.Error())
		}
		i.Name = s
	case "description":
		if len(segments) != 1 {
			return fail("description is not a container")
		}
		s, err := asString(value)
		if err != nil {
			return fail(err.Error())
		}
		i.Description = s
	case "location":
		if len(segments) != 1 {
			return fail("location is not a container")
		}
		s, err := asString(value)
		if err != nil {
			return fail(err.Error())
		}
		i.Location = s
	case "usable":
		if len(segments) != 1 {
			return fail("usable is not a container")
		}
		b, err := asBool(value)
		if err != nil {
			return fail(err.Error())
		}
		i.Usable = b
	case "consumable":
		if len(segments) != 1 {
			return fail("consumable is not a container")
		}
		b, err := asBool(value)
		if err != nil {
			return fail(err.Error())
		}
		i.Consumable = b
	case "effects":
		switch len(segments) {
		case 1:
			eff, err := asEffects(value)
			if err != nil {
				return fail(err.Error())
			}
			i.Effects = eff
		case 2:
			if i.Effects == nil {
				return fail("intermediate segment \"effects\" is missing")
			}
			n, err := asInt(value)
			if err != nil {
				return fail(err.Error())
			}
			switch segments[1] {
			case "health":
				i.Effects.Health = n
			case "energy":
				i.Effects.Energy = n
			default:
				return fail("no such field inside effects")
			}
		default:
			return fail(fmt.Sprintf("no nested container %q inside effects", segments[1]))
		}
	default:
		return fail("no such field on an item")
	}
	return nil
}

// Coercion helpers. Change values may arrive as native Go values from the
// engine or as decoded JSON (float64 numbers, []any slices) after a
// session round-trips through storage.

func asString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func asBool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", v)
	}
	return b, nil
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", n.String())
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func asStringSlice(v any) ([]string, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case []string:
		out := make([]string, len(s))
		copy(out, s)
		return out, nil
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string element, got %T", item)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string list, got %T", v)
	}
}

func asRequirement(v any) (*Requirement, error) {
	switch r := v.(type) {
	case nil:
		return nil, nil
	case *Requirement:
		return r.Clone(), nil
	case map[string]any:
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("invalid requirement: %w", err)
		}
		var req Requirement
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("invalid requirement: %w", err)
		}
		return &req, nil
	default:
		return nil, fmt.Errorf("expected requirement, got %T", v)
	}
}

func asConnections(v any) (map[string]*Requirement, error) {
	switch c := v.(type) {
	case nil:
		return nil, nil
	case map[string]*Requirement:
		out := make(map[string]*Requirement, len(c))
		for target, req := range c {
			out[target] = req.Clone()
		}
		return out, nil
	case map[string]any:
		out := make(map[string]*Requirement, len(c))
		for target, raw := range c {
			req, err := asRequirement(raw)
			if err != nil {
				return nil, fmt.Errorf("connection %q: %w", target, err)
			}
			out[target] = req
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected connection map, got %T", v)
	}
}

func asEffects(v any) (*Effects, error) {
	switch e := v.(type) {
	case nil:
		return nil, nil
	case *Effects:
		c := *e
		return &c, nil
	case map[string]any:
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("invalid effects: %w", err)
		}
		var eff Effects
		if err := json.Unmarshal(data, &eff); err != nil {
			return nil, fmt.Errorf("invalid effects: %w", err)
		}
		return &eff, nil
	default:
		return nil, fmt.Errorf("expected effects, got %T", v)
	}
}
