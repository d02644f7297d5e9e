package world

import (
	"errors"
	"strings"
	"testing"
)

func TestSetEntityField(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		value any
		check func(t *testing.T, w *World)
	}{
		{
			name:  "person location",
			path:  "location",
			value: "forest",
			check: func(t *testing.T, w *World) {
				p, _ := w.FindPerson("aria")
				if p.Location != "forest" {
					t.Errorf("Expected location forest, got %q", p.Location)
				}
			},
		},
		{
			name: "person health from decoded JSON number",
			path: "health",
			// Numbers arrive as float64 after a session round-trips
			// through storage.
			value: float64(45),
			check: func(t *testing.T, w *World) {
				p, _ := w.FindPerson("aria")
				if p.Health != 45 {
					t.Errorf("Expected health 45, got %d", p.Health)
				}
			},
		},
		{
			name:  "person inventory from decoded JSON slice",
			path:  "inventory",
			value: []any{"lute", "apple"},
			check: func(t *testing.T, w *World) {
				p, _ := w.FindPerson("aria")
				if len(p.Inventory) != 2 || p.Inventory[1] != "apple" {
					t.Errorf("Expected [lute apple], got %v", p.Inventory)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testWorld()
			person, _ := w.FindPerson("aria")
			if err := SetEntityField(person, tt.path, tt.value); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			tt.check(t, w)
		})
	}
}

func TestSetEntityField_NestedContainers(t *testing.T) {
	w := testWorld()

	place, _ := w.FindPlace("tavern")
	err := SetEntityField(place, "connections.cellar", map[string]any{"requires_item": "iron_key"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	req := place.Connections["cellar"]
	if req == nil || req.RequiresItem != "iron_key" {
		t.Errorf("Expected iron_key requirement on tavern->cellar, got %+v", req)
	}

	item, _ := w.FindItem("apple")
	if err := SetEntityField(item, "effects.health", 25); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if item.Effects.Health != 25 {
		t.Errorf("Expected effects.health 25, got %d", item.Effects.Health)
	}
	// The untouched sibling field keeps its value.
	if item.Effects.Energy != 10 {
		t.Errorf("Expected effects.energy 10, got %d", item.Effects.Energy)
	}
}

func TestSetEntityField_Failures(t *testing.T) {
	tests := []struct {
		name        string
		entityID    string
		path        string
		value       any
		expectError string
	}{
		{
			name:        "empty path",
			entityID:    "aria",
			path:        "",
			value:       "x",
			expectError: "empty field path",
		},
		{
			name:        "unknown person field",
			entityID:    "aria",
			path:        "mana",
			value:       10,
			expectError: "no such field",
		},
		{
			name:        "person fields have no containers",
			entityID:    "aria",
			path:        "inventory.0",
			value:       "lute",
			expectError: "no nested container",
		},
		{
			name:        "wrong value type",
			entityID:    "aria",
			path:        "health",
			value:       "full",
			expectError: "expected number",
		},
		{
			name:        "missing intermediate segment",
			entityID:    "lute",
			path:        "effects.health",
			value:       5,
			expectError: `intermediate segment "effects" is missing`,
		},
		{
			name:        "path too deep",
			entityID:    "tavern",
			path:        "connections.forest.requires_item",
			value:       "iron_key",
			expectError: "no nested container",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testWorld()
			entity, ok := w.FindEntity(tt.entityID)
			if !ok {
				t.Fatalf("Fixture entity %q missing", tt.entityID)
			}

			err := SetEntityField(entity, tt.path, tt.value)
			if err == nil {
				t.Fatalf("Expected error containing %q, got none", tt.expectError)
			}
			if !strings.Contains(err.Error(), tt.expectError) {
				t.Errorf("Expected error containing %q, got %q", tt.expectError, err.Error())
			}

			var pathErr *FieldPathError
			if !errors.As(err, &pathErr) {
				t.Fatalf("Expected *FieldPathError, got %T", err)
			}
			if pathErr.EntityID != tt.entityID || pathErr.Path != tt.path {
				t.Errorf("Error names entity %q path %q, want %q %q",
					pathErr.EntityID, pathErr.Path, tt.entityID, tt.path)
			}
		})
	}
}
