package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cfraser/adventure-engine/pkg/world"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <world.json> [world.json ...]\n", os.Args[0])
		os.Exit(1)
	}

	exitCode := 0
	for _, filename := range os.Args[1:] {
		validator := &WorldValidator{}
		if err := validator.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			exitCode = 1
			continue
		}
		fmt.Printf("%s is valid!\n", filepath.Base(filename))
	}
	os.Exit(exitCode)
}

type WorldValidator struct {
	errors []string
}

func (v *WorldValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	// Validate filename format
	baseName := filepath.Base(filename)
	if !strings.HasSuffix(baseName, ".json") {
		return fmt.Errorf("world file must have .json extension: %s", baseName)
	}

	nameWithoutExt := strings.TrimSuffix(baseName, ".json")
	if !isValidWorldFilename(nameWithoutExt) {
		return fmt.Errorf("world filename '%s' must be lowercase snake_case (e.g., pirate_cove.json, not pirate-cove.json or PirateCove.json)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil

	if !json.Valid(data) {
		return fmt.Errorf("file %s contains invalid JSON", filename)
	}

	v.checkUnknownFields(data)

	var w world.World
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("file %s failed unmarshaling: %w", filename, err)
	}

	if err := w.Validate(); err != nil {
		v.addError(err.Error())
	}
	for _, refErr := range w.CheckReferences() {
		v.addError(refErr.Error())
	}
	v.validateWorld(&w)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}

	return nil
}

var worldFields = map[string]bool{
	"world_name":        true,
	"world_description": true,
	"starting_location": true,
	"entities":          true,
}

var entityFields = map[world.Kind]map[string]bool{
	world.KindPerson: {
		"type": true, "id": true, "name": true, "description": true,
		"location": true, "health": true, "energy": true, "inventory": true,
	},
	world.KindPlace: {
		"type": true, "id": true, "name": true, "description": true,
		"connections": true,
	},
	world.KindItem: {
		"type": true, "id": true, "name": true, "description": true,
		"location": true, "usable": true, "consumable": true, "effects": true,
	},
}

// checkUnknownFields flags fields the engine would silently drop.
// World has a custom unmarshaler, so DisallowUnknownFields cannot reach
// the entity objects.
func (v *WorldValidator) checkUnknownFields(data []byte) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return
	}
	for key := range raw {
		if !worldFields[key] {
			v.addError(fmt.Sprintf("unknown world field '%s'", key))
		}
	}

	var entities []map[string]json.RawMessage
	if err := json.Unmarshal(raw["entities"], &entities); err != nil {
		return
	}
	for i, fields := range entities {
		var kind world.Kind
		_ = json.Unmarshal(fields["type"], &kind)
		allowed, ok := entityFields[kind]
		if !ok {
			// UnmarshalEntity reports bad discriminators on its own
			continue
		}
		for key := range fields {
			if !allowed[key] {
				v.addError(fmt.Sprintf("entity %d (%s) has unknown field '%s'", i, kind, key))
			}
		}
	}
}

func (v *WorldValidator) validateWorld(w *world.World) {
	v.validateIDFormat("starting_location", w.StartingLocation)

	for _, e := range w.Entities {
		v.validateIDFormat(string(e.EntityKind())+" ID", e.EntityID())

		switch entity := e.(type) {
		case *world.Person:
			v.validateIDFormat("person location", entity.Location)
			for _, itemID := range entity.Inventory {
				v.validateIDFormat("inventory entry", itemID)
			}
		case *world.Place:
			for target, req := range entity.Connections {
				v.validateIDFormat("connection target", target)
				if req != nil && req.RequiresItem != "" {
					v.validateIDFormat("required item", req.RequiresItem)
				}
			}
		case *world.Item:
			v.validateIDFormat("item location", entity.Location)
		}
	}
}

func (v *WorldValidator) validateIDFormat(fieldName, id string) {
	if id == "" {
		return
	}

	if !isValidID(id) {
		v.addError(fmt.Sprintf("%s '%s' should be lowercase snake_case", fieldName, id))
	}
}

func (v *WorldValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var (
	validIDRegex       = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	validFilenameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}

func isValidWorldFilename(name string) bool {
	// Allow 'x.' prefix for experimental worlds
	name = strings.TrimPrefix(name, "x.")
	return validFilenameRegex.MatchString(name)
}
