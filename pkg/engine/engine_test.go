package engine

import (
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/cfraser/adventure-engine/pkg/world"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func intPtr(v int) *int { return &v }

// engineTestWorld has enough structure to exercise every action type:
// an open connection, a locked connection, a health-gated connection,
// co-located people and items, and a usable consumable in the player's
// inventory.
func engineTestWorld() *world.World {
	return &world.World{
		Name:             "Riverside",
		Description:      "A village on the bank of a slow river.",
		StartingLocation: "tavern",
		Entities: []world.Entity{
			&world.Place{
				ID:          "tavern",
				Name:        "The Tavern",
				Description: "Low beams and the smell of ale.",
				Connections: map[string]*world.Requirement{
					"forest":      nil,
					"locked_room": {RequiresItem: "key"},
					"cellar":      {RequiresHealth: intPtr(50)},
				},
			},
			&world.Place{
				ID:          "forest",
				Name:        "The Forest",
				Description: "Birch and shadow.",
				Connections: map[string]*world.Requirement{"tavern": nil},
			},
			&world.Place{
				ID:          "locked_room",
				Name:        "Locked Room",
				Description: "A door with a heavy iron lock.",
				Connections: map[string]*world.Requirement{"tavern": nil},
			},
			&world.Place{
				ID:          "cellar",
				Name:        "The Cellar",
				Description: "Cold stone and barrels.",
				Connections: map[string]*world.Requirement{"tavern": nil},
			},
			&world.Person{
				ID:          "hero",
				Name:        "Aria",
				Description: "A traveling musician.",
				Location:    "tavern",
				Health:      90,
				Energy:      100,
				Inventory:   []string{"potion", "map_scroll"},
			},
			&world.Person{
				ID:          "bram",
				Name:        "Bram",
				Description: "The tavern keeper.",
				Location:    "tavern",
				Health:      100,
				Energy:      80,
			},
			&world.Person{
				ID:          "wanderer",
				Name:        "The Wanderer",
				Description: "A hooded figure.",
				Location:    "forest",
				Health:      70,
				Energy:      60,
			},
			&world.Item{
				ID:          "lute",
				Name:        "Lute",
				Description: "A worn lute with fresh strings.",
				Location:    "tavern",
			},
			&world.Item{
				ID:          "mug",
				Name:        "Clay Mug",
				Description: "Chipped but serviceable.",
				Location:    "tavern",
			},
			&world.Item{
				ID:          "potion",
				Name:        "Healing Potion",
				Description: "Red liquid in a stoppered vial.",
				Location:    "hero",
				Usable:      true,
				Consumable:  true,
				Effects:     &world.Effects{Health: 30},
			},
			&world.Item{
				ID:          "map_scroll",
				Name:        "Map Scroll",
				Description: "A hand-drawn map of the valley.",
				Location:    "hero",
			},
		},
	}
}

func newTestEngine(t *testing.T, w *world.World) *Engine {
	t.Helper()
	e, err := New(w, quietLogger)
	if err != nil {
		t.Fatalf("unexpected error building engine: %v", err)
	}
	return e
}

func TestNew_RejectsInvalidWorld(t *testing.T) {
	w := engineTestWorld()
	w.Entities = append(w.Entities, &world.Item{ID: "lute", Name: "Duplicate"})
	if _, err := New(w, quietLogger); err == nil {
		t.Error("expected error for duplicate entity ids")
	}
}

func TestNew_DoesNotAliasSourceWorld(t *testing.T) {
	w := engineTestWorld()
	e := newTestEngine(t, w)

	hero, _ := w.FindPerson("hero")
	hero.Energy = 1

	if got := e.PlayerState("hero"); got.Energy != 100 {
		t.Errorf("engine world aliases constructor argument: energy %d", got.Energy)
	}
}

func TestGenerateValidActions_FullOrder(t *testing.T) {
	e := newTestEngine(t, engineTestWorld())
	actions := e.GenerateValidActions("hero")

	type av struct {
		Type   ActionType
		Target string
	}
	want := []av{
		{ActionRest, ""},
		{ActionWait, ""},
		{ActionExplore, ""},
		// Connections sorted by target id; locked_room needs a key the
		// player does not carry.
		{ActionMove, "cellar"},
		{ActionMove, "forest"},
		{ActionTalk, "bram"},
		{ActionTakeItem, "lute"},
		{ActionTakeItem, "mug"},
		{ActionDropItem, "potion"},
		{ActionDropItem, "map_scroll"},
		{ActionUseItem, "potion"},
		{ActionExamine, "bram"},
		{ActionExamine, "lute"},
		{ActionExamine, "mug"},
		{ActionExamine, "potion"},
		{ActionExamine, "map_scroll"},
		{ActionExamine, "tavern"},
	}

	if len(actions) != len(want) {
		t.Fatalf("expected %d actions, got %d: %+v", len(want), len(actions), actions)
	}
	for i, w := range want {
		if actions[i].Type != w.Type || actions[i].TargetID != w.Target {
			t.Errorf("action %d: expected %s %q, got %s %q",
				i, w.Type, w.Target, actions[i].Type, actions[i].TargetID)
		}
		if actions[i].EnergyCost != EnergyCost(actions[i].Type) {
			t.Errorf("action %d: expected cost %d, got %d",
				i, EnergyCost(actions[i].Type), actions[i].EnergyCost)
		}
	}
}

func TestGenerateValidActions_EnergyGates(t *testing.T) {
	w := engineTestWorld()
	hero, _ := w.FindPerson("hero")
	hero.Energy = 3
	e := newTestEngine(t, w)

	actions := e.GenerateValidActions("hero")
	for _, a := range actions {
		switch a.Type {
		case ActionExplore, ActionMove, ActionTalk:
			t.Errorf("expected no %s at energy 3", a.Type)
		}
	}
	if !hasAction(actions, ActionExamine, "tavern") {
		t.Error("expected EXAMINE at energy 3")
	}

	hero.Energy = 1
	e2 := newTestEngine(t, w)
	for _, a := range e2.GenerateValidActions("hero") {
		if a.Type == ActionExamine {
			t.Error("expected no EXAMINE at energy 1")
		}
	}
}

func TestGenerateValidActions_InvalidPlayer(t *testing.T) {
	e := newTestEngine(t, engineTestWorld())

	cases := []struct {
		name     string
		playerID string
	}{
		{"unknown id", "nobody"},
		{"not a person", "tavern"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := e.GenerateValidActions(tc.playerID); len(got) != 0 {
				t.Errorf("expected no actions, got %d", len(got))
			}
		})
	}
}

func TestGenerateValidActions_BadPlayerLocation(t *testing.T) {
	w := engineTestWorld()
	hero, _ := w.FindPerson("hero")
	hero.Location = "hero" // not a place
	e, err := New(w, quietLogger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := e.GenerateValidActions("hero"); len(got) != 0 {
		t.Errorf("expected no actions for person outside any place, got %d", len(got))
	}
}

func TestGenerateValidActions_Idempotent(t *testing.T) {
	e := newTestEngine(t, engineTestWorld())
	first := e.GenerateValidActions("hero")
	second := e.GenerateValidActions("hero")
	if !reflect.DeepEqual(first, second) {
		t.Error("expected identical action lists without an intervening execute")
	}
}

// Scenario: MOVE across an open connection succeeds, changes the
// location and spends the cost.
func TestExecuteAction_Move(t *testing.T) {
	e := newTestEngine(t, engineTestWorld())
	pre := e.World()
	preCopy := pre.Clone()

	result, err := e.ExecuteAction("hero", Action{Type: ActionMove, TargetID: "forest", EnergyCost: CostMove}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}

	ps := e.PlayerState("hero")
	if ps.CurrentLocation != "forest" {
		t.Errorf("expected location forest, got %q", ps.CurrentLocation)
	}
	if ps.Energy != 95 {
		t.Errorf("expected energy 95, got %d", ps.Energy)
	}
	if len(result.Changes) != 2 {
		t.Errorf("expected 2 change descriptions, got %v", result.Changes)
	}

	// The world object held before the call is never mutated; the engine
	// replaces its working world instead.
	if !reflect.DeepEqual(pre, preCopy) {
		t.Error("pre-call world object was mutated")
	}
	if e.World() == pre {
		t.Error("expected the engine to hold a new world after commit")
	}
}

// Scenario: an action whose cost exceeds the player's energy is
// rejected with the exact energy message and no state change.
func TestExecuteAction_InsufficientEnergy(t *testing.T) {
	w := engineTestWorld()
	hero, _ := w.FindPerson("hero")
	hero.Energy = 3
	e := newTestEngine(t, w)
	before := e.World().Clone()

	result, err := e.ExecuteAction("hero", Action{Type: ActionExplore, EnergyCost: CostExplore}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Error != "Not enough energy. Need 4, have 3." {
		t.Errorf("unexpected error message %q", result.Error)
	}
	if len(result.Changes) != 0 {
		t.Errorf("expected no changes, got %v", result.Changes)
	}
	if got := e.PlayerState("hero").Energy; got != 3 {
		t.Errorf("expected energy unchanged at 3, got %d", got)
	}
	if !reflect.DeepEqual(result.World, before) {
		t.Error("expected returned world to deep-equal the pre-call world")
	}
}

// Scenario: the cost carried in the submitted action is ignored; a
// forged zero cost neither skips the deduction nor slips past the
// energy check.
func TestExecuteAction_IgnoresSubmittedCost(t *testing.T) {
	e := newTestEngine(t, engineTestWorld())

	result, err := e.ExecuteAction("hero", Action{Type: ActionMove, TargetID: "forest", EnergyCost: 0}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if got := e.PlayerState("hero").Energy; got != 95 {
		t.Errorf("expected energy 95 after move, got %d", got)
	}

	w := engineTestWorld()
	hero, _ := w.FindPerson("hero")
	hero.Energy = 3
	e2 := newTestEngine(t, w)

	result, err = e2.ExecuteAction("hero", Action{Type: ActionExplore, EnergyCost: 0}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure at energy 3 regardless of the submitted cost")
	}
	if result.Error != "Not enough energy. Need 4, have 3." {
		t.Errorf("unexpected error message %q", result.Error)
	}
}

// Scenario: using a consumable healing item clamps health at 100 and
// removes the item from the inventory and from the world.
func TestExecuteAction_UseConsumable(t *testing.T) {
	e := newTestEngine(t, engineTestWorld())

	result, err := e.ExecuteAction("hero", Action{Type: ActionUseItem, TargetID: "potion", EnergyCost: CostUseItem}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}

	ps := e.PlayerState("hero")
	if ps.Health != 100 {
		t.Errorf("expected health clamped to 100, got %d", ps.Health)
	}
	for _, id := range ps.Inventory {
		if id == "potion" {
			t.Error("expected potion removed from inventory")
		}
	}
	if _, ok := e.Entity("potion"); ok {
		t.Error("expected potion removed from the world")
	}
}

// Scenario: a connection gated on an item the player lacks is not
// offered, and forcing it fails with a not-connected error.
func TestExecuteAction_LockedConnection(t *testing.T) {
	e := newTestEngine(t, engineTestWorld())

	if hasAction(e.GenerateValidActions("hero"), ActionMove, "locked_room") {
		t.Error("expected MOVE locked_room to be absent without the key")
	}

	before := e.World().Clone()
	result, err := e.ExecuteAction("hero", Action{Type: ActionMove, TargetID: "locked_room", EnergyCost: CostMove}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Error, "not connected") {
		t.Errorf("expected a not-connected error, got %q", result.Error)
	}
	if !reflect.DeepEqual(e.World(), before) {
		t.Error("expected engine world unchanged after failed move")
	}
}

func TestExecuteAction_HealthGatedConnection(t *testing.T) {
	w := engineTestWorld()
	hero, _ := w.FindPerson("hero")
	hero.Health = 40 // below the cellar's requirement of 50
	e := newTestEngine(t, w)

	if hasAction(e.GenerateValidActions("hero"), ActionMove, "cellar") {
		t.Error("expected MOVE cellar to be absent below required health")
	}

	result, err := e.ExecuteAction("hero", Action{Type: ActionMove, TargetID: "cellar", EnergyCost: CostMove}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success || !strings.Contains(result.Error, "not connected") {
		t.Errorf("expected not-connected failure, got success=%v error=%q", result.Success, result.Error)
	}
}

func TestExecuteAction_InvalidPlayer(t *testing.T) {
	e := newTestEngine(t, engineTestWorld())

	for _, playerID := range []string{"nobody", "tavern", "lute"} {
		result, err := e.ExecuteAction(playerID, Action{Type: ActionRest}, 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Success {
			t.Errorf("expected failure for player %q", playerID)
		}
		if result.Error != "Invalid player" {
			t.Errorf("expected Invalid player, got %q", result.Error)
		}
	}
}

func TestExecuteAction_Rest(t *testing.T) {
	cases := []struct {
		name   string
		energy int
		want   int
	}{
		{"recovers", 20, 90},
		{"caps at 100", 60, 100},
		{"already full", 100, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := engineTestWorld()
			hero, _ := w.FindPerson("hero")
			hero.Energy = tc.energy
			e := newTestEngine(t, w)

			result, err := e.ExecuteAction("hero", Action{Type: ActionRest}, 1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.Success {
				t.Fatalf("expected success, got %q", result.Error)
			}
			if got := e.PlayerState("hero").Energy; got != tc.want {
				t.Errorf("expected energy %d, got %d", tc.want, got)
			}
		})
	}
}

func TestExecuteAction_Wait(t *testing.T) {
	e := newTestEngine(t, engineTestWorld())
	pre := e.World()

	result, err := e.ExecuteAction("hero", Action{Type: ActionWait}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if len(result.Changes) != 0 {
		t.Errorf("expected no changes for WAIT, got %v", result.Changes)
	}
	if !reflect.DeepEqual(result.World, pre) {
		t.Error("expected WAIT to leave the world deep-equal")
	}
	// The committed world is a new object even when nothing changed.
	if e.World() == pre {
		t.Error("expected a fresh world object after commit")
	}
}

func TestExecuteAction_Explore(t *testing.T) {
	e := newTestEngine(t, engineTestWorld())

	result, err := e.ExecuteAction("hero", Action{Type: ActionExplore, EnergyCost: CostExplore}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if got := e.PlayerState("hero").Energy; got != 96 {
		t.Errorf("expected energy 96, got %d", got)
	}
	if len(result.Changes) != 1 {
		t.Errorf("expected only the energy cost change, got %v", result.Changes)
	}
}

func TestExecuteAction_TakeAndDrop(t *testing.T) {
	e := newTestEngine(t, engineTestWorld())

	result, err := e.ExecuteAction("hero", Action{Type: ActionTakeItem, TargetID: "lute"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected take to succeed, got %q", result.Error)
	}
	lute, ok := e.Entity("lute")
	if !ok {
		t.Fatal("expected lute in world")
	}
	if got := lute.(*world.Item).Location; got != "hero" {
		t.Errorf("expected lute held by hero, got %q", got)
	}
	ps := e.PlayerState("hero")
	if !containsString(ps.Inventory, "lute") {
		t.Errorf("expected lute in inventory, got %v", ps.Inventory)
	}

	// Move, then drop it at the new location.
	if _, err := e.ExecuteAction("hero", Action{Type: ActionMove, TargetID: "forest", EnergyCost: CostMove}, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err = e.ExecuteAction("hero", Action{Type: ActionDropItem, TargetID: "lute"}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected drop to succeed, got %q", result.Error)
	}
	lute, _ = e.Entity("lute")
	if got := lute.(*world.Item).Location; got != "forest" {
		t.Errorf("expected lute dropped at forest, got %q", got)
	}
	if containsString(e.PlayerState("hero").Inventory, "lute") {
		t.Error("expected lute out of inventory after drop")
	}
}

func TestExecuteAction_Talk(t *testing.T) {
	e := newTestEngine(t, engineTestWorld())
	before := e.World().Clone()

	result, err := e.ExecuteAction("hero", Action{Type: ActionTalk, TargetID: "bram", EnergyCost: CostTalk}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if got := e.PlayerState("hero").Energy; got != 97 {
		t.Errorf("expected energy 97, got %d", got)
	}
	if len(result.Changes) != 2 {
		t.Fatalf("expected energy + conversation changes, got %v", result.Changes)
	}
	if !strings.Contains(result.Changes[1], "conversation") {
		t.Errorf("expected a conversation description, got %q", result.Changes[1])
	}

	// Talking writes no durable fact on the target.
	bramBefore, _ := before.FindPerson("bram")
	bramAfter, _ := e.World().FindPerson("bram")
	if !reflect.DeepEqual(bramBefore, bramAfter) {
		t.Error("expected talk target unchanged")
	}
}

func TestExecuteAction_TalkRejectsAbsentTarget(t *testing.T) {
	e := newTestEngine(t, engineTestWorld())

	// The wanderer is in the forest, not co-located with the player.
	result, err := e.ExecuteAction("hero", Action{Type: ActionTalk, TargetID: "wanderer", EnergyCost: CostTalk}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure talking to someone elsewhere")
	}
}

func TestExecuteAction_Examine(t *testing.T) {
	e := newTestEngine(t, engineTestWorld())

	result, err := e.ExecuteAction("hero", Action{Type: ActionExamine, TargetID: "lute", EnergyCost: CostExamine}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if got := e.PlayerState("hero").Energy; got != 99 {
		t.Errorf("expected energy 99, got %d", got)
	}
	if len(result.Changes) != 2 {
		t.Errorf("expected energy + examination changes, got %v", result.Changes)
	}
}

func TestExecuteAction_StatsStayInRange(t *testing.T) {
	w := engineTestWorld()
	w.Entities = append(w.Entities,
		&world.Item{
			ID: "bitter_draught", Name: "Bitter Draught", Location: "hero",
			Usable: true, Consumable: true,
			Effects: &world.Effects{Health: -300, Energy: -300},
		},
	)
	hero, _ := w.FindPerson("hero")
	hero.Inventory = append(hero.Inventory, "bitter_draught")
	e := newTestEngine(t, w)

	sequence := []Action{
		{Type: ActionUseItem, TargetID: "potion"},
		{Type: ActionRest},
		{Type: ActionUseItem, TargetID: "bitter_draught"},
		{Type: ActionRest},
	}
	for turn, action := range sequence {
		result, err := e.ExecuteAction("hero", action, turn+1)
		if err != nil {
			t.Fatalf("unexpected error at turn %d: %v", turn+1, err)
		}
		if !result.Success {
			t.Fatalf("expected success at turn %d, got %q", turn+1, result.Error)
		}
		ps := e.PlayerState("hero")
		if ps.Health < 0 || ps.Health > 100 {
			t.Errorf("health out of range after turn %d: %d", turn+1, ps.Health)
		}
		if ps.Energy < 0 || ps.Energy > 100 {
			t.Errorf("energy out of range after turn %d: %d", turn+1, ps.Energy)
		}
	}
}

func TestExecuteAction_FailureLeavesActionsIdempotent(t *testing.T) {
	w := engineTestWorld()
	hero, _ := w.FindPerson("hero")
	hero.Energy = 3
	e := newTestEngine(t, w)

	first := e.GenerateValidActions("hero")
	if _, err := e.ExecuteAction("hero", Action{Type: ActionExplore, EnergyCost: CostExplore}, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second := e.GenerateValidActions("hero")
	if !reflect.DeepEqual(first, second) {
		t.Error("expected identical action lists after a failed execute")
	}
}

func TestPlayerState(t *testing.T) {
	e := newTestEngine(t, engineTestWorld())

	ps := e.PlayerState("hero")
	if ps == nil {
		t.Fatal("expected player state for hero")
	}
	if ps.CurrentLocation != "tavern" || ps.Health != 90 || ps.Energy != 100 {
		t.Errorf("unexpected player state %+v", ps)
	}
	want := []string{"potion", "map_scroll"}
	if !reflect.DeepEqual(ps.Inventory, want) {
		t.Errorf("expected inventory %v, got %v", want, ps.Inventory)
	}

	// The returned inventory is a copy.
	ps.Inventory[0] = "changed"
	if got := e.PlayerState("hero").Inventory[0]; got != "potion" {
		t.Error("player state inventory aliases engine state")
	}

	if e.PlayerState("tavern") != nil {
		t.Error("expected nil state for a non-person id")
	}
	if e.PlayerState("nobody") != nil {
		t.Error("expected nil state for an unknown id")
	}
}

func TestEntity_ReturnsCopy(t *testing.T) {
	e := newTestEngine(t, engineTestWorld())

	entity, ok := e.Entity("bram")
	if !ok {
		t.Fatal("expected bram")
	}
	entity.(*world.Person).Health = 1
	again, _ := e.Entity("bram")
	if again.(*world.Person).Health != 100 {
		t.Error("Entity returned an aliased entity")
	}

	if _, ok := e.Entity("nobody"); ok {
		t.Error("expected no entity for unknown id")
	}
}

func hasAction(actions []Action, t ActionType, target string) bool {
	for _, a := range actions {
		if a.Type == t && a.TargetID == target {
			return true
		}
	}
	return false
}

func containsString(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}
