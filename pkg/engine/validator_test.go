package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/cfraser/adventure-engine/pkg/world"
)

func TestValidate(t *testing.T) {
	w := engineTestWorld()
	idx := w.Index()
	hero, ok := w.FindPerson("hero")
	if !ok {
		t.Fatal("fixture missing hero")
	}
	var v ActionValidator

	cases := []struct {
		name    string
		action  Action
		wantErr string // empty means valid; otherwise a substring of the message
	}{
		{"rest", Action{Type: ActionRest}, ""},
		{"wait", Action{Type: ActionWait}, ""},
		{"explore", Action{Type: ActionExplore, EnergyCost: CostExplore}, ""},
		{"move open connection", Action{Type: ActionMove, TargetID: "forest", EnergyCost: CostMove}, ""},
		{"move unlisted target", Action{Type: ActionMove, TargetID: "wanderer", EnergyCost: CostMove}, "not connected"},
		{"move unknown target", Action{Type: ActionMove, TargetID: "the_moon", EnergyCost: CostMove}, "not connected"},
		{"move without required item", Action{Type: ActionMove, TargetID: "locked_room", EnergyCost: CostMove}, "not connected"},
		{"talk co-located", Action{Type: ActionTalk, TargetID: "bram", EnergyCost: CostTalk}, ""},
		{"talk to self", Action{Type: ActionTalk, TargetID: "hero", EnergyCost: CostTalk}, ""},
		{"talk elsewhere", Action{Type: ActionTalk, TargetID: "wanderer", EnergyCost: CostTalk}, "not here"},
		{"talk to an item", Action{Type: ActionTalk, TargetID: "lute", EnergyCost: CostTalk}, "not here"},
		{"take co-located item", Action{Type: ActionTakeItem, TargetID: "lute"}, ""},
		{"take held item", Action{Type: ActionTakeItem, TargetID: "potion"}, "no such item here"},
		{"take unknown item", Action{Type: ActionTakeItem, TargetID: "crown"}, "no such item here"},
		{"take a person", Action{Type: ActionTakeItem, TargetID: "bram"}, "no such item here"},
		{"drop held item", Action{Type: ActionDropItem, TargetID: "potion"}, ""},
		{"drop unheld item", Action{Type: ActionDropItem, TargetID: "lute"}, "not in your inventory"},
		{"use held item", Action{Type: ActionUseItem, TargetID: "potion"}, ""},
		{"use unheld item", Action{Type: ActionUseItem, TargetID: "mug"}, "not in your inventory"},
		{"examine person", Action{Type: ActionExamine, TargetID: "bram", EnergyCost: CostExamine}, ""},
		{"examine place", Action{Type: ActionExamine, TargetID: "tavern", EnergyCost: CostExamine}, ""},
		{"examine unknown", Action{Type: ActionExamine, TargetID: "nothing", EnergyCost: CostExamine}, "no such entity"},
		{"unknown action type", Action{Type: ActionType("FLY")}, "Unknown action type"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(idx, hero, tc.action)
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("expected valid, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected rejection containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected message containing %q, got %q", tc.wantErr, err.Error())
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected a ValidationError, got %T", err)
			}
		})
	}
}

func TestValidate_EnergyCheckedFirst(t *testing.T) {
	w := engineTestWorld()
	idx := w.Index()
	hero, _ := w.FindPerson("hero")
	hero.Energy = 2
	var v ActionValidator

	// The universal energy check fires before the per-action check, even
	// when the target would also be rejected.
	err := v.Validate(idx, hero, Action{Type: ActionTalk, TargetID: "wanderer", EnergyCost: CostTalk})
	if err == nil {
		t.Fatal("expected rejection")
	}
	want := "Not enough energy. Need 3, have 2."
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestValidate_HealthGate(t *testing.T) {
	w := engineTestWorld()
	idx := w.Index()
	hero, _ := w.FindPerson("hero")
	var v ActionValidator

	action := Action{Type: ActionMove, TargetID: "cellar", EnergyCost: CostMove}
	if err := v.Validate(idx, hero, action); err != nil {
		t.Errorf("expected cellar reachable at health 90, got %v", err)
	}

	hero.Health = 49
	if err := v.Validate(idx, hero, action); err == nil {
		t.Error("expected rejection below required health")
	}
}

func TestValidate_MoveWithCarriedKey(t *testing.T) {
	w := engineTestWorld()
	w.Entities = append(w.Entities, &world.Item{ID: "key", Name: "Iron Key", Location: "hero"})
	hero, _ := w.FindPerson("hero")
	hero.Inventory = append(hero.Inventory, "key")
	idx := w.Index()
	var v ActionValidator

	err := v.Validate(idx, hero, Action{Type: ActionMove, TargetID: "locked_room", EnergyCost: CostMove})
	if err != nil {
		t.Errorf("expected locked_room reachable with the key, got %v", err)
	}
}
