package engine

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/cfraser/adventure-engine/pkg/state"
	"github.com/cfraser/adventure-engine/pkg/world"
)

// Engine validates and executes actions against its own working copy of
// a world. Every successful action replaces the working copy with the
// committed result; failed actions leave it untouched. Not safe for
// concurrent use: construct one engine per request and serialize calls.
type Engine struct {
	world     *world.World
	index     map[string]world.Entity
	tm        *state.TransactionManager
	validator ActionValidator
	logger    *slog.Logger
}

// New builds an engine from a deep copy of w. The source world is never
// mutated by any engine operation.
func New(w *world.World, logger *slog.Logger) (*Engine, error) {
	if w == nil {
		return nil, fmt.Errorf("world is required")
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid world: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	clone := w.Clone()
	return &Engine{
		world:  clone,
		index:  clone.Index(),
		tm:     state.NewTransactionManager(logger),
		logger: logger,
	}, nil
}

// World returns the engine's working world. Callers persist it after a
// successful action; they must not mutate it while the engine is in use.
func (e *Engine) World() *world.World {
	return e.world
}

// PlayerState returns a read-only view of the player, or nil if playerID
// does not resolve to a person.
func (e *Engine) PlayerState(playerID string) *PlayerState {
	player, ok := e.index[playerID].(*world.Person)
	if !ok {
		return nil
	}
	return &PlayerState{
		CurrentLocation: player.Location,
		Health:          player.Health,
		Energy:          player.Energy,
		Inventory:       append([]string(nil), player.Inventory...),
	}
}

// Entity returns a copy of the entity with the given id.
func (e *Engine) Entity(id string) (world.Entity, bool) {
	entity, ok := e.index[id]
	if !ok {
		return nil, false
	}
	return entity.Clone(), true
}

// GenerateValidActions lists every action the player may legally take,
// in a fixed deterministic order. It is read-only: two calls without an
// intervening ExecuteAction return identical results. The list is empty
// if playerID is not a person or the player's location is not a place.
func (e *Engine) GenerateValidActions(playerID string) []Action {
	actions := make([]Action, 0, 16)

	player, ok := e.index[playerID].(*world.Person)
	if !ok {
		return actions
	}
	place, ok := e.index[player.Location].(*world.Place)
	if !ok {
		return actions
	}

	actions = append(actions,
		Action{Type: ActionRest, EnergyCost: CostRest, Description: "Rest to recover energy."},
		Action{Type: ActionWait, EnergyCost: CostWait, Description: "Wait and watch for a moment."},
	)

	if player.Energy >= MinEnergyExplore {
		actions = append(actions, Action{
			Type:        ActionExplore,
			EnergyCost:  CostExplore,
			Description: "Explore the area for something new.",
		})
	}

	if player.Energy >= MinEnergyMove {
		for _, targetID := range sortedTargets(place.Connections) {
			target, ok := e.index[targetID].(*world.Place)
			if !ok || !meetsRequirement(player, place.Connections[targetID]) {
				continue
			}
			actions = append(actions, Action{
				Type:        ActionMove,
				TargetID:    targetID,
				EnergyCost:  CostMove,
				Description: fmt.Sprintf("Move to %s.", target.Name),
			})
		}
	}

	if player.Energy >= MinEnergyTalk {
		for _, person := range e.colocatedPersons(player) {
			actions = append(actions, Action{
				Type:        ActionTalk,
				TargetID:    person.ID,
				EnergyCost:  CostTalk,
				Description: fmt.Sprintf("Talk to %s.", person.Name),
			})
		}
	}

	for _, item := range e.colocatedItems(player) {
		actions = append(actions, Action{
			Type:        ActionTakeItem,
			TargetID:    item.ID,
			EnergyCost:  CostTakeItem,
			Description: fmt.Sprintf("Take the %s.", item.Name),
		})
	}

	for _, itemID := range player.Inventory {
		actions = append(actions, Action{
			Type:        ActionDropItem,
			TargetID:    itemID,
			EnergyCost:  CostDropItem,
			Description: fmt.Sprintf("Drop the %s.", e.entityName(itemID)),
		})
	}

	for _, itemID := range player.Inventory {
		item, ok := e.index[itemID].(*world.Item)
		if !ok || !item.Usable {
			continue
		}
		actions = append(actions, Action{
			Type:        ActionUseItem,
			TargetID:    itemID,
			EnergyCost:  CostUseItem,
			Description: fmt.Sprintf("Use the %s.", item.Name),
		})
	}

	if player.Energy >= MinEnergyExamine {
		for _, person := range e.colocatedPersons(player) {
			actions = append(actions, Action{
				Type:        ActionExamine,
				TargetID:    person.ID,
				EnergyCost:  CostExamine,
				Description: fmt.Sprintf("Examine %s.", person.Name),
			})
		}
		for _, item := range e.colocatedItems(player) {
			actions = append(actions, Action{
				Type:        ActionExamine,
				TargetID:    item.ID,
				EnergyCost:  CostExamine,
				Description: fmt.Sprintf("Examine the %s.", item.Name),
			})
		}
		for _, itemID := range player.Inventory {
			item, ok := e.index[itemID].(*world.Item)
			if !ok {
				continue
			}
			actions = append(actions, Action{
				Type:        ActionExamine,
				TargetID:    item.ID,
				EnergyCost:  CostExamine,
				Description: fmt.Sprintf("Examine the %s.", item.Name),
			})
		}
		actions = append(actions, Action{
			Type:        ActionExamine,
			TargetID:    place.ID,
			EnergyCost:  CostExamine,
			Description: fmt.Sprintf("Examine %s.", place.Name),
		})
	}

	return actions
}

// ExecuteAction runs the full transaction protocol for one action:
// validate, record the energy cost and the action's effects, commit. On
// success the engine's working world is replaced by the committed result
// and the result carries every change description in order. Validation
// and referential failures come back inside the result with the world
// unchanged; the error return carries only protocol violations, which
// indicate an orchestration bug.
func (e *Engine) ExecuteAction(playerID string, action Action, turn int) (*ActionResult, error) {
	player, ok := e.index[playerID].(*world.Person)
	if !ok {
		return &ActionResult{Success: false, World: e.world, Changes: []string{}, Error: "Invalid player"}, nil
	}

	// The engine owns the cost table; a cost carried in from the wire is
	// ignored.
	action.EnergyCost = EnergyCost(action.Type)

	if _, err := e.tm.StartTransaction(e.world, turn); err != nil {
		return nil, err
	}

	if err := e.validator.Validate(e.index, player, action); err != nil {
		if _, rbErr := e.tm.Rollback(); rbErr != nil {
			return nil, rbErr
		}
		e.logger.Debug("Action rejected",
			"player_id", playerID,
			"action", action.Type,
			"reason", err.Error())
		return &ActionResult{Success: false, World: e.world, Changes: []string{}, Error: err.Error()}, nil
	}

	if err := e.recordAction(player, action); err != nil {
		if state.IsInvariantViolation(err) {
			return nil, err
		}
		restored, rbErr := e.tm.Rollback()
		if rbErr != nil {
			return nil, rbErr
		}
		e.logger.Warn("Action rolled back",
			"player_id", playerID,
			"action", action.Type,
			"error", err.Error())
		return &ActionResult{Success: false, World: restored, Changes: []string{}, Error: err.Error()}, nil
	}

	next, err := e.tm.Commit(e.world)
	if err != nil {
		if state.IsInvariantViolation(err) {
			return nil, err
		}
		restored, rbErr := e.tm.Rollback()
		if rbErr != nil {
			return nil, rbErr
		}
		e.logger.Warn("Commit rolled back",
			"player_id", playerID,
			"action", action.Type,
			"error", err.Error())
		return &ActionResult{Success: false, World: restored, Changes: []string{}, Error: err.Error()}, nil
	}

	e.world = next
	e.index = next.Index()
	e.logger.Debug("Action executed",
		"player_id", playerID,
		"action", action.Type,
		"turn", turn)
	return &ActionResult{Success: true, World: next, Changes: e.tm.ChangeDescriptions()}, nil
}

// recordAction records the universal energy cost, then the
// action-specific changes. Nothing is mutated here; changes take effect
// at commit.
func (e *Engine) recordAction(player *world.Person, action Action) error {
	if action.EnergyCost > 0 {
		old := player.Energy
		next := old - action.EnergyCost
		if next < world.StatMin {
			next = world.StatMin
		}
		err := e.record(
			&state.FieldMutation{EntityID: player.ID, Path: "energy", Old: old, New: next},
			fmt.Sprintf("%s spends %d energy.", player.Name, action.EnergyCost),
		)
		if err != nil {
			return err
		}
	}
	return e.recordEffects(player, action)
}

func (e *Engine) recordEffects(player *world.Person, action Action) error {
	switch action.Type {
	case ActionRest:
		old := player.Energy
		next := world.ClampStat(old + EnergyRecovery)
		return e.record(
			&state.FieldMutation{EntityID: player.ID, Path: "energy", Old: old, New: next},
			fmt.Sprintf("%s rests, recovering energy from %d to %d.", player.Name, old, next),
		)

	case ActionWait, ActionExplore:
		// Nothing beyond the energy cost. A discovery found while
		// exploring is merged by the orchestration layer after commit.
		return nil

	case ActionMove:
		target, ok := e.index[action.TargetID].(*world.Place)
		if !ok {
			return &state.EntityNotFoundError{EntityID: action.TargetID}
		}
		return e.record(
			&state.FieldMutation{EntityID: player.ID, Path: "location", Old: player.Location, New: target.ID},
			fmt.Sprintf("%s moves from %s to %s.", player.Name, e.entityName(player.Location), target.Name),
		)

	case ActionTalk:
		target, ok := e.index[action.TargetID].(*world.Person)
		if !ok {
			return &state.EntityNotFoundError{EntityID: action.TargetID}
		}
		text := fmt.Sprintf("%s has a conversation with %s.", player.Name, target.Name)
		return e.record(&state.NarrativeEvent{EntityID: target.ID, Text: text}, text)

	case ActionTakeItem:
		item, ok := e.index[action.TargetID].(*world.Item)
		if !ok {
			return &state.EntityNotFoundError{EntityID: action.TargetID}
		}
		oldInv := append([]string(nil), player.Inventory...)
		newInv := append(append([]string(nil), player.Inventory...), item.ID)
		err := e.record(
			&state.FieldMutation{EntityID: item.ID, Path: "location", Old: item.Location, New: player.ID},
			fmt.Sprintf("%s picks up the %s.", player.Name, item.Name),
		)
		if err != nil {
			return err
		}
		return e.record(
			&state.FieldMutation{EntityID: player.ID, Path: "inventory", Old: oldInv, New: newInv},
			fmt.Sprintf("The %s is now in %s's inventory.", item.Name, player.Name),
		)

	case ActionDropItem:
		item, ok := e.index[action.TargetID].(*world.Item)
		if !ok {
			return &state.EntityNotFoundError{EntityID: action.TargetID}
		}
		oldInv := append([]string(nil), player.Inventory...)
		newInv := removeFirst(oldInv, item.ID)
		err := e.record(
			&state.FieldMutation{EntityID: item.ID, Path: "location", Old: item.Location, New: player.Location},
			fmt.Sprintf("%s drops the %s at %s.", player.Name, item.Name, e.entityName(player.Location)),
		)
		if err != nil {
			return err
		}
		return e.record(
			&state.FieldMutation{EntityID: player.ID, Path: "inventory", Old: oldInv, New: newInv},
			fmt.Sprintf("The %s is no longer in %s's inventory.", item.Name, player.Name),
		)

	case ActionUseItem:
		item, ok := e.index[action.TargetID].(*world.Item)
		if !ok {
			return &state.EntityNotFoundError{EntityID: action.TargetID}
		}
		if item.Effects != nil && item.Effects.Health != 0 {
			old := player.Health
			next := world.ClampStat(old + item.Effects.Health)
			err := e.record(
				&state.FieldMutation{EntityID: player.ID, Path: "health", Old: old, New: next},
				statChange(player.Name, "health", old, next),
			)
			if err != nil {
				return err
			}
		}
		if item.Effects != nil && item.Effects.Energy != 0 {
			old := player.Energy
			next := world.ClampStat(old + item.Effects.Energy)
			err := e.record(
				&state.FieldMutation{EntityID: player.ID, Path: "energy", Old: old, New: next},
				statChange(player.Name, "energy", old, next),
			)
			if err != nil {
				return err
			}
		}
		if item.Consumable {
			oldInv := append([]string(nil), player.Inventory...)
			newInv := removeFirst(oldInv, item.ID)
			err := e.record(
				&state.FieldMutation{EntityID: player.ID, Path: "inventory", Old: oldInv, New: newInv},
				fmt.Sprintf("The %s is consumed.", item.Name),
			)
			if err != nil {
				return err
			}
			return e.record(
				&state.EntityRemoved{EntityID: item.ID},
				fmt.Sprintf("The %s is gone from the world.", item.Name),
			)
		}
		return nil

	case ActionExamine:
		target, ok := e.index[action.TargetID]
		if !ok {
			return &state.EntityNotFoundError{EntityID: action.TargetID}
		}
		text := fmt.Sprintf("%s examines %s.", player.Name, target.EntityName())
		return e.record(&state.NarrativeEvent{EntityID: action.TargetID, Text: text}, text)

	default:
		return nil
	}
}

func (e *Engine) record(op state.Operation, description string) error {
	_, err := e.tm.RecordChange(op, description)
	return err
}

func (e *Engine) colocatedPersons(player *world.Person) []*world.Person {
	var persons []*world.Person
	for _, entity := range e.world.Entities {
		person, ok := entity.(*world.Person)
		if !ok || person.ID == player.ID || person.Location != player.Location {
			continue
		}
		persons = append(persons, person)
	}
	return persons
}

func (e *Engine) colocatedItems(player *world.Person) []*world.Item {
	var items []*world.Item
	for _, entity := range e.world.Entities {
		item, ok := entity.(*world.Item)
		if !ok || item.Location != player.Location {
			continue
		}
		items = append(items, item)
	}
	return items
}

func (e *Engine) entityName(id string) string {
	if entity, ok := e.index[id]; ok {
		return entity.EntityName()
	}
	return id
}

func sortedTargets(connections map[string]*world.Requirement) []string {
	targets := make([]string, 0, len(connections))
	for target := range connections {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	return targets
}

func removeFirst(items []string, id string) []string {
	out := make([]string, 0, len(items))
	removed := false
	for _, item := range items {
		if !removed && item == id {
			removed = true
			continue
		}
		out = append(out, item)
	}
	return out
}

func statChange(name, stat string, old, next int) string {
	verb := "rises"
	if next < old {
		verb = "falls"
	}
	return fmt.Sprintf("%s's %s %s from %d to %d.", name, stat, verb, old, next)
}
