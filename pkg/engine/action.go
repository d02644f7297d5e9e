// Package engine executes player actions against a world through an
// all-or-nothing transaction protocol. An Engine owns one working world
// and one transaction manager; it is single-threaded and synchronous,
// and callers construct one engine per request from persisted state.
package engine

import (
	"github.com/cfraser/adventure-engine/pkg/world"
)

// ActionType identifies one of the fixed action kinds a player can take.
type ActionType string

const (
	ActionRest     ActionType = "REST"
	ActionWait     ActionType = "WAIT"
	ActionExplore  ActionType = "EXPLORE"
	ActionMove     ActionType = "MOVE"
	ActionTalk     ActionType = "TALK"
	ActionTakeItem ActionType = "TAKE_ITEM"
	ActionDropItem ActionType = "DROP_ITEM"
	ActionUseItem  ActionType = "USE_ITEM"
	ActionExamine  ActionType = "EXAMINE"
)

// Energy costs per action type.
const (
	CostRest     = 0
	CostWait     = 0
	CostExplore  = 4
	CostMove     = 5
	CostTalk     = 3
	CostTakeItem = 0
	CostDropItem = 0
	CostUseItem  = 0
	CostExamine  = 1
)

// Minimum energy required for an action to be offered by
// GenerateValidActions. These gate generation only; execution checks
// energy against the action's cost.
const (
	MinEnergyExplore = 5
	MinEnergyMove    = 11
	MinEnergyTalk    = 5
	MinEnergyExamine = 2
)

// EnergyRecovery is the energy restored by REST, capped at StatMax.
const EnergyRecovery = 70

// EnergyCost returns the canonical cost for an action type.
func EnergyCost(t ActionType) int {
	switch t {
	case ActionExplore:
		return CostExplore
	case ActionMove:
		return CostMove
	case ActionTalk:
		return CostTalk
	case ActionExamine:
		return CostExamine
	default:
		return 0
	}
}

// Action is one legal move offered to or chosen by a player. TargetID is
// empty for untargeted actions (REST, WAIT, EXPLORE).
type Action struct {
	Type        ActionType `json:"type"`
	TargetID    string     `json:"target_id,omitempty"`
	EnergyCost  int        `json:"energy_cost"`
	Description string     `json:"description"`
}

// ActionResult is the outcome of ExecuteAction. On success World is the
// newly committed world and Changes holds the description of every
// recorded change in order. On failure World deep-equals the
// pre-action world, Changes is empty and Error says why.
type ActionResult struct {
	Success bool         `json:"success"`
	World   *world.World `json:"world,omitempty"`
	Changes []string     `json:"changes"`
	Error   string       `json:"error,omitempty"`
}

// PlayerState is the read-only view of a player returned by
// Engine.PlayerState.
type PlayerState struct {
	CurrentLocation string   `json:"current_location"`
	Health          int      `json:"health"`
	Energy          int      `json:"energy"`
	Inventory       []string `json:"inventory"`
}
