package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cfraser/adventure-engine/internal/metrics"
	"github.com/cfraser/adventure-engine/internal/narrative"
	"github.com/cfraser/adventure-engine/pkg/engine"
	"github.com/cfraser/adventure-engine/pkg/session"
	"github.com/cfraser/adventure-engine/pkg/storage"
	"github.com/cfraser/adventure-engine/pkg/textfilter"
	"github.com/cfraser/adventure-engine/pkg/world"
)

// llmTimeout bounds the LLM portion of one turn: discovery plus
// narration.
const llmTimeout = 30 * time.Second

// ActionProcessor runs one player action end to end: load the session,
// execute the action as a transaction, merge any discovery, narrate,
// filter and persist. Both the synchronous HTTP path and the queue
// worker process actions through it.
type ActionProcessor struct {
	storage   storage.Storage
	narrator  *narrative.Narrator
	discovery *narrative.DiscoveryService
	filter    *textfilter.Filter
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActionProcessor creates an action processor. The narrator and
// discovery service may be nil; the processor then falls back to the
// engine's change log and skips discovery.
func NewActionProcessor(store storage.Storage, narrator *narrative.Narrator, discovery *narrative.DiscoveryService, m *metrics.Metrics, logger *slog.Logger) *ActionProcessor {
	return &ActionProcessor{
		storage:   store,
		narrator:  narrator,
		discovery: discovery,
		filter:    textfilter.New(),
		metrics:   m,
		logger:    logger,
	}
}

// Outcome is the terminal result of one processed action.
type Outcome struct {
	SessionID uuid.UUID           `json:"session_id"`
	Turn      int                 `json:"turn"`
	Success   bool                `json:"success"`
	Error     string              `json:"error,omitempty"`
	Changes   []string            `json:"changes"`
	Narration string              `json:"narration"`
	Player    *engine.PlayerState `json:"player,omitempty"`
}

// ProcessAction executes one action against the identified session and
// persists the result. A rejected action is a normal outcome with
// Success false and an unchanged world; the error return is reserved
// for missing sessions, engine protocol violations and storage
// failures.
func (p *ActionProcessor) ProcessAction(ctx context.Context, sessionID uuid.UUID, action engine.Action, instruction string) (*Outcome, error) {
	s, err := p.storage.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if s == nil {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	if s.IsEnded {
		return nil, fmt.Errorf("session %s has ended", sessionID)
	}

	eng, err := engine.New(s.World, p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}

	result, err := eng.ExecuteAction(s.PlayerID, action, s.Turn+1)
	if err != nil {
		p.metrics.RecordAction(string(action.Type), metrics.StatusError)
		return nil, fmt.Errorf("failed to execute action: %w", err)
	}

	if result.Success {
		s.World = result.World
		p.metrics.RecordAction(string(action.Type), metrics.StatusSuccess)
		p.metrics.RecordTransaction(metrics.OutcomeCommitted)
	} else {
		p.metrics.RecordAction(string(action.Type), metrics.StatusFailure)
		p.metrics.RecordTransaction(metrics.OutcomeRolledBack)
	}

	// LLM calls run on their own clock so a dropped caller context
	// cannot abandon a turn that has already committed.
	llmCtx, cancel := context.WithTimeout(context.Background(), llmTimeout)
	defer cancel()

	if result.Success && action.Type == engine.ActionExplore {
		p.mergeDiscovery(llmCtx, s, result)
	}

	narration := p.narrate(llmCtx, s, action, result, instruction)
	if textfilter.ShouldFilterContent(s.Rating) {
		narration = p.filter.Apply(narration)
	}

	s.AppendPlayerLine(playerLine(action, instruction))
	s.AppendNarration(narration)
	if result.Success {
		s.Turn++
	}

	if err := p.storage.SaveSession(ctx, s.ID, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	outcome := &Outcome{
		SessionID: s.ID,
		Turn:      s.Turn,
		Success:   result.Success,
		Error:     result.Error,
		Changes:   result.Changes,
		Narration: narration,
	}
	if player, ok := s.World.FindPerson(s.PlayerID); ok {
		outcome.Player = &engine.PlayerState{
			CurrentLocation: player.Location,
			Health:          player.Health,
			Energy:          player.Energy,
			Inventory:       append([]string(nil), player.Inventory...),
		}
	}
	return outcome, nil
}

// mergeDiscovery asks the discovery service for something new at the
// player's location and merges it into the committed world. Discovery
// failures never fail the action: exploring can come up empty.
func (p *ActionProcessor) mergeDiscovery(ctx context.Context, s *session.Session, result *engine.ActionResult) {
	if p.discovery == nil {
		return
	}

	entity, err := p.discovery.Discover(ctx, s)
	if err != nil {
		p.logger.Warn("Discovery produced nothing usable",
			"session_id", s.ID,
			"error", err.Error())
		return
	}

	if _, exists := s.World.FindEntity(entity.EntityID()); exists {
		p.logger.Warn("Discovered entity id already exists, skipping merge",
			"session_id", s.ID,
			"entity_id", entity.EntityID())
		return
	}

	player, ok := s.World.FindPerson(s.PlayerID)
	if !ok {
		return
	}

	switch discovered := entity.(type) {
	case *world.Place:
		// A discovered place must be reachable, so the player's current
		// place gains a connection to it and it connects back.
		current, ok := s.World.FindPlace(player.Location)
		if !ok {
			return
		}
		if current.Connections == nil {
			current.Connections = make(map[string]*world.Requirement)
		}
		current.Connections[discovered.ID] = nil
		if discovered.Connections == nil {
			discovered.Connections = make(map[string]*world.Requirement)
		}
		if _, ok := discovered.Connections[current.ID]; !ok {
			discovered.Connections[current.ID] = nil
		}
	case *world.Person:
		// Discoveries appear where the player is, with stats in range.
		discovered.Location = player.Location
		discovered.Health = world.ClampStat(discovered.Health)
		discovered.Energy = world.ClampStat(discovered.Energy)
	case *world.Item:
		discovered.Location = player.Location
	}

	s.World.Entities = append(s.World.Entities, entity)
	result.Changes = append(result.Changes, fmt.Sprintf("Exploring uncovers %s.", entity.EntityName()))

	p.logger.Info("Discovery merged into world",
		"session_id", s.ID,
		"entity_id", entity.EntityID(),
		"kind", entity.EntityKind())
}

// narrate turns the engine result into prose, falling back to the raw
// change log when no narrator is wired or the LLM call fails. A
// committed turn is never lost to a narration failure.
func (p *ActionProcessor) narrate(ctx context.Context, s *session.Session, action engine.Action, result *engine.ActionResult, instruction string) string {
	if p.narrator != nil {
		narration, err := p.narrator.Narrate(ctx, s, action, result, instruction)
		if err == nil {
			return narration
		}
		p.logger.Error("Narration failed, using change log",
			"session_id", s.ID,
			"error", err.Error())
	}
	return fallbackNarration(result)
}

// fallbackNarration renders a deterministic account of the turn from
// the engine's change descriptions.
func fallbackNarration(result *engine.ActionResult) string {
	if !result.Success {
		if result.Error != "" {
			return fmt.Sprintf("Nothing happens: %s", result.Error)
		}
		return "Nothing happens."
	}
	if len(result.Changes) == 0 {
		return "Time passes quietly."
	}
	return strings.Join(result.Changes, " ")
}

// playerLine is the history record of the player's side of the turn.
func playerLine(action engine.Action, instruction string) string {
	line := action.Description
	if line == "" {
		line = string(action.Type)
	}
	if instruction != "" {
		line = fmt.Sprintf("%s (%s)", line, instruction)
	}
	return line
}
