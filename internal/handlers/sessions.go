package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cfraser/adventure-engine/internal/narrative"
	"github.com/cfraser/adventure-engine/pkg/session"
	"github.com/cfraser/adventure-engine/pkg/storage"
	"github.com/cfraser/adventure-engine/pkg/world"
)

// worldGenTimeout bounds LLM world generation during session creation.
const worldGenTimeout = 2 * time.Minute

// openingTimeout bounds the opening scene narration.
const openingTimeout = 30 * time.Second

type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateSessionRequest is the body for creating a session. Exactly one
// world source is needed: a template filename, or a free-text
// description for the world builder. When both are given the builder
// runs first and the template is the fallback.
type CreateSessionRequest struct {
	World            string `json:"world,omitempty"`
	WorldDescription string `json:"world_description,omitempty"`
	PlayerID         string `json:"player_id,omitempty"`
	Rating           string `json:"rating,omitempty"`
}

// SessionsHandler owns the /v1/sessions subtree and dispatches the
// actions and events subresources.
type SessionsHandler struct {
	storage       storage.Storage
	builder       *narrative.WorldBuilder
	actions       *ActionsHandler
	events        *EventsHandler
	defaultRating string
	logger        *slog.Logger
}

func NewSessionsHandler(store storage.Storage, builder *narrative.WorldBuilder, actions *ActionsHandler, events *EventsHandler, defaultRating string, logger *slog.Logger) *SessionsHandler {
	if defaultRating == "" {
		defaultRating = session.RatingPG13
	}
	return &SessionsHandler{
		storage:       store,
		builder:       builder,
		actions:       actions,
		events:        events,
		defaultRating: defaultRating,
		logger:        logger,
	}
}

// ServeHTTP routes session requests.
// Routes:
// POST /v1/sessions                 - Create a session
// GET /v1/sessions/{id}             - Read a session
// DELETE /v1/sessions/{id}          - Delete a session
// GET|POST /v1/sessions/{id}/actions - Valid actions / execute an action
// GET /v1/sessions/{id}/events      - SSE event stream
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")

	if rest == "" {
		w.Header().Set("Content-Type", "application/json")
		if r.Method != http.MethodPost {
			h.logger.Warn("Method not allowed for sessions collection", "method", r.Method)
			w.WriteHeader(http.StatusMethodNotAllowed)
			if err := json.NewEncoder(w).Encode(ErrorResponse{
				Error: "Method not allowed. Use POST to create a session.",
			}); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}
		h.handleCreate(w, r)
		return
	}

	parts := strings.SplitN(rest, "/", 2)
	sessionID, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", parts[0], "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Invalid session ID format",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	// Subresources set their own headers: the event stream is not JSON.
	if len(parts) == 2 {
		switch parts[1] {
		case "actions":
			h.actions.handle(w, r, sessionID)
		case "events":
			h.events.handle(w, r, sessionID)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			if err := json.NewEncoder(w).Encode(ErrorResponse{
				Error: "Not found",
			}); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodGet:
		h.handleRead(w, r, sessionID)
	case http.MethodDelete:
		h.handleDelete(w, r, sessionID)
	default:
		h.logger.Warn("Method not allowed for session resource", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Method not allowed. Supported methods: GET, DELETE",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
	}
}

func (h *SessionsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Creating new session")

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Invalid JSON in request body",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	if req.World == "" && req.WorldDescription == "" {
		w.WriteHeader(http.StatusBadRequest)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Either world or world_description is required",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	rating := req.Rating
	if rating == "" {
		rating = h.defaultRating
	}
	rating = normalizeRating(rating)
	if rating == "" {
		w.WriteHeader(http.StatusBadRequest)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Unsupported rating. Use G, PG, PG-13 or R.",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	worldDoc, err := h.resolveWorld(r.Context(), req)
	if err != nil {
		h.logger.Error("Failed to resolve world for new session", "error", err)
		status := http.StatusBadRequest
		if req.World == "" {
			// Nothing the client named failed; generation did.
			status = http.StatusBadGateway
		}
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Failed to load world: " + err.Error(),
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	playerID := req.PlayerID
	if playerID == "" {
		playerID = "player"
	}
	if _, ok := worldDoc.FindPerson(playerID); !ok {
		w.WriteHeader(http.StatusBadRequest)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: fmt.Sprintf("World has no person with id %q", playerID),
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	s := session.New(playerID, worldDoc)
	s.Rating = rating

	// The opening scene is best effort: a session without one is still
	// playable.
	openCtx, cancel := context.WithTimeout(r.Context(), openingTimeout)
	defer cancel()
	opening, err := h.builder.OpeningScene(openCtx, worldDoc, playerID, rating)
	if err != nil {
		h.logger.Warn("Failed to narrate opening scene", "error", err, "session_id", s.ID)
	} else if opening != "" {
		s.AppendNarration(opening)
	}

	if err := h.storage.SaveSession(r.Context(), s.ID, s); err != nil {
		h.logger.Error("Failed to save new session", "error", err, "id", s.ID.String())
		w.WriteHeader(http.StatusInternalServerError)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Failed to create session",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	h.logger.Info("Session created",
		"id", s.ID.String(),
		"world", worldDoc.Name,
		"player_id", playerID,
		"rating", rating)
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(s); err != nil {
		h.logger.Error("Failed to encode session response", "error", err)
	}
}

// resolveWorld produces the world for a new session: generated from the
// description when one is given, otherwise (or as fallback) loaded from
// a template file.
func (h *SessionsHandler) resolveWorld(ctx context.Context, req CreateSessionRequest) (*world.World, error) {
	if req.WorldDescription != "" {
		genCtx, cancel := context.WithTimeout(ctx, worldGenTimeout)
		defer cancel()

		built, err := h.builder.BuildWorld(genCtx, req.WorldDescription)
		if err == nil {
			return built, nil
		}
		h.logger.Warn("World generation failed, falling back to a template", "error", err.Error())
	}

	filename := strings.TrimSpace(req.World)
	if filename == "" {
		templates, err := h.storage.ListWorldTemplates(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list world templates: %w", err)
		}
		if len(templates) == 0 {
			return nil, fmt.Errorf("world generation failed and no template worlds are available")
		}
		names := make([]string, 0, len(templates))
		for name := range templates {
			names = append(names, name)
		}
		sort.Strings(names)
		filename = templates[names[0]]
	}
	if !strings.HasSuffix(filename, ".json") {
		filename += ".json"
	}
	return h.storage.GetWorldTemplate(ctx, filename)
}

func (h *SessionsHandler) handleRead(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	s, err := h.storage.LoadSession(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("Failed to load session", "error", err, "id", sessionID.String())
		w.WriteHeader(http.StatusInternalServerError)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Failed to load session",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	if s == nil {
		h.logger.Warn("Session not found", "id", sessionID.String())
		w.WriteHeader(http.StatusNotFound)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Session not found",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(s); err != nil {
		h.logger.Error("Failed to encode session response", "error", err)
	}
}

func (h *SessionsHandler) handleDelete(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	if err := h.storage.DeleteSession(r.Context(), sessionID); err != nil {
		h.logger.Error("Failed to delete session", "error", err, "id", sessionID.String())
		w.WriteHeader(http.StatusInternalServerError)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Failed to delete session",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}
	h.logger.Debug("Session deleted", "id", sessionID.String())
	w.WriteHeader(http.StatusNoContent)
}

// normalizeRating maps user input onto the session rating constants,
// returning "" for anything unsupported.
func normalizeRating(rating string) string {
	switch strings.ToUpper(strings.TrimSpace(rating)) {
	case session.RatingG:
		return session.RatingG
	case session.RatingPG:
		return session.RatingPG
	case session.RatingPG13, "PG13":
		return session.RatingPG13
	case session.RatingR:
		return session.RatingR
	default:
		return ""
	}
}
