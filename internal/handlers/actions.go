package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cfraser/adventure-engine/internal/narrative"
	"github.com/cfraser/adventure-engine/internal/services/events"
	svcqueue "github.com/cfraser/adventure-engine/internal/services/queue"
	"github.com/cfraser/adventure-engine/internal/worker"
	"github.com/cfraser/adventure-engine/pkg/chat"
	"github.com/cfraser/adventure-engine/pkg/engine"
	"github.com/cfraser/adventure-engine/pkg/queue"
	"github.com/cfraser/adventure-engine/pkg/storage"
)

// selectTimeout bounds the LLM call narrowing the action list. The
// selector degrades to a deterministic prefix on timeout.
const selectTimeout = 15 * time.Second

// ActionRequest is the body for executing an action. Command is a
// shortcut resolved from session state without the engine or the LLM;
// when set, Action is ignored.
type ActionRequest struct {
	Action      engine.Action `json:"action"`
	Instruction string        `json:"instruction,omitempty"`
	Command     string        `json:"command,omitempty"`
	Async       bool          `json:"async,omitempty"`
}

// ActionsResponse carries the valid action list for a session.
type ActionsResponse struct {
	SessionID uuid.UUID       `json:"session_id"`
	Actions   []engine.Action `json:"actions"`
}

// QueuedResponse acknowledges an async action submission.
type QueuedResponse struct {
	RequestID string    `json:"request_id"`
	SessionID uuid.UUID `json:"session_id"`
	Status    string    `json:"status"`
}

// CommandResponse answers a shortcut command.
type CommandResponse struct {
	Message string `json:"message"`
}

// ActionsHandler serves the valid-action list and executes actions,
// synchronously through the processor or asynchronously through the
// queue.
type ActionsHandler struct {
	storage     storage.Storage
	processor   *worker.ActionProcessor
	selector    *narrative.ActionSelector
	queue       *svcqueue.ActionQueue
	broadcaster *events.Broadcaster
	logger      *slog.Logger
}

// NewActionsHandler creates the handler. The selector may be nil to
// disable narrowing; queue and broadcaster may be nil to disable async
// submission.
func NewActionsHandler(store storage.Storage, processor *worker.ActionProcessor, selector *narrative.ActionSelector, q *svcqueue.ActionQueue, broadcaster *events.Broadcaster, logger *slog.Logger) *ActionsHandler {
	return &ActionsHandler{
		storage:     store,
		processor:   processor,
		selector:    selector,
		queue:       q,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// handle serves one actions request, with the session id already parsed
// by the sessions router.
// GET /v1/sessions/{id}/actions?max=N - List valid actions
// POST /v1/sessions/{id}/actions      - Execute an action
func (h *ActionsHandler) handle(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r, sessionID)
	case http.MethodPost:
		h.handleExecute(w, r, sessionID)
	default:
		h.logger.Warn("Method not allowed for actions endpoint", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Method not allowed. Supported methods: GET, POST",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
	}
}

func (h *ActionsHandler) handleList(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	maxActions := 0
	if maxStr := r.URL.Query().Get("max"); maxStr != "" {
		n, err := strconv.Atoi(maxStr)
		if err != nil || n <= 0 {
			w.WriteHeader(http.StatusBadRequest)
			if err := json.NewEncoder(w).Encode(ErrorResponse{
				Error: "Invalid max parameter: expected a positive integer",
			}); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}
		maxActions = n
	}

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
		w.WriteHeader(http.StatusNotFound)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Session not found",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	eng, err := engine.New(s.World, h.logger)
	if err != nil {
		h.logger.Error("Failed to build engine for action listing", "error", err, "id", sessionID.String())
		w.WriteHeader(http.StatusInternalServerError)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Failed to list actions",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	actions := eng.GenerateValidActions(s.PlayerID)
	if maxActions > 0 && h.selector != nil {
		ctx, cancel := context.WithTimeout(r.Context(), selectTimeout)
		defer cancel()
		actions = h.selector.Select(ctx, s, actions, maxActions)
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(ActionsResponse{
		SessionID: sessionID,
		Actions:   actions,
	}); err != nil {
		h.logger.Error("Failed to encode actions response", "error", err)
	}
}

func (h *ActionsHandler) handleExecute(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	var req ActionRequest
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

	if req.Command != "" {
		h.handleCommand(w, r, sessionID, req.Command)
		return
	}

	if req.Action.Type == "" {
		w.WriteHeader(http.StatusBadRequest)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Action type is required",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	if req.Instruction != "" {
		if err := chat.ValidateInstruction(req.Instruction); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			if err := json.NewEncoder(w).Encode(ErrorResponse{
				Error: "Invalid instruction: " + err.Error(),
			}); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}
	}

	if req.Async {
		h.handleEnqueue(w, r, sessionID, req)
		return
	}

	outcome, err := h.processor.ProcessAction(r.Context(), sessionID, req.Action, req.Instruction)
	if err != nil {
		h.logger.Error("Failed to process action", "error", err, "id", sessionID.String())
		status := http.StatusInternalServerError
		msg := "Failed to process action"
		switch {
		case strings.Contains(err.Error(), "session not found"):
			status = http.StatusNotFound
			msg = "Session not found"
		case strings.Contains(err.Error(), "has ended"):
			status = http.StatusConflict
			msg = "Session has ended"
		}
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(outcome); err != nil {
		h.logger.Error("Failed to encode action outcome", "error", err)
	}
}

// handleEnqueue accepts the action for background processing and
// returns immediately with the request id to watch on the event stream.
func (h *ActionsHandler) handleEnqueue(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, req ActionRequest) {
	if h.queue == nil {
		w.WriteHeader(http.StatusBadRequest)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Async processing is not enabled",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	// Reject unknown or ended sessions before queueing so the client
	// gets an immediate answer instead of a failed event.
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
		w.WriteHeader(http.StatusNotFound)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Session not found",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}
	if s.IsEnded {
		w.WriteHeader(http.StatusConflict)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Session has ended",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	request := queue.NewActionRequest(sessionID, req.Action, req.Instruction)
	if err := h.queue.Enqueue(r.Context(), request); err != nil {
		h.logger.Error("Failed to enqueue action request", "error", err, "id", sessionID.String())
		w.WriteHeader(http.StatusInternalServerError)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Failed to enqueue request",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	if h.broadcaster != nil {
		if err := h.broadcaster.PublishRequestQueued(r.Context(), sessionID, request.RequestID, string(request.Type)); err != nil {
			h.logger.Error("Failed to publish queued event", "error", err, "request_id", request.RequestID)
		}
	}

	h.logger.Info("Action request queued",
		"request_id", request.RequestID,
		"session_id", sessionID.String(),
		"action", req.Action.Type)
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(QueuedResponse{
		RequestID: request.RequestID,
		SessionID: sessionID,
		Status:    "queued",
	}); err != nil {
		h.logger.Error("Failed to encode queued response", "error", err)
	}
}

// handleCommand answers shortcut commands from session state alone.
func (h *ActionsHandler) handleCommand(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, command string) {
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
		w.WriteHeader(http.StatusNotFound)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Session not found",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	result := TryHandleCommand(s, command)
	if !result.Handled {
		w.WriteHeader(http.StatusBadRequest)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: fmt.Sprintf("Unknown command: %s", command),
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(CommandResponse{Message: result.Message}); err != nil {
		h.logger.Error("Failed to encode command response", "error", err)
	}
}
