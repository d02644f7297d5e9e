// Package queue defines the wire model for asynchronously processed
// action requests.
package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/cfraser/adventure-engine/pkg/engine"
)

// RequestType identifies the payload carried by a queued request.
type RequestType string

const (
	// RequestTypeAction is a player action to execute against a session.
	RequestTypeAction RequestType = "action"
)

// Request is one unit of work on the action queue. Workers load the
// session, run the action through the engine and persist the outcome.
type Request struct {
	RequestID string      `json:"request_id"`
	Type      RequestType `json:"type"`
	SessionID uuid.UUID   `json:"session_id"`

	Action engine.Action `json:"action"`

	// Instruction is optional free text accompanying the action,
	// passed through to the narrator.
	Instruction string `json:"instruction,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewActionRequest builds a queued action request with a fresh request id.
func NewActionRequest(sessionID uuid.UUID, action engine.Action, instruction string) *Request {
	return &Request{
		RequestID:   uuid.New().String(),
		Type:        RequestTypeAction,
		SessionID:   sessionID,
		Action:      action,
		Instruction: instruction,
		EnqueuedAt:  time.Now().UTC(),
	}
}

// MarshalJSON serializes the request for Redis storage.
func (r *Request) MarshalJSON() ([]byte, error) {
	type Alias Request
	return json.Marshal(&struct {
		SessionID string `json:"session_id"`
		*Alias
	}{
		SessionID: r.SessionID.String(),
		Alias:     (*Alias)(r),
	})
}

// UnmarshalJSON deserializes a request stored in Redis.
func (r *Request) UnmarshalJSON(data []byte) error {
	type Alias Request
	aux := &struct {
		SessionID string `json:"session_id"`
		*Alias
	}{
		Alias: (*Alias)(r),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	sessionID, err := uuid.Parse(aux.SessionID)
	if err != nil {
		return err
	}

	r.SessionID = sessionID
	return nil
}

// ToJSON converts the request to JSON bytes for Redis.
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes.
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
