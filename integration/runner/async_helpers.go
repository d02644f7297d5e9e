package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cfraser/adventure-engine/pkg/chat"
	"github.com/cfraser/adventure-engine/pkg/engine"
	"github.com/cfraser/adventure-engine/pkg/session"
)

const (
	// PollInterval is how often to check the session for updates
	PollInterval = 1 * time.Second
	// OutcomeTimeout is max time to wait for a queued action to land
	OutcomeTimeout = 30 * time.Second
)

// ActionOutcome is the response from the synchronous action endpoint
type ActionOutcome struct {
	SessionID uuid.UUID `json:"session_id"`
	Turn      int       `json:"turn"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Changes   []string  `json:"changes"`
	Narration string    `json:"narration"`
}

// QueuedResponse is the response from the async action endpoint
type QueuedResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// PostActionAsync submits an action to the queue and returns the request_id
func PostActionAsync(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID, action engine.Action, instruction string) (string, error) {
	reqBody := map[string]interface{}{
		"action": action,
		"async":  true,
	}
	if instruction != "" {
		reqBody["instruction"] = instruction
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal action request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/sessions/%s/actions", baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create action request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send action request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("action endpoint returned %d (expected 202): %s", resp.StatusCode, string(respBody))
	}

	// Parse response to get request_id
	var queued QueuedResponse
	if err := json.NewDecoder(resp.Body).Decode(&queued); err != nil {
		return "", fmt.Errorf("failed to parse queued response: %w", err)
	}

	return queued.RequestID, nil
}

// GetSession retrieves the current session
func GetSession(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID) (*session.Session, error) {
	url := fmt.Sprintf("%s/v1/sessions/%s", baseURL, sessionID.String())
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send session request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("session endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var s session.Session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	return &s, nil
}

// PollForOutcome polls the session until history grows by 2 (player + narrator).
// Returns the updated session and the narrator's response text.
func PollForOutcome(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID, initialHistoryLen int) (*session.Session, string, error) {
	timeout := time.After(OutcomeTimeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-timeout:
			return nil, "", fmt.Errorf("timeout waiting for action outcome (waited %v)", OutcomeTimeout)
		case <-ticker.C:
			s, err := GetSession(ctx, client, baseURL, sessionID)
			if err != nil {
				// Log error but continue polling
				continue
			}

			currentHistoryLen := len(s.History)
			if currentHistoryLen >= initialHistoryLen+2 {
				// Extract the narrator's response (last message should be the narrator)
				var narration string
				if currentHistoryLen > 0 {
					lastMsg := s.History[currentHistoryLen-1]
					if lastMsg.Role == chat.RoleNarrator {
						narration = lastMsg.Content
					}
				}
				return s, narration, nil
			}
		}
	}
}
