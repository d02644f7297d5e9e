package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/google/uuid"

	"github.com/cfraser/adventure-engine/pkg/engine"
	"github.com/cfraser/adventure-engine/pkg/session"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateSessionRequest matches the API request structure
type CreateSessionRequest struct {
	World    string `json:"world,omitempty"`
	PlayerID string `json:"player_id,omitempty"`
	Rating   string `json:"rating,omitempty"`
}

// ActionListResponse matches the API's action list structure
type ActionListResponse struct {
	SessionID uuid.UUID       `json:"session_id"`
	Actions   []engine.Action `json:"actions"`
}

// ActionOutcome matches the API's action outcome structure
type ActionOutcome struct {
	SessionID uuid.UUID           `json:"session_id"`
	Turn      int                 `json:"turn"`
	Success   bool                `json:"success"`
	Error     string              `json:"error,omitempty"`
	Changes   []string            `json:"changes"`
	Narration string              `json:"narration"`
	Player    *engine.PlayerState `json:"player,omitempty"`
}

// CommandResponse matches the API's shortcut command structure
type CommandResponse struct {
	Message string `json:"message"`
}

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func listWorlds(client *http.Client, baseURL string) ([]string, map[string]string, error) {
	resp, err := client.Get(baseURL + "/v1/worlds")
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	var listResp struct {
		Worlds map[string]string `json:"worlds"`
	}
	if err := json.Unmarshal(body, &listResp); err != nil {
		return nil, nil, err
	}

	var names []string
	for name := range listResp.Worlds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, listResp.Worlds, nil
}

func createSession(client *http.Client, baseURL string, worldFile string) (*session.Session, error) {
	req := CreateSessionRequest{
		World: worldFile,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(
		baseURL+"/v1/sessions",
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("failed to create session: %s", errorResp.Error)
	}

	var created session.Session
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}

	return &created, nil
}

func getSession(client *http.Client, baseURL string, sessionID uuid.UUID) (*session.Session, error) {
	resp, err := client.Get(fmt.Sprintf("%s/v1/sessions/%s", baseURL, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("failed to get session: %s", errorResp.Error)
	}

	var s session.Session
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}
	return &s, nil
}

func listActions(client *http.Client, baseURL string, sessionID uuid.UUID, max int) ([]engine.Action, error) {
	url := fmt.Sprintf("%s/v1/sessions/%s/actions", baseURL, sessionID)
	if max > 0 {
		url = fmt.Sprintf("%s?max=%d", url, max)
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("failed to list actions: %s", errorResp.Error)
	}

	var listResp ActionListResponse
	if err := json.Unmarshal(body, &listResp); err != nil {
		return nil, fmt.Errorf("failed to parse action list response: %w", err)
	}
	return listResp.Actions, nil
}

func executeAction(client *http.Client, baseURL string, sessionID uuid.UUID, action engine.Action, instruction string) (*ActionOutcome, error) {
	reqBody := map[string]interface{}{
		"action": action,
	}
	if instruction != "" {
		reqBody["instruction"] = instruction
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(
		fmt.Sprintf("%s/v1/sessions/%s/actions", baseURL, sessionID),
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("failed to execute action: %s", errorResp.Error)
	}

	var outcome ActionOutcome
	if err := json.Unmarshal(body, &outcome); err != nil {
		return nil, fmt.Errorf("failed to parse outcome response: %w", err)
	}
	return &outcome, nil
}

func sendCommand(client *http.Client, baseURL string, sessionID uuid.UUID, command string) (string, error) {
	reqBody := map[string]interface{}{
		"command": command,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(
		fmt.Sprintf("%s/v1/sessions/%s/actions", baseURL, sessionID),
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return "", fmt.Errorf("command failed: %s", errorResp.Error)
	}

	var cmdResp CommandResponse
	if err := json.Unmarshal(body, &cmdResp); err != nil {
		return "", fmt.Errorf("failed to parse command response: %w", err)
	}
	return cmdResp.Message, nil
}
