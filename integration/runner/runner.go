package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cfraser/adventure-engine/pkg/engine"
	"github.com/cfraser/adventure-engine/pkg/session"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running adventure-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
	WorldOverride     string // If set, overrides the world template for all test cases
	Async             bool   // If set, actions run through the queue and a worker must be up
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           30 * time.Second,
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	// If this is not a sequence, return it as-is
	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	// This is a sequence - load all referenced cases
	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		// Resolve path relative to casesDir
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite executes a complete test suite against a fresh session
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	worldFile := suite.World
	if r.WorldOverride != "" {
		worldFile = r.WorldOverride
	}

	s, err := r.createSession(ctx, worldFile, suite.PlayerID, suite.Rating)
	if err != nil {
		result.Error = fmt.Errorf("failed to create session: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.Session = s.ID

	// Execute each test step
	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, s.ID, step)
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			// Break only if error handling mode is "exit"
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			// Continue to next step if mode is "continue"
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// runStep executes a single test step and checks expectations.
// Will retry once on timeout errors without backoff.
func (r *Runner) runStep(ctx context.Context, sessionID uuid.UUID, step TestStep) TestResult {
	// Try once, then retry on timeout
	for attempt := 1; attempt <= 2; attempt++ {
		result := r.executeStep(ctx, sessionID, step)

		// If successful or not a timeout, return immediately
		if result.Success || result.Error == nil {
			return result
		}

		// Check if it's a timeout error
		isTimeout := strings.Contains(result.Error.Error(), "timeout waiting for")

		// If it's a timeout and this is the first attempt, retry
		if isTimeout && attempt == 1 {
			r.Logger("    Timeout detected, retrying step: %s", step.Name)
			continue
		}

		// Otherwise, return the result
		return result
	}

	// Should never reach here, but return empty result just in case
	return TestResult{StepName: step.Name, Error: fmt.Errorf("unexpected error in retry logic")}
}

// executeStep performs the actual step execution
func (r *Runner) executeStep(ctx context.Context, sessionID uuid.UUID, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{
		StepName: step.Name,
	}

	// Shortcut command steps skip the engine entirely
	if step.Command != "" {
		result.IsCommand = true
		message, err := r.sendCommand(ctx, sessionID, step.Command)
		if err != nil {
			result.Error = fmt.Errorf("failed to send command: %w", err)
			result.Duration = time.Since(start)
			return result
		}
		result.Narration = message

		postSession, err := r.getSession(ctx, sessionID)
		if err != nil {
			result.Error = fmt.Errorf("failed to get session after command: %w", err)
			result.Duration = time.Since(start)
			return result
		}

		if err := r.checkExpectations(step.Expectations, postSession, message, true); err != nil {
			result.Error = fmt.Errorf("expectation failed: %w", err)
			result.Duration = time.Since(start)
			return result
		}

		result.Success = true
		result.Duration = time.Since(start)
		return result
	}

	action := engine.Action{
		Type:     engine.ActionType(step.Action),
		TargetID: step.Target,
	}

	var (
		narration   string
		success     bool
		postSession *session.Session
	)

	if r.Async {
		preSession, err := r.getSession(ctx, sessionID)
		if err != nil {
			result.Error = fmt.Errorf("failed to get session before action: %w", err)
			result.Duration = time.Since(start)
			return result
		}

		requestID, err := PostActionAsync(ctx, r.Client, r.BaseURL, sessionID, action, step.Instruction)
		if err != nil {
			result.Error = fmt.Errorf("failed to post async action: %w", err)
			result.Duration = time.Since(start)
			return result
		}
		result.RequestID = requestID

		// Both halves of the turn land in history whether or not the
		// engine accepted the action; only the turn counter is gated
		// on success.
		postSession, narration, err = PollForOutcome(ctx, r.Client, r.BaseURL, sessionID, len(preSession.History))
		if err != nil {
			result.Error = fmt.Errorf("failed to poll for outcome: %w", err)
			result.Duration = time.Since(start)
			return result
		}
		success = postSession.Turn == preSession.Turn+1
	} else {
		outcome, err := r.executeAction(ctx, sessionID, action, step.Instruction)
		if err != nil {
			result.Error = fmt.Errorf("failed to execute action: %w", err)
			result.Duration = time.Since(start)
			return result
		}
		narration = outcome.Narration
		success = outcome.Success

		postSession, err = r.getSession(ctx, sessionID)
		if err != nil {
			result.Error = fmt.Errorf("failed to get session after action: %w", err)
			result.Duration = time.Since(start)
			return result
		}
	}

	result.Narration = narration

	if err := r.checkExpectations(step.Expectations, postSession, narration, success); err != nil {
		result.Error = fmt.Errorf("expectation failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

// createSession creates a session from a world template
func (r *Runner) createSession(ctx context.Context, worldFile, playerID, rating string) (*session.Session, error) {
	createReq := map[string]string{}
	if worldFile != "" {
		createReq["world"] = worldFile
	}
	if playerID != "" {
		createReq["player_id"] = playerID
	}
	if rating != "" {
		createReq["rating"] = rating
	}

	createBody, err := json.Marshal(createReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.BaseURL+"/v1/sessions", bytes.NewBuffer(createBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("create session returned %d: %s", resp.StatusCode, string(body))
	}

	var created session.Session
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode created session: %w", err)
	}

	return &created, nil
}

// executeAction runs one action through the synchronous path
func (r *Runner) executeAction(ctx context.Context, sessionID uuid.UUID, action engine.Action, instruction string) (*ActionOutcome, error) {
	reqBody := map[string]interface{}{
		"action": action,
	}
	if instruction != "" {
		reqBody["instruction"] = instruction
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/sessions/%s/actions", r.BaseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create action request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send action request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("action endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	var outcome ActionOutcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		return nil, fmt.Errorf("failed to decode action outcome: %w", err)
	}
	return &outcome, nil
}

// sendCommand runs a shortcut command (look, inventory, stats)
func (r *Runner) sendCommand(ctx context.Context, sessionID uuid.UUID, command string) (string, error) {
	body, err := json.Marshal(map[string]string{"command": command})
	if err != nil {
		return "", fmt.Errorf("failed to marshal command request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/sessions/%s/actions", r.BaseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create command request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send command request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("command endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	var cmdResp struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cmdResp); err != nil {
		return "", fmt.Errorf("failed to decode command response: %w", err)
	}
	return cmdResp.Message, nil
}

// getSession retrieves the current session
func (r *Runner) getSession(ctx context.Context, sessionID uuid.UUID) (*session.Session, error) {
	return GetSession(ctx, r.Client, r.BaseURL, sessionID)
}

// checkExpectations validates the test expectations against the session and narration
func (r *Runner) checkExpectations(exp Expectations, postSession *session.Session, narration string, success bool) error {
	// Outcome success check; steps expect success unless told otherwise
	expectedSuccess := true
	if exp.Success != nil {
		expectedSuccess = *exp.Success
	}
	if success != expectedSuccess {
		return fmt.Errorf("expected success=%t, got %t", expectedSuccess, success)
	}

	player, ok := postSession.World.FindPerson(postSession.PlayerID)
	if !ok {
		return fmt.Errorf("player %s missing from session world", postSession.PlayerID)
	}

	// Location check
	if exp.Location != nil {
		if player.Location != *exp.Location {
			return fmt.Errorf("expected location %s, got %s", *exp.Location, player.Location)
		}
	}

	// Full inventory check (order independent)
	if len(exp.Inventory) > 0 {
		expected := make(map[string]bool)
		for _, item := range exp.Inventory {
			expected[item] = true
		}

		actual := make(map[string]bool)
		for _, item := range player.Inventory {
			actual[item] = true
		}

		// Check for missing items
		for expectedItem := range expected {
			if !actual[expectedItem] {
				return fmt.Errorf("expected inventory to contain '%s', but it's missing. Actual inventory: %v", expectedItem, player.Inventory)
			}
		}

		// Check for extra items
		for actualItem := range actual {
			if !expected[actualItem] {
				return fmt.Errorf("inventory contains unexpected item '%s'. Expected inventory: %v, Actual: %v", actualItem, exp.Inventory, player.Inventory)
			}
		}
	}

	// Stat checks
	if exp.Health != nil {
		if player.Health != *exp.Health {
			return fmt.Errorf("expected health %d, got %d", *exp.Health, player.Health)
		}
	}
	if exp.Energy != nil {
		if player.Energy != *exp.Energy {
			return fmt.Errorf("expected energy %d, got %d", *exp.Energy, player.Energy)
		}
	}
	if exp.MinEnergy != nil {
		if player.Energy < *exp.MinEnergy {
			return fmt.Errorf("expected energy >= %d, got %d", *exp.MinEnergy, player.Energy)
		}
	}

	// Narration content checks
	if len(exp.NarrationContains) > 0 {
		lowerNarration := strings.ToLower(narration)
		for _, expectedText := range exp.NarrationContains {
			if !strings.Contains(lowerNarration, strings.ToLower(expectedText)) {
				return fmt.Errorf("expected narration to contain '%s', but it didn't", expectedText)
			}
		}
	}

	if len(exp.NarrationNotContains) > 0 {
		lowerNarration := strings.ToLower(narration)
		for _, unexpectedText := range exp.NarrationNotContains {
			if strings.Contains(lowerNarration, strings.ToLower(unexpectedText)) {
				return fmt.Errorf("expected narration to NOT contain '%s', but it did", unexpectedText)
			}
		}
	}

	// Regex check
	if exp.NarrationRegex != "" {
		matched, err := regexp.MatchString(exp.NarrationRegex, narration)
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %w", err)
		}
		if !matched {
			return fmt.Errorf("narration didn't match regex pattern: %s", exp.NarrationRegex)
		}
	}

	// Narration length checks
	if exp.NarrationMinLength != nil {
		if len(narration) < *exp.NarrationMinLength {
			return fmt.Errorf("expected narration length >= %d, got %d", *exp.NarrationMinLength, len(narration))
		}
	}
	if exp.NarrationMaxLength != nil {
		if len(narration) > *exp.NarrationMaxLength {
			return fmt.Errorf("expected narration length <= %d, got %d", *exp.NarrationMaxLength, len(narration))
		}
	}

	if exp.Turn != nil {
		if postSession.Turn != *exp.Turn {
			return fmt.Errorf("expected turn to be %d, got %d", *exp.Turn, postSession.Turn)
		}
	}

	if exp.IsEnded != nil {
		if postSession.IsEnded != *exp.IsEnded {
			return fmt.Errorf("expected is_ended to be %t, got %t", *exp.IsEnded, postSession.IsEnded)
		}
	}

	return nil
}
