package runner

import (
	"time"

	"github.com/google/uuid"
)

// TestSuite defines a complete integration test scenario.
// Can either be a regular test with Steps, or a suite that references other Cases.
type TestSuite struct {
	Name     string     `json:"name"`
	World    string     `json:"world,omitempty"`     // world template filename, e.g. "pirate_cove.json"
	PlayerID string     `json:"player_id,omitempty"` // defaults to the server's default player id
	Rating   string     `json:"rating,omitempty"`
	Steps    []TestStep `json:"steps,omitempty"` // Used for regular tests
	Cases    []string   `json:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep defines a single test interaction and its expected outcomes.
// Either Action (with optional Target and Instruction) or Command is set.
type TestStep struct {
	Name         string       `json:"name,omitempty"`
	Action       string       `json:"action,omitempty"`
	Target       string       `json:"target,omitempty"`
	Instruction  string       `json:"instruction,omitempty"`
	Command      string       `json:"command,omitempty"`
	Expectations Expectations `json:"expect"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	// Outcome and session properties - aligned with pkg/session
	Success   *bool    `json:"success,omitempty"`   // expected outcome success; defaults to true
	Location  *string  `json:"location,omitempty"`  // player location after the step
	Inventory []string `json:"inventory,omitempty"` // full inventory contents (order independent)
	Turn      *int     `json:"turn,omitempty"`      // total turn count
	Health    *int     `json:"health,omitempty"`
	Energy    *int     `json:"energy,omitempty"`
	MinEnergy *int     `json:"min_energy,omitempty"` // lower bound when exact energy is awkward
	IsEnded   *bool    `json:"is_ended,omitempty"`

	// Narration analysis
	NarrationContains    []string `json:"narration_contains,omitempty"`
	NarrationNotContains []string `json:"narration_not_contains,omitempty"`
	NarrationRegex       string   `json:"narration_regex,omitempty"`
	NarrationMinLength   *int     `json:"narration_min_length,omitempty"`
	NarrationMaxLength   *int     `json:"narration_max_length,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName  string
	StepName  string
	Success   bool
	Error     error
	Duration  time.Duration
	Narration string
	RequestID string // set when the step ran through the async queue
	IsCommand bool   // true for shortcut command steps
}

// TestJob represents a test suite to be executed by a worker
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Error    error
	Duration time.Duration
	Session  uuid.UUID // ID of the session used for this test
}
