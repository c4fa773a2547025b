// Package proofjob defines the proof-job model shared by the gateway, the
// queue, and the worker.
package proofjob

import (
	"fmt"
	"time"
)

// Submission bounds enforced at the gateway before a job id is allocated.
const (
	AgentIDMaxLen = 200
	ReturnsMinLen = 1
	ReturnsMaxLen = 365
)

// State is the raw job state kept in the result store.
type State string

const (
	StatePending    State = "PENDING"
	StateProcessing State = "PROCESSING"
	StateSuccess    State = "SUCCESS"
	StateFailure    State = "FAILURE"
)

// Terminal reports whether the state can no longer change.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// Execution modes recorded on a result. Fallback marks a real-mode job that
// was re-executed with the simulated pipeline after its artifacts were found
// missing.
const (
	ModeReal              = "real"
	ModeSimulated         = "simulated"
	ModeSimulatedFallback = "simulated (fallback)"
)

// Request is the job payload dispatched over the broker.
type Request struct {
	JobID   string    `json:"job_id"`
	AgentID string    `json:"agent_id"`
	Returns []float64 `json:"returns"`
}

// Validate checks submission bounds. It is called before any id allocation
// or dispatch side effect.
func Validate(agentID string, returns []float64) error {
	if len(agentID) < 1 || len(agentID) > AgentIDMaxLen {
		return fmt.Errorf("agent_id length must be 1..%d, got %d", AgentIDMaxLen, len(agentID))
	}
	if len(returns) < ReturnsMinLen || len(returns) > ReturnsMaxLen {
		return fmt.Errorf("returns length must be %d..%d, got %d", ReturnsMinLen, ReturnsMaxLen, len(returns))
	}
	return nil
}

// Result is the proof payload attached to a successful job.
type Result struct {
	JobID       string   `json:"job_id"`
	AgentID     string   `json:"agent_id"`
	SharpeRatio float64  `json:"sharpe_ratio"`
	ProofHex    string   `json:"proof_hex"`
	Instances   []string `json:"instances"`
	Verified    bool     `json:"verified"`
	ProvingTime float64  `json:"proving_time"`
	Mode        string   `json:"mode"`
}

// Record is the stored per-job state. The executor is its sole writer, the
// gateway its sole reader.
type Record struct {
	JobID     string    `json:"job_id"`
	State     State     `json:"state"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
