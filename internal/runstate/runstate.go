// Package runstate persists the state of the current exec run so an
// interrupted run can be recognized later.
package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/iambrandonn/actuator/internal/fsutil"
	"github.com/iambrandonn/actuator/internal/protocol"
)

// Status represents the overall state of a run
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRejected  Status = "rejected"
	StatusAborted   Status = "aborted"
)

// RunState is the persisted state of one run
type RunState struct {
	RunID       string             `json:"run_id"`
	Status      Status             `json:"status"`
	TaskID      string             `json:"task_id"`
	Request     string             `json:"request"`
	TaskState   protocol.TaskState `json:"task_state,omitempty"`
	ProposalID  string             `json:"proposal_id,omitempty"`
	EventLog    string             `json:"event_log,omitempty"`
	ExitCode    *int               `json:"exit_code,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// NewRunState creates a running state for taskID
func NewRunState(runID, taskID, request string) *RunState {
	return &RunState{
		RunID:     runID,
		Status:    StatusRunning,
		TaskID:    taskID,
		Request:   request,
		StartedAt: time.Now().UTC(),
	}
}

// SaveRunState writes run state to disk atomically
func SaveRunState(state *RunState, path string) error {
	return fsutil.AtomicWriteJSON(path, state)
}

// LoadRunState reads run state from disk
func LoadRunState(path string) (*RunState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run state: %w", err)
	}

	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run state: %w", err)
	}
	return &state, nil
}

// GetRunStatePath returns the standard path for run state under a state directory
func GetRunStatePath(stateDir string) string {
	return filepath.Join(stateDir, "state", "run.json")
}

// RecordEvent tracks the task state and proposal carried by evt
func (s *RunState) RecordEvent(evt protocol.TaskEvent) {
	switch evt.Event {
	case protocol.EventTaskStateChanged:
		s.TaskState = evt.State
	case protocol.EventTaskProposal:
		if evt.Proposal != nil {
			s.ProposalID = evt.Proposal.ID
		}
	}
}

// Finish maps a task finish status onto the run and stamps CompletedAt
func (s *RunState) Finish(status protocol.FinishStatus) {
	switch status {
	case protocol.FinishOK:
		s.Status = StatusCompleted
	case protocol.FinishRejected:
		s.Status = StatusRejected
	default:
		s.Status = StatusFailed
	}
	s.complete()
}

// MarkAborted marks a run that was interrupted before its task finished
func (s *RunState) MarkAborted() {
	s.Status = StatusAborted
	s.complete()
}

// IsRunning reports whether the run has not reached an end
func (s *RunState) IsRunning() bool {
	return s.Status == StatusRunning
}

func (s *RunState) complete() {
	now := time.Now().UTC()
	s.CompletedAt = &now
}
