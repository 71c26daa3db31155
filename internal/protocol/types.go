package protocol

import (
	"fmt"
	"strings"
	"time"
)

// MessageKind represents the envelope type of a persisted record
type MessageKind string

const (
	MessageKindEvent MessageKind = "event"
	MessageKindAudit MessageKind = "audit"
)

// TaskState is a position in the task lifecycle
type TaskState string

const (
	StateReceived         TaskState = "RECEIVED"
	StateRouted           TaskState = "ROUTED"
	StateContextCollected TaskState = "CONTEXT_COLLECTED"
	StateProposing        TaskState = "PROPOSING"
	StateProposalReady    TaskState = "PROPOSAL_READY"
	StateWaitingApproval  TaskState = "WAITING_APPROVAL"
	StateExecuting        TaskState = "EXECUTING"
	StateCompleted        TaskState = "COMPLETED"
	StateFailed           TaskState = "FAILED"
	StateRejected         TaskState = "REJECTED"
)

// IntentKind is the classification produced by the intent router
type IntentKind string

const (
	IntentRunCommand IntentKind = "run_command"
	IntentApplyDiff  IntentKind = "apply_diff"
	IntentEdit       IntentKind = "edit"
	IntentQuestion   IntentKind = "question"
	IntentUnknown    IntentKind = "unknown"
)

// TaskIntent is supplied by the external intent router. The engine treats it
// as opaque apart from Kind, which selects a proposal strategy.
type TaskIntent struct {
	Kind       IntentKind     `json:"kind"`
	Confidence float64        `json:"confidence"`
	Summary    string         `json:"summary,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
}

// Proposal is the concrete change or command set offered for approval
type Proposal struct {
	ID               string   `json:"id"`
	Summary          string   `json:"summary,omitempty"`
	Diff             string   `json:"diff,omitempty"`
	Commands         []string `json:"commands,omitempty"`
	RequiresApproval bool     `json:"requires_approval"`
	Risk             string   `json:"risk,omitempty"`
}

// Empty reports whether the proposal carries no diff and no commands
func (p Proposal) Empty() bool {
	return strings.TrimSpace(p.Diff) == "" && len(p.Commands) == 0
}

// FinishStatus is the terminal status passed to Finish
type FinishStatus string

const (
	FinishOK       FinishStatus = "ok"
	FinishError    FinishStatus = "error"
	FinishRejected FinishStatus = "rejected"
)

// Decision is the binary outcome of the external approval gate
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// ParseDecision normalizes operator input into a Decision
func ParseDecision(input string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes", "approve", "approved":
		return DecisionApproved, nil
	case "n", "no", "reject", "rejected":
		return DecisionRejected, nil
	default:
		return "", fmt.Errorf("unrecognized decision %q (expected yes or no)", input)
	}
}

// Well-known task event types
const (
	EventTaskStarted      = "task.started"
	EventTaskStateChanged = "task.state_changed"
	EventTaskStreamChunk  = "task.stream_chunk"
	EventTaskProposal     = "task.proposal"
	EventTaskFinished     = "task.finished"
)

// TaskEvent is emitted by the task engine on every observable step
type TaskEvent struct {
	Kind       MessageKind  `json:"kind"`
	Event      string       `json:"event"`
	TaskID     string       `json:"task_id"`
	State      TaskState    `json:"state,omitempty"`
	Previous   TaskState    `json:"previous,omitempty"`
	Message    string       `json:"message,omitempty"`
	MessageID  string       `json:"message_id,omitempty"`
	Chunk      string       `json:"chunk,omitempty"`
	Request    string       `json:"request,omitempty"`
	Intent     *TaskIntent  `json:"intent,omitempty"`
	Proposal   *Proposal    `json:"proposal,omitempty"`
	Status     FinishStatus `json:"status,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Diagnostic is a structured note attached to a tool execution report
type Diagnostic struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Audit phases
const (
	AuditPhasePlan      = "plan"
	AuditPhasePreflight = "preflight"
	AuditPhaseExecute   = "execute"
	AuditPhaseRecover   = "recover"
)

// AuditRecord describes one step of a tool execution for telemetry
type AuditRecord struct {
	Kind        MessageKind  `json:"kind"`
	Phase       string       `json:"phase"`
	TaskName    string       `json:"task_name,omitempty"`
	ToolID      string       `json:"tool_id,omitempty"`
	CommandText string       `json:"command_text"`
	Preview     string       `json:"preview,omitempty"`
	Attempt     int          `json:"attempt"`
	ExitCode    *int         `json:"exit_code,omitempty"`
	Cancelled   bool         `json:"cancelled,omitempty"`
	TimedOut    bool         `json:"timed_out,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	OccurredAt  time.Time    `json:"occurred_at"`
}
