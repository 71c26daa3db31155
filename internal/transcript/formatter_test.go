package transcript

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iambrandonn/actuator/internal/protocol"
	"github.com/iambrandonn/actuator/internal/tool"
)

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name     string
		event    *protocol.TaskEvent
		expected string
	}{
		{
			name: "started with intent",
			event: &protocol.TaskEvent{
				Event:   protocol.EventTaskStarted,
				TaskID:  "task-1",
				Request: "run the tests",
				Intent:  &protocol.TaskIntent{Kind: protocol.IntentRunCommand},
			},
			expected: `[task-1] task.started: "run the tests" (intent: run_command)`,
		},
		{
			name:     "started without intent",
			event:    &protocol.TaskEvent{Event: protocol.EventTaskStarted, TaskID: "task-1", Request: "hi"},
			expected: `[task-1] task.started: "hi"`,
		},
		{
			name:     "initial state",
			event:    &protocol.TaskEvent{Event: protocol.EventTaskStateChanged, TaskID: "task-1", State: protocol.StateReceived},
			expected: "[task-1] task.state_changed: RECEIVED",
		},
		{
			name: "transition with message",
			event: &protocol.TaskEvent{
				Event:    protocol.EventTaskStateChanged,
				TaskID:   "task-1",
				Previous: protocol.StateProposalReady,
				State:    protocol.StateWaitingApproval,
				Message:  "awaiting approval",
			},
			expected: "[task-1] task.state_changed: PROPOSAL_READY→WAITING_APPROVAL: awaiting approval",
		},
		{
			name: "stream chunk",
			event: &protocol.TaskEvent{
				Event:     protocol.EventTaskStreamChunk,
				TaskID:    "task-1",
				MessageID: "p1/cmd-1",
				Chunk:     strings.Repeat("x", 2048),
			},
			expected: "[task-1] task.stream_chunk: p1/cmd-1 (2.0 KiB)",
		},
		{
			name: "proposal",
			event: &protocol.TaskEvent{
				Event:  protocol.EventTaskProposal,
				TaskID: "task-1",
				Proposal: &protocol.Proposal{
					ID:               "p1",
					Summary:          "add notes",
					Diff:             "--- /dev/null\n+++ b/n\n",
					Commands:         []string{"make", "make test"},
					RequiresApproval: true,
				},
			},
			expected: "[task-1] task.proposal: p1 add notes [diff, 2 command(s), approval required]",
		},
		{
			name:     "proposal with nothing to do",
			event:    &protocol.TaskEvent{Event: protocol.EventTaskProposal, TaskID: "task-1", Proposal: &protocol.Proposal{ID: "p2"}},
			expected: "[task-1] task.proposal: p2",
		},
		{
			name:     "finished",
			event:    &protocol.TaskEvent{Event: protocol.EventTaskFinished, TaskID: "task-1", Status: protocol.FinishRejected, Message: "rejected by operator"},
			expected: "[task-1] task.finished: rejected (rejected by operator)",
		},
		{
			name:     "unknown event",
			event:    &protocol.TaskEvent{Event: "task.other", TaskID: "task-1"},
			expected: "[task-1] task.other",
		},
	}

	formatter := NewFormatter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, formatter.FormatEvent(tt.event))
		})
	}
}

func TestFormatAudit(t *testing.T) {
	zero, three := 0, 3
	tests := []struct {
		name     string
		record   *protocol.AuditRecord
		expected string
	}{
		{
			name:     "unmatched plan",
			record:   &protocol.AuditRecord{Phase: protocol.AuditPhasePlan, CommandText: "frob", Attempt: 1, Diagnostics: []protocol.Diagnostic{{Code: tool.CodePlanUnmatched}}},
			expected: "[audit:plan] frob (attempt 1) tool.plan.unmatched",
		},
		{
			name:     "successful execute",
			record:   &protocol.AuditRecord{Phase: protocol.AuditPhaseExecute, ToolID: "git", CommandText: "git status", Attempt: 1, ExitCode: &zero},
			expected: "[audit:execute] git: git status (attempt 1, exit 0)",
		},
		{
			name:     "failed execute",
			record:   &protocol.AuditRecord{Phase: protocol.AuditPhaseExecute, ToolID: "shell", CommandText: "make", Attempt: 2, ExitCode: &three},
			expected: "[audit:execute] shell: make (attempt 2, exit 3)",
		},
		{
			name:     "timed out",
			record:   &protocol.AuditRecord{Phase: protocol.AuditPhaseExecute, ToolID: "shell", CommandText: "sleep 9", Attempt: 1, TimedOut: true},
			expected: "[audit:execute] shell: sleep 9 (attempt 1, timed out)",
		},
		{
			name:     "cancelled",
			record:   &protocol.AuditRecord{Phase: protocol.AuditPhaseExecute, ToolID: "shell", CommandText: "sleep 9", Attempt: 1, Cancelled: true},
			expected: "[audit:execute] shell: sleep 9 (attempt 1, cancelled)",
		},
	}

	formatter := NewFormatter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, formatter.FormatAudit(tt.record))
		})
	}
}

func TestFormatReport(t *testing.T) {
	zero, one := 0, 1
	tests := []struct {
		name     string
		report   tool.Report
		expected string
	}{
		{
			name:     "success",
			report:   tool.Report{ToolID: "git", ExitCode: &zero, Attempts: 1, Duration: 1234567 * time.Nanosecond},
			expected: "$ cmd [git] ok in 1ms",
		},
		{
			name: "unmatched",
			report: tool.Report{
				ExitCode:    &one,
				Attempts:    1,
				Diagnostics: []protocol.Diagnostic{{Code: tool.CodePlanUnmatched, Message: `no tool accepts "cmd"`}},
			},
			expected: "$ cmd [none] exit 1\n  tool.plan.unmatched: no tool accepts \"cmd\"",
		},
		{
			name:     "recovered",
			report:   tool.Report{ToolID: "artifact-install", ExitCode: &zero, Attempts: 2},
			expected: "$ cmd [artifact-install] ok after 2 attempts",
		},
		{
			name:     "spawn failure",
			report:   tool.Report{ToolID: "shell", Attempts: 1},
			expected: "$ cmd [shell] did not run",
		},
		{
			name:     "timed out",
			report:   tool.Report{ToolID: "shell", Attempts: 1, TimedOut: true, ExitCode: &one},
			expected: "$ cmd [shell] timed out",
		},
	}

	formatter := NewFormatter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, formatter.FormatReport("cmd", tt.report))
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name     string
		bytes    int64
		expected string
	}{
		{
			name:     "bytes",
			bytes:    512,
			expected: "512 B",
		},
		{
			name:     "kilobytes",
			bytes:    1432,
			expected: "1.4 KiB",
		},
		{
			name:     "kilobytes rounded",
			bytes:    2048,
			expected: "2.0 KiB",
		},
		{
			name:     "megabytes",
			bytes:    1536 * 1024,
			expected: "1.5 MiB",
		},
		{
			name:     "gigabytes",
			bytes:    2 * 1024 * 1024 * 1024,
			expected: "2.0 GiB",
		},
		{
			name:     "zero bytes",
			bytes:    0,
			expected: "0 B",
		},
		{
			name:     "1 byte",
			bytes:    1,
			expected: "1 B",
		},
		{
			name:     "exactly 1 KiB",
			bytes:    1024,
			expected: "1.0 KiB",
		},
		{
			name:     "exactly 1 MiB",
			bytes:    1024 * 1024,
			expected: "1.0 MiB",
		},
		{
			name:     "exactly 1 GiB",
			bytes:    1024 * 1024 * 1024,
			expected: "1.0 GiB",
		},
	}

	formatter := NewFormatter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatter.formatSize(tt.bytes)
			require.Equal(t, tt.expected, result)
		})
	}
}
