// Package action drives a task from a ready proposal to a terminal state:
// it asks the approval gate when required, applies the proposed diff and
// runs the proposed commands.
package action

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/iambrandonn/actuator/internal/diff"
	"github.com/iambrandonn/actuator/internal/protocol"
	"github.com/iambrandonn/actuator/internal/task"
	"github.com/iambrandonn/actuator/internal/tool"
)

// ErrNoGate is reported when a proposal needs approval and no gate is set
var ErrNoGate = errors.New("approval required but no gate configured")

// Outcome describes what Execute did. Err carries the execution failure
// (diff, command or gate) when Status is FinishError.
type Outcome struct {
	Status       protocol.FinishStatus
	Decision     protocol.Decision
	ChangedPaths []string
	Reports      []tool.Report
	Err          error
}

// Executor wires the task engine to the diff engine and the tool runner
type Executor struct {
	Engine  *task.Engine
	Applier *diff.Applier
	Runner  *tool.Runner
	Gate    ApprovalGate
	Logger  *slog.Logger

	// Root is the workspace root for diffs and the working directory for commands
	Root string
	// CommandOptions are passed to every RunCommand; TaskName is set per task
	CommandOptions tool.Options
}

func (x *Executor) logger() *slog.Logger {
	if x.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return x.Logger
}

// Route moves a freshly received task to CONTEXT_COLLECTED
func (x *Executor) Route(taskID, message string) error {
	if err := x.Engine.UpdateState(taskID, protocol.StateRouted, message); err != nil {
		return err
	}
	return x.Engine.UpdateState(taskID, protocol.StateContextCollected, "")
}

// Propose publishes proposal and moves the task to PROPOSAL_READY. A missing
// proposal ID is filled in.
func (x *Executor) Propose(taskID string, proposal protocol.Proposal) (protocol.Proposal, error) {
	if proposal.ID == "" {
		proposal.ID = uuid.New().String()
	}
	if err := x.Engine.UpdateState(taskID, protocol.StateProposing, ""); err != nil {
		return proposal, err
	}
	if err := x.Engine.EmitProposal(taskID, proposal); err != nil {
		return proposal, err
	}
	if err := x.Engine.UpdateState(taskID, protocol.StateProposalReady, proposal.Summary); err != nil {
		return proposal, err
	}
	return proposal, nil
}

// Execute carries a PROPOSAL_READY task to COMPLETED, FAILED or REJECTED and
// finishes it. The returned error is only for lifecycle problems (unknown
// task, invalid transition, event emission); execution failures are reported
// in the Outcome.
func (x *Executor) Execute(ctx context.Context, taskID string, proposal protocol.Proposal) (Outcome, error) {
	log := x.logger().With("task_id", taskID, "proposal_id", proposal.ID)

	if proposal.Empty() {
		if err := x.Engine.UpdateState(taskID, protocol.StateCompleted, "nothing to execute"); err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: protocol.FinishOK}, x.Engine.Finish(taskID, protocol.FinishOK, "nothing to execute")
	}

	var out Outcome
	if proposal.RequiresApproval {
		if err := x.Engine.UpdateState(taskID, protocol.StateWaitingApproval, "awaiting approval"); err != nil {
			return out, err
		}

		decision, err := x.decide(ctx, taskID, proposal)
		if err != nil {
			log.Warn("approval gate failed", "error", err)
			return x.fail(taskID, out, fmt.Errorf("approval failed: %w", err))
		}
		out.Decision = decision
		if decision != protocol.DecisionApproved {
			log.Info("proposal rejected")
			if err := x.Engine.UpdateState(taskID, protocol.StateRejected, "rejected by operator"); err != nil {
				return out, err
			}
			out.Status = protocol.FinishRejected
			return out, x.Engine.Finish(taskID, protocol.FinishRejected, "rejected by operator")
		}
	}

	if err := x.Engine.UpdateState(taskID, protocol.StateExecuting, ""); err != nil {
		return out, err
	}

	if strings.TrimSpace(proposal.Diff) != "" {
		changed, err := x.Applier.Apply(ctx, proposal.Diff, x.Root)
		if err != nil {
			log.Warn("diff apply failed", "error", err)
			return x.fail(taskID, out, fmt.Errorf("failed to apply diff: %w", err))
		}
		out.ChangedPaths = changed
		log.Info("diff applied", "files", len(changed))
	}

	opts := x.CommandOptions
	opts.TaskName = taskID
	for i, cmd := range proposal.Commands {
		report := x.Runner.RunCommand(ctx, cmd, x.Root, opts)
		out.Reports = append(out.Reports, report)

		if report.Output != "" {
			messageID := fmt.Sprintf("%s/cmd-%d", proposal.ID, i+1)
			if err := x.Engine.EmitStreamChunk(taskID, messageID, report.Output); err != nil {
				return out, err
			}
		}

		if !report.Success() {
			return x.fail(taskID, out, &CommandError{Command: cmd, Report: report})
		}
	}

	if err := x.Engine.UpdateState(taskID, protocol.StateCompleted, completionMessage(out)); err != nil {
		return out, err
	}
	out.Status = protocol.FinishOK
	return out, x.Engine.Finish(taskID, protocol.FinishOK, completionMessage(out))
}

func (x *Executor) decide(ctx context.Context, taskID string, proposal protocol.Proposal) (protocol.Decision, error) {
	if x.Gate == nil {
		return "", ErrNoGate
	}
	return x.Gate.Decide(ctx, taskID, proposal)
}

func (x *Executor) fail(taskID string, out Outcome, cause error) (Outcome, error) {
	out.Status = protocol.FinishError
	out.Err = cause
	msg := cause.Error()
	if err := x.Engine.UpdateState(taskID, protocol.StateFailed, msg); err != nil {
		return out, err
	}
	return out, x.Engine.Finish(taskID, protocol.FinishError, msg)
}

func completionMessage(out Outcome) string {
	return fmt.Sprintf("%d file(s) changed, %d command(s) run", len(out.ChangedPaths), len(out.Reports))
}

// CommandError reports a command that did not succeed
type CommandError struct {
	Command string
	Report  tool.Report
}

func (e *CommandError) Error() string {
	switch {
	case e.Report.ToolID == "":
		return fmt.Sprintf("command %q matched no tool", e.Command)
	case e.Report.TimedOut:
		return fmt.Sprintf("command %q timed out", e.Command)
	case e.Report.Cancelled:
		return fmt.Sprintf("command %q was cancelled", e.Command)
	case e.Report.ExitCode == nil:
		if len(e.Report.Diagnostics) > 0 {
			d := e.Report.Diagnostics[len(e.Report.Diagnostics)-1]
			return fmt.Sprintf("command %q did not run: %s", e.Command, d.Message)
		}
		return fmt.Sprintf("command %q did not run", e.Command)
	default:
		return fmt.Sprintf("command %q exited with code %d", e.Command, *e.Report.ExitCode)
	}
}
