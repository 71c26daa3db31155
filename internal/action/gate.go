package action

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/iambrandonn/actuator/internal/protocol"
)

// ApprovalGate supplies the human decision for a risk-bearing proposal
type ApprovalGate interface {
	Decide(ctx context.Context, taskID string, proposal protocol.Proposal) (protocol.Decision, error)
}

// GateFunc adapts a function to ApprovalGate
type GateFunc func(ctx context.Context, taskID string, proposal protocol.Proposal) (protocol.Decision, error)

func (f GateFunc) Decide(ctx context.Context, taskID string, proposal protocol.Proposal) (protocol.Decision, error) {
	return f(ctx, taskID, proposal)
}

// AutoApprove approves everything
type AutoApprove struct{}

func (AutoApprove) Decide(context.Context, string, protocol.Proposal) (protocol.Decision, error) {
	return protocol.DecisionApproved, nil
}

// DenyAll rejects everything
type DenyAll struct{}

func (DenyAll) Decide(context.Context, string, protocol.Proposal) (protocol.Decision, error) {
	return protocol.DecisionRejected, nil
}

// PromptGate asks an operator on a terminal. Unrecognized answers are asked
// again; end of input counts as a rejection.
type PromptGate struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

// NewPromptGate creates a gate reading answers from in and writing prompts to out
func NewPromptGate(in io.Reader, out io.Writer) *PromptGate {
	return &PromptGate{In: in, Out: out}
}

func (g *PromptGate) Decide(ctx context.Context, taskID string, proposal protocol.Proposal) (protocol.Decision, error) {
	if g.reader == nil {
		g.reader = bufio.NewReader(g.In)
	}

	fmt.Fprintf(g.Out, "\nTask %s proposes:\n", taskID)
	if proposal.Summary != "" {
		fmt.Fprintf(g.Out, "  %s\n", proposal.Summary)
	}
	if proposal.Diff != "" {
		fmt.Fprintf(g.Out, "  apply a diff (%d lines)\n", strings.Count(proposal.Diff, "\n")+1)
	}
	for _, cmd := range proposal.Commands {
		fmt.Fprintf(g.Out, "  run: %s\n", cmd)
	}
	if proposal.Risk != "" {
		fmt.Fprintf(g.Out, "  risk: %s\n", proposal.Risk)
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprint(g.Out, "Approve? [y/n]: ")

		line, err := g.reader.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			decision, parseErr := protocol.ParseDecision(line)
			if parseErr == nil {
				return decision, nil
			}
			fmt.Fprintln(g.Out, parseErr)
		}
		if err == io.EOF {
			fmt.Fprintln(g.Out)
			return protocol.DecisionRejected, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to read decision: %w", err)
		}
	}
}
