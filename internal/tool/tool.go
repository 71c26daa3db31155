// Package tool classifies a command string to the narrowest tool that can run
// it, executes it under a timeout with bounded output capture, and makes at
// most one recovery attempt when it fails.
package tool

import (
	"context"
	"time"

	"github.com/iambrandonn/actuator/internal/protocol"
)

// Diagnostic codes attached to reports
const (
	CodePlanUnmatched    = "tool.plan.unmatched"
	CodePreflightFailed  = "tool.preflight.failed"
	CodeRecoverUnmatched = "tool.recover.unmatched"
	CodeRecoverApplied   = "tool.recover.applied"
	CodeSpawnFailed      = "tool.spawn.failed"
	CodeExecutableAbsent = "tool.preflight.executable_missing"
	CodeArtifactAbsent   = "tool.preflight.artifact_missing"
)

// Tool is one executor. Match must be pure: it only inspects the text.
type Tool interface {
	ID() string
	Match(commandText string) (Plan, bool)
	Execute(ec ExecContext, plan Plan) Result
}

// Preflighter is implemented by tools that validate prerequisites before
// anything is spawned. A preflight may replace the plan input.
type Preflighter interface {
	Preflight(ec ExecContext, plan Plan) PreflightResult
}

// Recoverer is implemented by tools that can suggest a replacement command
// after a failure.
type Recoverer interface {
	Recover(ec ExecContext, plan Plan, res Result) (Recovery, bool)
}

// Plan is a matched command. It is not modified after Match returns.
type Plan struct {
	ToolID  string
	Input   any
	Preview string
}

// ExecContext carries per-run settings to a tool
type ExecContext struct {
	Ctx         context.Context
	Dir         string
	CommandText string
	TaskName    string
	Timeout     time.Duration
	TailLines   int
	Env         []string
}

func (ec ExecContext) context() context.Context {
	if ec.Ctx == nil {
		return context.Background()
	}
	return ec.Ctx
}

// Result is the outcome of one execution. ExitCode is nil when the process
// never produced one (killed, or failed to start).
type Result struct {
	ExitCode  *int
	Cancelled bool
	TimedOut  bool
	Output    string
	SpawnErr  error
}

// Success reports a zero exit that was neither cancelled nor timed out
func (r Result) Success() bool {
	return r.ExitCode != nil && *r.ExitCode == 0 && !r.Cancelled && !r.TimedOut
}

// PreflightResult is the outcome of a Preflight call. A nil Input keeps the
// plan's input unchanged.
type PreflightResult struct {
	OK          bool
	Input       any
	Diagnostics []protocol.Diagnostic
}

// Recovery is a replacement command proposed after a failure
type Recovery struct {
	Reason          string
	NextCommandText string
}

func intPtr(v int) *int { return &v }
