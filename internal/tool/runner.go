package tool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/iambrandonn/actuator/internal/protocol"
)

// DefaultTimeout bounds a single execution when Options.Timeout is zero
const DefaultTimeout = 10 * time.Minute

// AuditFunc receives one record per step of an execution. Its errors and
// panics are logged and otherwise ignored.
type AuditFunc func(protocol.AuditRecord) error

// Options configure one RunCommand call
type Options struct {
	Timeout   time.Duration
	TailLines int
	// RecoveryEnabled nil means enabled
	RecoveryEnabled *bool
	TaskName        string
	Env             []string
	Audit           AuditFunc
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.TailLines <= 0 {
		o.TailLines = DefaultTailLines
	}
	return o
}

func (o Options) recoveryEnabled() bool {
	return o.RecoveryEnabled == nil || *o.RecoveryEnabled
}

// Report is the outcome of RunCommand. When recovery ran, the fields other
// than Diagnostics describe the recovered attempt.
type Report struct {
	ToolID          string                `json:"tool_id,omitempty"`
	Preview         string                `json:"preview,omitempty"`
	ExitCode        *int                  `json:"exit_code"`
	Cancelled       bool                  `json:"cancelled,omitempty"`
	TimedOut        bool                  `json:"timed_out,omitempty"`
	Output          string                `json:"output,omitempty"`
	Diagnostics     []protocol.Diagnostic `json:"diagnostics,omitempty"`
	RecoveryApplied bool                  `json:"recovery_applied,omitempty"`
	Attempts        int                   `json:"attempts"`
	Duration        time.Duration         `json:"duration"`
}

// Success reports a zero exit that was neither cancelled nor timed out
func (r Report) Success() bool {
	return r.ExitCode != nil && *r.ExitCode == 0 && !r.Cancelled && !r.TimedOut
}

// Runner executes command text through a freshly built registry
type Runner struct {
	logger *slog.Logger

	// NewRegistry builds the registry for each call. Defaults to DefaultRegistry.
	NewRegistry func() *Registry
}

// NewRunner creates a Runner. A nil logger discards output.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{logger: logger, NewRegistry: DefaultRegistry}
}

// RunCommand plans commandText, runs preflight and execution, and makes at
// most one recovery attempt if the tool proposes one. Failures are reported
// in the Report, never as an error.
func (r *Runner) RunCommand(ctx context.Context, commandText, dir string, opts Options) Report {
	start := time.Now()
	opts = opts.withDefaults()
	registry := r.NewRegistry()

	report := r.runOnce(ctx, registry, commandText, dir, opts, 1)
	report.Duration = time.Since(start)
	if report.Success() || report.tool == nil || report.Cancelled || !opts.recoveryEnabled() {
		return report.Report
	}

	recoverer, ok := report.tool.(Recoverer)
	if !ok {
		return report.Report
	}
	recovery, ok := recoverer.Recover(report.ec, report.plan, report.result)
	if !ok {
		return report.Report
	}

	r.logger.Info("attempting recovery",
		"task", opts.TaskName,
		"command", commandText,
		"next", recovery.NextCommandText,
		"reason", recovery.Reason)

	if _, _, ok := registry.Plan(recovery.NextCommandText); !ok {
		diag := protocol.Diagnostic{
			Code:    CodeRecoverUnmatched,
			Message: fmt.Sprintf("recovered command %q matches no tool", recovery.NextCommandText),
		}
		r.audit(opts, protocol.AuditRecord{
			Phase:       protocol.AuditPhaseRecover,
			ToolID:      report.ToolID,
			CommandText: recovery.NextCommandText,
			Attempt:     2,
			Diagnostics: []protocol.Diagnostic{diag},
		})
		report.Diagnostics = append(report.Diagnostics, diag)
		return report.Report
	}

	applied := protocol.Diagnostic{
		Code:    CodeRecoverApplied,
		Message: fmt.Sprintf("%s: %s", recovery.Reason, recovery.NextCommandText),
	}
	r.audit(opts, protocol.AuditRecord{
		Phase:       protocol.AuditPhaseRecover,
		ToolID:      report.ToolID,
		CommandText: recovery.NextCommandText,
		Attempt:     2,
		Diagnostics: []protocol.Diagnostic{applied},
	})

	second := r.runOnce(ctx, registry, recovery.NextCommandText, dir, opts, 2)

	final := second.Report
	final.Diagnostics = append(append(append([]protocol.Diagnostic{}, report.Diagnostics...), applied), second.Diagnostics...)
	final.Output = fmt.Sprintf("[recovery] %s: %s\n%s", recovery.Reason, recovery.NextCommandText, second.Output)
	final.RecoveryApplied = true
	final.Attempts = 2
	final.Duration = time.Since(start)
	return final
}

// attempt is a report plus what recovery needs to know about how it was produced
type attempt struct {
	Report
	tool   Tool
	plan   Plan
	ec     ExecContext
	result Result
}

func (r *Runner) runOnce(ctx context.Context, registry *Registry, commandText, dir string, opts Options, n int) attempt {
	ec := ExecContext{
		Ctx:         ctx,
		Dir:         dir,
		CommandText: commandText,
		TaskName:    opts.TaskName,
		Timeout:     opts.Timeout,
		TailLines:   opts.TailLines,
		Env:         opts.Env,
	}

	t, plan, ok := registry.Plan(commandText)
	if !ok {
		diag := protocol.Diagnostic{
			Code:    CodePlanUnmatched,
			Message: fmt.Sprintf("no tool accepts %q", commandText),
		}
		r.audit(opts, protocol.AuditRecord{
			Phase:       protocol.AuditPhasePlan,
			CommandText: commandText,
			Attempt:     n,
			Diagnostics: []protocol.Diagnostic{diag},
		})
		r.logger.Warn("command matched no tool", "task", opts.TaskName, "command", commandText)
		return attempt{Report: Report{
			ExitCode:    intPtr(1),
			Diagnostics: []protocol.Diagnostic{diag},
			Attempts:    n,
		}}
	}

	r.audit(opts, protocol.AuditRecord{
		Phase:       protocol.AuditPhasePlan,
		ToolID:      plan.ToolID,
		CommandText: commandText,
		Preview:     plan.Preview,
		Attempt:     n,
	})

	rep := Report{ToolID: plan.ToolID, Preview: plan.Preview, Attempts: n}

	if pf, ok := t.(Preflighter); ok {
		pre := pf.Preflight(ec, plan)
		r.audit(opts, protocol.AuditRecord{
			Phase:       protocol.AuditPhasePreflight,
			ToolID:      plan.ToolID,
			CommandText: commandText,
			Preview:     plan.Preview,
			Attempt:     n,
			Diagnostics: pre.Diagnostics,
		})
		if !pre.OK {
			rep.ExitCode = intPtr(1)
			rep.Diagnostics = append(slices.Clone(pre.Diagnostics), protocol.Diagnostic{
				Code:    CodePreflightFailed,
				Message: fmt.Sprintf("preflight for %s failed", plan.ToolID),
			})
			r.logger.Warn("preflight failed", "task", opts.TaskName, "tool", plan.ToolID, "command", commandText)
			return attempt{Report: rep, plan: plan, ec: ec}
		}
		rep.Diagnostics = append(rep.Diagnostics, pre.Diagnostics...)
		if pre.Input != nil {
			plan.Input = pre.Input
		}
	}

	r.logger.Debug("executing command", "task", opts.TaskName, "tool", plan.ToolID, "preview", plan.Preview, "attempt", n)

	res := t.Execute(ec, plan)
	rep.ExitCode = res.ExitCode
	rep.Cancelled = res.Cancelled
	rep.TimedOut = res.TimedOut
	rep.Output = res.Output
	if res.SpawnErr != nil {
		rep.ExitCode = nil
		rep.Diagnostics = append(rep.Diagnostics, protocol.Diagnostic{
			Code:    CodeSpawnFailed,
			Message: res.SpawnErr.Error(),
		})
	}

	r.audit(opts, protocol.AuditRecord{
		Phase:       protocol.AuditPhaseExecute,
		ToolID:      plan.ToolID,
		CommandText: commandText,
		Preview:     plan.Preview,
		Attempt:     n,
		ExitCode:    rep.ExitCode,
		Cancelled:   rep.Cancelled,
		TimedOut:    rep.TimedOut,
		Diagnostics: rep.Diagnostics,
	})

	level := slog.LevelInfo
	if !rep.Success() {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "command finished",
		"task", opts.TaskName,
		"tool", plan.ToolID,
		"exit_code", formatExitCode(rep.ExitCode),
		"timed_out", rep.TimedOut,
		"cancelled", rep.Cancelled)

	return attempt{Report: rep, tool: t, plan: plan, ec: ec, result: res}
}

// audit delivers rec to the hook, isolating the caller from its failures
func (r *Runner) audit(opts Options, rec protocol.AuditRecord) {
	if opts.Audit == nil {
		return
	}
	rec.Kind = protocol.MessageKindAudit
	rec.TaskName = opts.TaskName
	rec.OccurredAt = time.Now().UTC()

	defer func() {
		if p := recover(); p != nil {
			r.logger.Warn("audit hook panicked", "phase", rec.Phase, "panic", p)
		}
	}()
	if err := opts.Audit(rec); err != nil {
		r.logger.Warn("audit hook failed", "phase", rec.Phase, "error", err)
	}
}

func formatExitCode(code *int) string {
	if code == nil {
		return "none"
	}
	return fmt.Sprint(*code)
}
