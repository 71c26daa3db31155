package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iambrandonn/actuator/internal/action"
	"github.com/iambrandonn/actuator/internal/config"
	"github.com/iambrandonn/actuator/internal/diff"
	"github.com/iambrandonn/actuator/internal/eventlog"
	"github.com/iambrandonn/actuator/internal/protocol"
	"github.com/iambrandonn/actuator/internal/receipt"
	"github.com/iambrandonn/actuator/internal/runstate"
	"github.com/iambrandonn/actuator/internal/task"
	"github.com/iambrandonn/actuator/internal/tool"
	"github.com/iambrandonn/actuator/internal/transcript"
	"github.com/iambrandonn/actuator/internal/workspace"
)

var execCmd = &cobra.Command{
	Use:   "exec [flags] [--] <command...>",
	Short: "Run a proposal through the task lifecycle",
	Long: `Run a proposal through the task lifecycle.

The proposal is an optional diff (--diff) followed by the command given as
arguments. The command is dispatched to the first matching tool (artifact
installer, git, shell), and a failing shell command gets one recovery
attempt. Approval follows approval.mode in the config unless --yes is given.

Every lifecycle event and tool audit record is appended to
.actuator/events/run-<id>.ndjson.`,
	RunE: runExec,
}

func init() {
	execCmd.Flags().String("root", "", "Workspace root (default: from config, else current directory)")
	execCmd.Flags().String("diff", "", "Unified diff to apply before the command (file path or - for stdin)")
	execCmd.Flags().Duration("timeout", 0, "Per-command timeout (default: from config)")
	execCmd.Flags().Int("tail", 0, "Output lines kept per command (default: from config)")
	execCmd.Flags().Bool("no-recover", false, "Disable the recovery attempt after a failed command")
	execCmd.Flags().BoolP("yes", "y", false, "Approve the proposal without prompting")
	execCmd.Flags().String("summary", "", "Proposal summary shown at the approval prompt")
}

// ExitRejected is the exit code of a proposal the operator declined. It is
// sysexits EX_NOPERM, which commands rarely return themselves.
const ExitRejected = 77

// ExitError carries a process exit code out of a command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func runExec(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}

	gate, err := selectGate(cmd, e.cfg)
	if err != nil {
		return err
	}

	proposal, err := buildProposal(cmd, args)
	if err != nil {
		return err
	}

	if err := workspace.Initialize(e.root); err != nil {
		return err
	}

	runID := uuid.New().String()
	evtLog, err := eventlog.NewEventLog(workspace.EventLogPath(e.root, runID), e.logger)
	if err != nil {
		return err
	}
	defer evtLog.Close()

	statePath := runstate.GetRunStatePath(workspace.Dir(e.root))
	request := strings.Join(args, " ")
	state := runstate.NewRunState(runID, "", request)
	state.EventLog = evtLog.Path()

	rec := &recorder{
		log:       evtLog,
		state:     state,
		statePath: statePath,
		formatter: transcript.NewFormatter(),
		out:       cmd.ErrOrStderr(),
	}
	if err := runstate.SaveRunState(state, statePath); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	engine := task.NewEngine(rec.emit,
		task.WithLogger(e.logger),
		task.WithRetention(e.cfg.Tasks.Retention()),
	)
	stopSweeper := engine.StartSweeper(ctx, e.cfg.Tasks.SweepInterval())
	defer stopSweeper()

	opts, err := commandOptions(cmd, e.cfg)
	if err != nil {
		return err
	}
	opts.Audit = evtLog.Audit

	x := &action.Executor{
		Engine:         engine,
		Applier:        diff.NewApplier(e.logger),
		Runner:         tool.NewRunner(e.logger),
		Gate:           gate,
		Logger:         e.logger,
		Root:           e.root,
		CommandOptions: opts,
	}

	intent := protocol.TaskIntent{Kind: protocol.IntentRunCommand, Confidence: 1, Summary: request}
	if len(proposal.Commands) == 0 {
		intent.Kind = protocol.IntentApplyDiff
	}

	t, err := engine.CreateTask(request, intent)
	if err != nil {
		return err
	}
	if err := x.Route(t.ID, string(intent.Kind)); err != nil {
		return err
	}
	proposal, err = x.Propose(t.ID, proposal)
	if err != nil {
		return err
	}

	out, err := x.Execute(ctx, t.ID, proposal)
	if err != nil {
		return err
	}

	formatter := transcript.NewFormatter()
	for i, report := range out.Reports {
		fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatReport(proposal.Commands[i], report))
		if report.Output != "" {
			fmt.Fprint(cmd.OutOrStdout(), ensureNewline(report.Output))
		}
	}

	if len(out.ChangedPaths) > 0 {
		if err := writeExecReceipt(e.root, t.ID, proposal, out); err != nil {
			e.logger.Warn("failed to write receipt", "error", err)
		}
	}

	return rec.finish(out)
}

func buildProposal(cmd *cobra.Command, args []string) (protocol.Proposal, error) {
	var p protocol.Proposal

	diffArg, _ := cmd.Flags().GetString("diff")
	if diffArg != "" {
		text, err := readInput(cmd, diffArg)
		if err != nil {
			return p, err
		}
		p.Diff = text
	}

	if command := strings.TrimSpace(strings.Join(args, " ")); command != "" {
		p.Commands = []string{command}
	}

	if p.Empty() {
		return p, errors.New("nothing to execute: give a command or --diff")
	}

	p.Summary, _ = cmd.Flags().GetString("summary")
	if p.Summary == "" {
		p.Summary = defaultSummary(p)
	}
	p.RequiresApproval = true
	p.Risk = assessRisk(p)
	return p, nil
}

func defaultSummary(p protocol.Proposal) string {
	var parts []string
	if p.Diff != "" {
		if stats, err := diff.Summarize(p.Diff); err == nil {
			adds, dels := diff.Totals(stats)
			parts = append(parts, fmt.Sprintf("apply diff to %d file(s) (+%d -%d)", len(stats), adds, dels))
		} else {
			parts = append(parts, "apply diff")
		}
	}
	for _, c := range p.Commands {
		parts = append(parts, "run "+c)
	}
	return strings.Join(parts, ", then ")
}

// assessRisk rates a proposal by its riskiest command. A diff alone is medium.
func assessRisk(p protocol.Proposal) string {
	registry := tool.DefaultRegistry()
	rank := map[string]int{"low": 1, "medium": 2, "high": 3, "unknown": 4}

	risk := ""
	if p.Diff != "" {
		risk = "medium"
	}
	for _, c := range p.Commands {
		r := "unknown"
		if t, _, ok := registry.Plan(c); ok {
			switch t.ID() {
			case tool.GitToolID:
				r = "low"
			case tool.ArtifactInstallerID:
				r = "medium"
			case tool.ShellToolID:
				r = "high"
			}
		}
		if rank[r] > rank[risk] {
			risk = r
		}
	}
	return risk
}

func commandOptions(cmd *cobra.Command, cfg *config.Config) (tool.Options, error) {
	opts := tool.Options{
		Timeout:         cfg.Execution.Timeout(),
		TailLines:       cfg.Execution.TailLines,
		RecoveryEnabled: cfg.Execution.RecoveryEnabled,
		Env:             cfg.Execution.EnvList(),
	}

	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout != 0 {
		if timeout < 0 {
			return opts, fmt.Errorf("invalid --timeout %s", timeout)
		}
		opts.Timeout = timeout
	}
	if tail, _ := cmd.Flags().GetInt("tail"); tail != 0 {
		if tail < 0 {
			return opts, fmt.Errorf("invalid --tail %d", tail)
		}
		opts.TailLines = tail
	}
	if noRecover, _ := cmd.Flags().GetBool("no-recover"); noRecover {
		disabled := false
		opts.RecoveryEnabled = &disabled
	}
	return opts, nil
}

var errStdinPrompt = errors.New("--diff - reads stdin, which the approval prompt needs too: pass the diff as a file or approve with --yes")

func selectGate(cmd *cobra.Command, cfg *config.Config) (action.ApprovalGate, error) {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return action.AutoApprove{}, nil
	}

	switch cfg.Approval.Mode {
	case "", config.ApprovalPrompt:
		if diffArg, _ := cmd.Flags().GetString("diff"); diffArg == "-" {
			return nil, errStdinPrompt
		}
		return action.NewPromptGate(cmd.InOrStdin(), cmd.ErrOrStderr()), nil
	case config.ApprovalAuto:
		return action.AutoApprove{}, nil
	case config.ApprovalDeny:
		return action.DenyAll{}, nil
	default:
		return nil, fmt.Errorf("unknown approval mode %q", cfg.Approval.Mode)
	}
}

func writeExecReceipt(root, taskID string, p protocol.Proposal, out action.Outcome) error {
	r, err := receipt.NewReceipt(root, p.Diff, p.Commands, out.ChangedPaths)
	if err != nil {
		return err
	}
	r.TaskID = taskID
	r.ProposalID = p.ID
	r.Status = out.Status
	for i, report := range out.Reports {
		r.AddCommand(p.Commands[i], report)
	}
	return receipt.WriteReceipt(r, receipt.GetReceiptPath(workspace.Dir(root), r.ID))
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// recorder persists every task event to the event log and the run state and
// echoes a transcript line
type recorder struct {
	log       *eventlog.EventLog
	state     *runstate.RunState
	statePath string
	formatter *transcript.Formatter
	out       io.Writer

	mu sync.Mutex
}

func (r *recorder) emit(evt protocol.TaskEvent) error {
	if err := r.log.Emit(evt); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, r.formatter.FormatEvent(&evt))

	if evt.Event == protocol.EventTaskStarted {
		r.state.TaskID = evt.TaskID
	}
	r.state.RecordEvent(evt)

	switch evt.Event {
	case protocol.EventTaskStarted, protocol.EventTaskStateChanged, protocol.EventTaskProposal:
		return runstate.SaveRunState(r.state, r.statePath)
	}
	return nil
}

// finish closes out the run state and converts a failed outcome to an error
func (r *recorder) finish(out action.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.Finish(out.Status)
	if n := len(out.Reports); n > 0 {
		r.state.ExitCode = out.Reports[n-1].ExitCode
	}
	if err := runstate.SaveRunState(r.state, r.statePath); err != nil {
		return err
	}

	switch out.Status {
	case protocol.FinishOK:
		return nil
	case protocol.FinishRejected:
		return &ExitError{Code: ExitRejected, Err: errors.New("proposal rejected")}
	}

	code := 1
	var cmdErr *action.CommandError
	if errors.As(out.Err, &cmdErr) && cmdErr.Report.ExitCode != nil && *cmdErr.Report.ExitCode != 0 {
		code = *cmdErr.Report.ExitCode
	}
	if out.Err == nil {
		out.Err = errors.New("execution failed")
	}
	return &ExitError{Code: code, Err: out.Err}
}
