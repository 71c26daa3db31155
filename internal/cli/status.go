package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/iambrandonn/actuator/internal/ledger"
	"github.com/iambrandonn/actuator/internal/runstate"
	"github.com/iambrandonn/actuator/internal/workspace"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the most recent run",
	Long: `Show the state of the most recent run in the workspace.

A run whose state file still says running but whose task never finished in
the event log was interrupted. Use --mark-aborted to close it out.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("root", "", "Workspace root (default: from config, else current directory)")
	statusCmd.Flags().Bool("mark-aborted", false, "Mark an interrupted run as aborted")
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}

	if ok, err := workspace.IsInitialized(e.root); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("no run recorded in %s: workspace not initialized (run 'actuator init' or 'actuator exec')", e.root)
	}

	statePath := runstate.GetRunStatePath(workspace.Dir(e.root))
	state, err := runstate.LoadRunState(statePath)
	if err != nil {
		return fmt.Errorf("no run recorded in %s: %w", e.root, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run:      %s\n", state.RunID)
	fmt.Fprintf(out, "status:   %s\n", state.Status)
	if state.TaskID != "" {
		fmt.Fprintf(out, "task:     %s (%s)\n", state.TaskID, state.TaskState)
	}
	if state.Request != "" {
		fmt.Fprintf(out, "request:  %s\n", state.Request)
	}
	if state.ProposalID != "" {
		fmt.Fprintf(out, "proposal: %s\n", state.ProposalID)
	}
	if state.ExitCode != nil {
		fmt.Fprintf(out, "exit:     %d\n", *state.ExitCode)
	}
	fmt.Fprintf(out, "started:  %s\n", state.StartedAt.Local().Format(time.DateTime))
	if state.CompletedAt != nil {
		fmt.Fprintf(out, "finished: %s\n", state.CompletedAt.Local().Format(time.DateTime))
	}

	if !state.IsRunning() {
		return nil
	}

	interrupted := true
	if state.EventLog != "" {
		l, err := ledger.ReadLedger(state.EventLog)
		if err != nil {
			e.logger.Warn("failed to read event log", "path", state.EventLog, "error", err)
		} else if state.TaskID != "" {
			interrupted = slices.Contains(l.GetUnfinishedTasks(), state.TaskID)
			if last, ok := l.LastState(state.TaskID); ok && last != state.TaskState {
				fmt.Fprintf(out, "log state: %s\n", last)
			}
		}
	}
	if !interrupted {
		return nil
	}

	markAborted, _ := cmd.Flags().GetBool("mark-aborted")
	if !markAborted {
		fmt.Fprintln(out, "\nthe task never finished; if no actuator process is running, rerun with --mark-aborted")
		return nil
	}

	state.MarkAborted()
	if err := runstate.SaveRunState(state, statePath); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nmarked run %s aborted\n", state.RunID)
	return nil
}
