package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iambrandonn/actuator/internal/ledger"
	"github.com/iambrandonn/actuator/internal/runstate"
	"github.com/iambrandonn/actuator/internal/transcript"
	"github.com/iambrandonn/actuator/internal/workspace"
)

var eventsCmd = &cobra.Command{
	Use:   "events [log-file]",
	Short: "Print the task events of a run",
	Long: `Print the task events recorded in an event log, one line per event.

Without an argument the log of the most recent run in the workspace is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().String("root", "", "Workspace root (default: from config, else current directory)")
	eventsCmd.Flags().String("task", "", "Only show events for this task ID")
	eventsCmd.Flags().Bool("audit", false, "Include tool audit records")
}

func runEvents(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}

	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		path, err = lastEventLog(e.root)
		if err != nil {
			return err
		}
	}

	l, err := ledger.ReadLedger(path)
	if err != nil {
		return err
	}

	taskID, _ := cmd.Flags().GetString("task")
	withAudit, _ := cmd.Flags().GetBool("audit")

	f := transcript.NewFormatter()
	out := cmd.OutOrStdout()

	ids := l.TaskIDs()
	if taskID != "" {
		ids = []string{taskID}
	}
	for _, id := range ids {
		for _, evt := range l.EventsFor(id) {
			fmt.Fprintln(out, f.FormatEvent(evt))
		}
		if withAudit {
			for _, rec := range l.AuditsFor(id) {
				fmt.Fprintln(out, f.FormatAudit(rec))
			}
		}
	}
	return nil
}

func lastEventLog(root string) (string, error) {
	state, err := runstate.LoadRunState(runstate.GetRunStatePath(workspace.Dir(root)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("no run recorded in %s (pass an event log path)", root)
		}
		return "", err
	}
	if state.EventLog == "" {
		return "", fmt.Errorf("run %s has no event log", state.RunID)
	}
	return state.EventLog, nil
}
