package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "actuator",
	Short: "Apply proposed changes and run commands for a remote-operated coding agent",
	Long: `actuator is the action-execution engine behind a remote-operated coding
agent. It applies unified diffs to a workspace transactionally, runs commands
through a small set of allowlisted tools with a single recovery attempt, and
tracks every request through an observable task lifecycle.

Events and audit records are appended to .actuator/events/ in the workspace.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(initCmd)

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to actuator.json or actuator.yaml (default: search up directory tree)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default: from config, else info)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json (default: from config, else text)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
