package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iambrandonn/actuator/internal/diff"
)

var statCmd = &cobra.Command{
	Use:   "stat <diff-file|->",
	Short: "Show per-file additions and deletions for a unified diff",
	Args:  cobra.ExactArgs(1),
	RunE:  runStat,
}

func runStat(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}

	stats, err := diff.Summarize(text)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, s := range stats {
		fmt.Fprintf(out, "+%-5d -%-5d %s\n", s.Additions, s.Deletions, s.Path)
	}
	adds, dels := diff.Totals(stats)
	fmt.Fprintf(out, "%d file(s), +%d -%d\n", len(stats), adds, dels)
	return nil
}
