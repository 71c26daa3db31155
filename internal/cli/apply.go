package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iambrandonn/actuator/internal/diff"
	"github.com/iambrandonn/actuator/internal/idempotency"
	"github.com/iambrandonn/actuator/internal/protocol"
	"github.com/iambrandonn/actuator/internal/receipt"
	"github.com/iambrandonn/actuator/internal/workspace"
)

var applyCmd = &cobra.Command{
	Use:   "apply <diff-file|->",
	Short: "Apply a unified diff to the workspace",
	Long: `Apply a unified diff to the workspace transactionally.

Every hunk is validated against the current file contents before anything is
written. If any file fails, files already written are restored and the
workspace is left as it was.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().String("root", "", "Workspace root (default: from config, else current directory)")
	applyCmd.Flags().Bool("dry-run", false, "Validate the diff without writing")
	applyCmd.Flags().Bool("receipt", false, "Record a receipt under .actuator/receipts")
	applyCmd.Flags().Bool("force", false, "Apply even if a matching receipt shows the diff is already applied")
}

func runApply(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}

	text, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	writeReceipt, _ := cmd.Flags().GetBool("receipt")
	force, _ := cmd.Flags().GetBool("force")

	stats, err := diff.Summarize(text)
	if err != nil {
		return err
	}

	if !force {
		key, err := idempotency.ApplyKey(text, nil)
		if err != nil {
			return err
		}
		prior, err := receipt.FindApplied(workspace.Dir(e.root), e.root, key)
		if err != nil {
			return err
		}
		if prior != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "already applied (receipt %s at %s)\n",
				prior.ID, prior.CreatedAt.Format("2006-01-02 15:04:05"))
			return nil
		}
	}

	applier := diff.NewApplier(e.logger)

	if dryRun {
		paths, err := applier.Check(text, e.root)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintf(cmd.OutOrStdout(), "would change %s\n", p)
		}
		return nil
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	changed, err := applier.Apply(ctx, text, e.root)
	if err != nil {
		return err
	}
	for _, p := range changed {
		fmt.Fprintf(cmd.OutOrStdout(), "changed %s\n", p)
	}
	adds, dels := diff.Totals(stats)
	fmt.Fprintf(cmd.OutOrStdout(), "%d file(s) changed, %d insertion(s)(+), %d deletion(s)(-)\n", len(changed), adds, dels)

	if !writeReceipt {
		return nil
	}

	if err := workspace.Initialize(e.root); err != nil {
		return err
	}
	r, err := receipt.NewReceipt(e.root, text, nil, changed)
	if err != nil {
		return err
	}
	r.Status = protocol.FinishOK
	if err := receipt.WriteReceipt(r, receipt.GetReceiptPath(workspace.Dir(e.root), r.ID)); err != nil {
		return err
	}
	e.logger.Debug("receipt written", "id", r.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "receipt %s\n", r.ID)
	return nil
}
