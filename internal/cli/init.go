package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/iambrandonn/actuator/internal/config"
	"github.com/iambrandonn/actuator/internal/workspace"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a default config and create the .actuator state directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func init() {
	initCmd.Flags().String("format", "json", "Config format: json or yaml")
	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	format, _ := cmd.Flags().GetString("format")
	var name string
	switch format {
	case "json":
		name = "actuator.json"
	case "yaml", "yml":
		name = "actuator.yaml"
	default:
		return fmt.Errorf("invalid --format %q (expected json or yaml)", format)
	}

	path := filepath.Join(root, name)
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.GenerateDefault().SaveToFile(path); err != nil {
		return err
	}
	if err := workspace.Initialize(root); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\ncreated %s\n", path, workspace.Dir(root))
	return nil
}
