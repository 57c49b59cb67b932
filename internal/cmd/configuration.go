package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/benchline/pkg/stats"
)

var configurationCmd = &cobra.Command{
	Use:     "configuration",
	Aliases: []string{"configs"},
	Short:   "Rename or delete solver configurations",
	Long: `Alter a solver configuration. Cached statistics of every job that ran
the configuration are dropped once the change is committed.

Examples:
  benchline configuration rename 10 tuned
  benchline configuration delete 10`,
}

var configurationRenameCmd = &cobra.Command{
	Use:   "rename <config-id> <name>",
	Short: "Rename a configuration",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigurationRename,
}

var configurationDeleteCmd = &cobra.Command{
	Use:   "delete <config-id>",
	Short: "Delete a configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigurationDelete,
}

func init() {
	rootCmd.AddCommand(configurationCmd)
	configurationCmd.AddCommand(configurationRenameCmd, configurationDeleteCmd)
	for _, c := range []*cobra.Command{configurationRenameCmd, configurationDeleteCmd} {
		c.Flags().Bool("json", false, "Output as JSON")
	}
}

func runConfigurationRename(cmd *cobra.Command, args []string) error {
	configID, err := parseID(args[0], "configuration id")
	if err != nil {
		return err
	}
	name := strings.TrimSpace(args[1])
	if name == "" {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration name", fmt.Errorf("name is required"))
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		change, err := a.configs.Rename(ctx, configID, name)
		return printConfigChange(cmd, "rename", change, err)
	})
}

func runConfigurationDelete(cmd *cobra.Command, args []string) error {
	configID, err := parseID(args[0], "configuration id")
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		change, err := a.configs.Delete(ctx, configID)
		return printConfigChange(cmd, "delete", change, err)
	})
}

// printConfigChange reports the change when it committed, then fails if
// any job's stats could not be invalidated.
func printConfigChange(cmd *cobra.Command, op string, change stats.ConfigChange, err error) error {
	if change.ConfigID == 0 {
		return operationError(fmt.Sprintf("Cannot %s configuration", op), err)
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		if werr := writeJSON(change); werr != nil {
			return werr
		}
	} else {
		_, _ = fmt.Fprintf(stdout, "configuration %d: %s done, stats dropped for %d jobs\n",
			change.ConfigID, op, len(change.Jobs))
	}
	if err != nil {
		return exitError(exitFailure, "Failed to invalidate cached statistics", err)
	}
	return nil
}
