package cmd

import (
	"context"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/benchline/pkg/lifecycle"
	"github.com/3leaps/benchline/pkg/status"
)

var rerunCmd = &cobra.Command{
	Use:   "rerun",
	Short: "Send pairs back to pending",
	Long: `Reset pairs so the submitter picks them up again. Stage results are
cleared, the rerun counter is incremented and cached statistics of the
affected configurations are dropped.

Examples:
  benchline rerun pair 42
  benchline rerun status 7 error_submit_fail
  benchline rerun timeless 7
  benchline rerun all 7`,
}

var rerunPairCmd = &cobra.Command{
	Use:   "pair <pair-id>",
	Short: "Rerun a single pair",
	Args:  cobra.ExactArgs(1),
	RunE:  runRerunPair,
}

var rerunStatusCmd = &cobra.Command{
	Use:   "status <job-id> <status>",
	Short: "Rerun a job's pairs that have the given status",
	Args:  cobra.ExactArgs(2),
	RunE:  runRerunStatus,
}

var rerunTimelessCmd = &cobra.Command{
	Use:   "timeless <job-id>",
	Short: "Rerun complete pairs that recorded no runtime",
	Args:  cobra.ExactArgs(1),
	RunE:  runRerunTimeless,
}

var rerunAllCmd = &cobra.Command{
	Use:   "all <job-id>",
	Short: "Rerun every finished pair of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runRerunAll,
}

func init() {
	rootCmd.AddCommand(rerunCmd)
	rerunCmd.AddCommand(rerunPairCmd, rerunStatusCmd, rerunTimelessCmd, rerunAllCmd)

	for _, c := range []*cobra.Command{rerunPairCmd, rerunStatusCmd, rerunTimelessCmd, rerunAllCmd} {
		c.Flags().Bool("json", false, "Output as JSON")
	}
}

func runRerunPair(cmd *cobra.Command, args []string) error {
	pairID, err := parseID(args[0], "pair id")
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.lifecycle.Rerun(ctx, pairID); err != nil {
			return operationError(fmt.Sprintf("rerun of pair %d failed", pairID), err)
		}
		if jsonOutput {
			return writeJSON(map[string]any{"pair_id": pairID, "status": status.PendingSubmit.String()})
		}
		_, _ = fmt.Fprintf(stdout, "pair %d: %s\n", pairID, status.PendingSubmit)
		return nil
	})
}

func runRerunStatus(cmd *cobra.Command, args []string) error {
	code, err := status.Parse(args[1])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid status", err)
	}
	return runJobOp(cmd, args[0], "rerun "+code.String(), func(c *lifecycle.Controller) jobOp {
		return func(ctx context.Context, jobID int64) (lifecycle.BatchResult, error) {
			return c.SetPairsToPending(ctx, jobID, code)
		}
	})
}

func runRerunTimeless(cmd *cobra.Command, args []string) error {
	return runJobOp(cmd, args[0], "rerun timeless", func(c *lifecycle.Controller) jobOp {
		return c.SetTimelessPairsToPending
	})
}

func runRerunAll(cmd *cobra.Command, args []string) error {
	return runJobOp(cmd, args[0], "rerun all", func(c *lifecycle.Controller) jobOp {
		return c.SetAllPairsToPending
	})
}
