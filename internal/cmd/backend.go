package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
)

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Operate the local execution backend",
	Long: `The local backend runs pair commands as child processes and records each
execution under backend.root. It is the backend used by serve, reconcile,
pause and kill.`,
}

var backendRunCmd = &cobra.Command{
	Use:   "run <pair-id> -- <command> [args...]",
	Short: "Start a pair's command and mark the pair enqueued",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runBackendRun,
}

var backendListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded executions",
	Args:  cobra.NoArgs,
	RunE:  runBackendList,
}

func init() {
	rootCmd.AddCommand(backendCmd)
	backendCmd.AddCommand(backendRunCmd, backendListCmd)

	backendRunCmd.Flags().String("queue", "default", "Queue to run in")
	backendListCmd.Flags().Bool("json", false, "Output as JSON")
}

func runBackendRun(cmd *cobra.Command, args []string) error {
	pairID, err := parseID(args[0], "pair id")
	if err != nil {
		return err
	}
	queue, _ := cmd.Flags().GetString("queue")

	return withApp(cmd, func(ctx context.Context, a *app) error {
		if _, _, err := a.store.GetPair(ctx, pairID); err != nil {
			return operationError(fmt.Sprintf("Cannot run pair %d", pairID), err)
		}
		rec, err := a.local.Enqueue(ctx, pairID, queue, args[1:])
		if err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Failed to start execution", err)
		}
		if err := a.store.MarkEnqueued(ctx, pairID, rec.ExecID); err != nil {
			_ = a.local.KillPair(ctx, rec.ExecID)
			return operationError(fmt.Sprintf("Cannot record execution for pair %d", pairID), err)
		}
		_, _ = fmt.Fprintf(stdout, "pair %d: execution %s (pid %d)\n", pairID, rec.ExecID, rec.PID)
		return nil
	})
}

func runBackendList(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return withApp(cmd, func(_ context.Context, a *app) error {
		records, err := a.local.Store().List()
		if err != nil {
			return exitError(foundry.ExitFileReadError, "Failed to list executions", err)
		}
		if jsonOutput {
			return writeJSON(records)
		}
		if len(records) == 0 {
			_, _ = fmt.Fprintln(stdout, "No executions found")
			return nil
		}

		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		defer func() { _ = w.Flush() }()
		_, _ = fmt.Fprintln(w, "EXEC ID\tPAIR\tQUEUE\tSTATE\tPID\tCREATED\tENDED")
		for _, r := range records {
			ended := "-"
			if r.EndedAt != nil {
				ended = r.EndedAt.Format(time.RFC3339)
			}
			_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%s\t%s\n",
				r.ExecID, r.PairID, r.Queue, r.State, r.PID, r.CreatedAt.Format(time.RFC3339), ended)
		}
		return nil
	})
}
