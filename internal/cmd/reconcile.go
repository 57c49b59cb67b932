package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/benchline/pkg/reconcile"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Fail active pairs the backend no longer knows about",
	Long: `Run one reconcile sweep. Every pair the store believes is on the
backend is compared with the backend's live executions; pairs that were lost
are set to error_general.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().Bool("json", false, "Output as JSON")
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return withApp(cmd, func(ctx context.Context, a *app) error {
		rep, err := a.reconciler.Sweep(ctx)
		if rep == nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Reconcile failed", err)
		}
		if jsonOutput {
			if werr := writeJSON(rep); werr != nil {
				return werr
			}
		} else {
			printReport(rep)
		}
		if err != nil {
			return exitError(foundry.ExitFileWriteError, "Reconcile completed with errors", err)
		}
		return nil
	})
}

func printReport(rep *reconcile.Report) {
	_, _ = fmt.Fprintf(stdout, "sweep %s: checked %d, live %d, broken %d (%s)\n",
		rep.SweepID, rep.Checked, rep.Live, len(rep.Broken), rep.Ended.Sub(rep.Started).Round(time.Millisecond))
	if len(rep.Broken) == 0 {
		return
	}
	ids := make([]string, len(rep.Broken))
	for i, id := range rep.Broken {
		ids[i] = strconv.FormatInt(id, 10)
	}
	_, _ = fmt.Fprintf(stdout, "failed pairs: %s\n", strings.Join(ids, ", "))
}
