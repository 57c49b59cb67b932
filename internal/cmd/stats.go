package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/benchline/pkg/model"
	"github.com/3leaps/benchline/pkg/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats <space-id>",
	Short: "Show per-solver statistics for a job space",
	Long: `Aggregate pair results below a job space per stage and configuration.

Stage 0 is the rollup over each pair's primary stage. Results are served
from the statistics cache when the job is complete.`,
	Args: cobra.ExactArgs(1),
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().Int("stage", stats.AllStages, "Only this stage (0 = primary rollup, default all)")
	statsCmd.Flags().Bool("include-unknown", false, "Count unknown results as correct (default from config)")
	statsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	spaceID, err := parseID(args[0], "job space id")
	if err != nil {
		return err
	}
	stage, _ := cmd.Flags().GetInt("stage")
	if stage < stats.AllStages {
		return exitError(foundry.ExitInvalidArgument, "Invalid --stage value", fmt.Errorf("stage must be >= 0"))
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return withApp(cmd, func(ctx context.Context, a *app) error {
		includeUnknown := a.stats.IncludeUnknown()
		if cmd.Flags().Changed("include-unknown") {
			includeUnknown, _ = cmd.Flags().GetBool("include-unknown")
		}
		rows, err := a.stats.ForJobSpace(ctx, spaceID, stage, includeUnknown)
		if err != nil {
			return operationError("Failed to compute statistics", err)
		}
		if jsonOutput {
			if rows == nil {
				rows = []model.SolverStats{}
			}
			return writeJSON(rows)
		}
		if len(rows) == 0 {
			_, _ = fmt.Fprintln(stdout, "No statistics")
			return nil
		}

		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		defer func() { _ = w.Flush() }()
		_, _ = fmt.Fprintln(w, "STAGE\tSOLVER\tCONFIG\tCOMPLETE\tCORRECT\tINCORRECT\tUNKNOWN\tFAILED\tRESOURCE\tINCOMPLETE\tCONFLICTS\tWALL\tCPU")
		for _, r := range rows {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%.2f\t%.2f\n",
				r.StageNumber, r.SolverName, r.ConfigurationName,
				r.CompleteJobPairs, r.CorrectJobPairs, r.IncorrectJobPairs, r.UnknownJobPairs,
				r.FailedJobPairs, r.ResourceOutJobPairs, r.IncompleteJobPairs, r.Conflicts,
				r.WallTime, r.CPUTime)
		}
		return nil
	})
}
