package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var depsCmd = &cobra.Command{
	Use:   "deps <pair-id>",
	Short: "Show pipeline dependencies of a pair's stages",
	Long: `List what each stage of a pair consumes and whether it can run now.

When artifact storage is configured, artifact dependencies are also checked
for stored outputs.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeps,
}

func init() {
	rootCmd.AddCommand(depsCmd)
	depsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runDeps(cmd *cobra.Command, args []string) error {
	pairID, err := parseID(args[0], "pair id")
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return withApp(cmd, func(ctx context.Context, a *app) error {
		rep, err := a.inspector.Inspect(ctx, pairID)
		if err != nil {
			return operationError(fmt.Sprintf("Failed to inspect pair %d", pairID), err)
		}
		if jsonOutput {
			return writeJSON(rep)
		}

		_, _ = fmt.Fprintf(stdout, "pair %d (job %d), artifacts checked: %t\n", rep.PairID, rep.JobID, rep.Checked)
		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		defer func() { _ = w.Flush() }()
		_, _ = fmt.Fprintln(w, "STAGE\tSTATUS\tREADY\tDEPENDENCIES\tMISSING")
		for _, st := range rep.Stages {
			deps := make([]string, 0, len(st.Dependencies))
			for _, d := range st.Dependencies {
				deps = append(deps, fmt.Sprintf("%s:%d", strings.ToLower(string(d.Kind)), d.InputNumber))
			}
			missing := "-"
			if len(st.MissingArtifacts) > 0 {
				missing = strings.Trim(fmt.Sprint(st.MissingArtifacts), "[]")
			}
			depList := "-"
			if len(deps) > 0 {
				depList = strings.Join(deps, ",")
			}
			_, _ = fmt.Fprintf(w, "%d\t%s\t%t\t%s\t%s\n", st.StageNumber, st.Status, st.Ready, depList, missing)
		}
		return nil
	})
}
