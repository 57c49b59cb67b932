package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/benchline/pkg/pipeline"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Validate and import solver pipeline definitions",
	Long: `Pipeline definitions are YAML (or .json) files listing solver pipelines,
their stages and the inputs each stage consumes.

Examples:
  benchline pipeline validate pipelines.yaml
  benchline pipeline import pipelines.yaml`,
}

var pipelineValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a pipeline definition without writing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runPipelineValidate,
}

var pipelineImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Write the pipelines of a definition to the job store",
	Args:  cobra.ExactArgs(1),
	RunE:  runPipelineImport,
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
	pipelineCmd.AddCommand(pipelineValidateCmd, pipelineImportCmd)
	pipelineValidateCmd.Flags().Bool("json", false, "Output as JSON")
}

func loadDefinition(path string) (*pipeline.Definition, error) {
	def, err := pipeline.LoadFile(path)
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid pipeline definition", err)
	}
	return def, nil
}

func runPipelineValidate(cmd *cobra.Command, args []string) error {
	def, err := loadDefinition(args[0])
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return writeJSON(def)
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSTAGES\tPRIMARY")
	for _, p := range def.Pipelines {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", p.ID, p.Name, len(p.Stages), p.PrimaryStageNumber)
	}
	return nil
}

func runPipelineImport(cmd *cobra.Command, args []string) error {
	def, err := loadDefinition(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		for _, p := range def.Pipelines {
			if err := a.store.SavePipeline(ctx, p); err != nil {
				return exitError(foundry.ExitFileWriteError, fmt.Sprintf("Failed to save pipeline %q", p.Name), err)
			}
		}
		_, _ = fmt.Fprintf(stdout, "imported %d pipelines\n", len(def.Pipelines))
		return nil
	})
}
