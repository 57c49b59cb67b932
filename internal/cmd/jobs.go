package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/3leaps/benchline/pkg/lifecycle"
)

var pauseCmd = &cobra.Command{
	Use:   "pause <job-id>",
	Short: "Pause a job's unfinished pairs",
	Long: `Pause a job. Pending pairs and pairs on the backend are moved to paused;
executions on the backend are killed first.

With --admin the job is paused by an administrator and a user resume will
not restart it.`,
	Args: cobra.ExactArgs(1),
	RunE: runPause,
}

var resumeCmd = &cobra.Command{
	Use:   "resume <job-id>",
	Short: "Resume a paused job",
	Args:  cobra.ExactArgs(1),
	RunE:  runResume,
}

var killCmd = &cobra.Command{
	Use:   "kill <job-id>",
	Short: "Kill every unfinished pair of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runKill,
}

var pauseAllCmd = &cobra.Command{
	Use:   "pause-all",
	Short: "Set the global pause and pause every running job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runGlobalOp(cmd, "pause-all", func(c *lifecycle.Controller) func(context.Context) (lifecycle.BatchResult, error) {
			return c.PauseAll
		})
	},
}

var resumeAllCmd = &cobra.Command{
	Use:   "resume-all",
	Short: "Clear the global pause and resume jobs it paused",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runGlobalOp(cmd, "resume-all", func(c *lifecycle.Controller) func(context.Context) (lifecycle.BatchResult, error) {
			return c.ResumeAll
		})
	},
}

func init() {
	rootCmd.AddCommand(pauseCmd, resumeCmd, killCmd, pauseAllCmd, resumeAllCmd)

	pauseCmd.Flags().Bool("admin", false, "Pause as administrator")
	resumeCmd.Flags().Bool("admin", false, "Clear an administrator pause")
	for _, c := range []*cobra.Command{pauseCmd, resumeCmd, killCmd, pauseAllCmd, resumeAllCmd} {
		c.Flags().Bool("json", false, "Output as JSON")
	}
}

type jobOp func(ctx context.Context, jobID int64) (lifecycle.BatchResult, error)

func runPause(cmd *cobra.Command, args []string) error {
	admin, _ := cmd.Flags().GetBool("admin")
	return runJobOp(cmd, args[0], "pause", func(c *lifecycle.Controller) jobOp {
		if admin {
			return c.AdminPause
		}
		return c.Pause
	})
}

func runResume(cmd *cobra.Command, args []string) error {
	admin, _ := cmd.Flags().GetBool("admin")
	return runJobOp(cmd, args[0], "resume", func(c *lifecycle.Controller) jobOp {
		if admin {
			return c.AdminResume
		}
		return c.Resume
	})
}

func runKill(cmd *cobra.Command, args []string) error {
	return runJobOp(cmd, args[0], "kill", func(c *lifecycle.Controller) jobOp { return c.Kill })
}

func runJobOp(cmd *cobra.Command, arg, name string, pick func(*lifecycle.Controller) jobOp) error {
	jobID, err := parseID(arg, "job id")
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		res, err := pick(a.lifecycle)(ctx, jobID)
		if err != nil {
			return operationError(name+" failed", err)
		}
		return printBatch(cmd, name, res)
	})
}

func runGlobalOp(cmd *cobra.Command, name string, pick func(*lifecycle.Controller) func(context.Context) (lifecycle.BatchResult, error)) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		res, err := pick(a.lifecycle)(ctx)
		if err != nil {
			return operationError(name+" failed", err)
		}
		return printBatch(cmd, name, res)
	})
}
