package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/3leaps/benchline/internal/config"
	"github.com/3leaps/benchline/internal/observability"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "unknown",
	BuildDate: "unknown",
}

var (
	cfgFile    string
	dbPath     string
	logLevel   string
	logProfile string

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "benchline",
	Short: "Job pair lifecycle engine for solver benchmarking",
	Long: `benchline tracks benchmark job pairs through their lifecycle:
pausing, resuming, killing and rerunning pairs, reconciling them with the
execution backend, resolving pipeline dependencies between stages and
aggregating per-solver statistics.

Configuration is read from benchline.yaml, BENCHLINE_* environment
variables and command line flags, in increasing order of precedence.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initRuntime,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./benchline.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Job store path (overrides store.path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logProfile, "log-profile", "", "Log profile: structured or console")
}

// SetVersionInfo is called by main with values injected at build time.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func initRuntime(cmd *cobra.Command, _ []string) error {
	overrides := map[string]any{}
	if dbPath != "" {
		overrides["store.path"] = dbPath
	}
	if logLevel != "" {
		overrides["logging.level"] = logLevel
	}
	if logProfile != "" {
		overrides["logging.profile"] = logProfile
	}

	cfg, err := config.LoadFile(cmd.Context(), cfgFile, overrides)
	if err != nil {
		return exitError(exitConfig, "Failed to load configuration", err)
	}
	if err := observability.InitCLILogger(cfg.Logging.Level, cfg.Logging.Profile); err != nil {
		return exitError(exitConfig, "Failed to initialize logger", err)
	}
	appConfig = cfg
	return nil
}

func currentConfig() (*config.Config, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return appConfig, nil
}
