package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/3leaps/benchline/internal/observability"
	"github.com/3leaps/benchline/internal/server"
	"github.com/3leaps/benchline/internal/server/handlers"
	"github.com/3leaps/benchline/pkg/backend"
	"github.com/3leaps/benchline/pkg/scheduler"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background tasks",
	Long: `Serve the /v1 lifecycle API, health and metrics endpoints, and run the
periodic reconcile and automatic rerun sweeps until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides server.port)")
}

type storeHealthChecker struct{ db *sql.DB }

func (c storeHealthChecker) CheckHealth(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("job store not open")
	}
	return c.db.PingContext(ctx)
}

type backendHealthChecker struct{ b backend.Backend }

func (c backendHealthChecker) CheckHealth(ctx context.Context) error {
	if c.b == nil {
		return fmt.Errorf("backend not configured")
	}
	_, err := c.b.ActiveExecutionIDs(ctx)
	return err
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return exitError(exitConfig, "Configuration unavailable", err)
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	if err := observability.InitServerLogger(cfg.Logging.Level, cfg.Logging.Profile, "benchline"); err != nil {
		return exitError(exitConfig, "Failed to initialize server logger", err)
	}
	defer observability.Sync()
	logger := observability.ServerLogger

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	health := handlers.NewHealthManager(versionInfo.Version)
	health.RegisterChecker("store", storeHealthChecker{db: a.db})
	health.RegisterChecker("backend", backendHealthChecker{b: a.local})

	srv := server.New(cfg.Server.Host, cfg.Server.Port,
		server.WithLogger(logger.Named("http")),
		server.WithHealth(health),
		server.WithVersion(handlers.VersionInfo{
			Version:   versionInfo.Version,
			Commit:    versionInfo.Commit,
			BuildDate: versionInfo.BuildDate,
		}),
		server.WithMetrics(cfg.Metrics.Enabled),
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
		server.WithAPI(&handlers.API{
			Lifecycle:  a.lifecycle,
			Stats:      a.stats,
			Reconciler: a.reconciler,
			Deps:       a.inspector,
			Configs:    a.configs,
		}),
	)

	sched := scheduler.New(logger.Named("scheduler"))
	sched.Add(scheduler.ReconcileTask(a.reconciler, cfg.Scheduler.ReconcileInterval))
	sched.Add(scheduler.RerunTask(a.store, a.lifecycle, scheduler.RerunPolicy{
		Codes:     cfg.Scheduler.RerunCodes,
		MaxReruns: cfg.Scheduler.MaxReruns,
	}, cfg.Scheduler.RerunInterval, logger.Named("rerun")))

	logger.Info("Starting benchline server",
		zap.String("addr", srv.Addr()),
		zap.String("version", versionInfo.Version),
		zap.Strings("tasks", sched.Tasks()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return exitError(foundry.ExitExternalServiceUnavailable, "Server stopped with error", err)
	}
	logger.Info("Server stopped")
	return nil
}
