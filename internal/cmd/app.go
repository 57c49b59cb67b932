package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"go.uber.org/zap"

	"github.com/3leaps/benchline/internal/config"
	"github.com/3leaps/benchline/pkg/artifact"
	"github.com/3leaps/benchline/pkg/artifact/file"
	"github.com/3leaps/benchline/pkg/artifact/s3"
	"github.com/3leaps/benchline/pkg/backend"
	"github.com/3leaps/benchline/pkg/backend/local"
	"github.com/3leaps/benchline/pkg/jobstore"
	"github.com/3leaps/benchline/pkg/lifecycle"
	"github.com/3leaps/benchline/pkg/pipeline"
	"github.com/3leaps/benchline/pkg/reconcile"
	"github.com/3leaps/benchline/pkg/stats"
)

// app is the wired set of components shared by the commands.
type app struct {
	cfg        *config.Config
	db         *sql.DB
	store      *jobstore.Store
	local      *local.Backend
	stats      *stats.Service
	configs    *stats.Configurations
	lifecycle  *lifecycle.Controller
	reconciler *reconcile.Reconciler
	inspector  *artifact.Inspector
	artifacts  artifact.Provider
}

func openStore(ctx context.Context, cfg *config.Config) (*sql.DB, *jobstore.Store, error) {
	db, err := jobstore.Open(ctx, jobstore.Config{
		Path:      cfg.Store.Path,
		URL:       cfg.Store.URL,
		AuthToken: cfg.Store.AuthToken,
	})
	if err != nil {
		return nil, nil, exitError(foundry.ExitFileReadError, "Failed to open job store", err)
	}
	if err := jobstore.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, exitError(foundry.ExitFileWriteError, "Failed to migrate job store", err)
	}
	return db, jobstore.New(db), nil
}

func openApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	db, store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store.WithLogger(logger.Named("jobstore"))
	a := &app{cfg: cfg, db: db, store: store}

	a.local = local.New(cfg.Backend.Root, cfg.Backend.Slots, logger.Named("backend"))
	var b backend.Backend = a.local
	if cfg.Backend.KillRate > 0 {
		b = backend.RateLimited(b, cfg.Backend.KillRate, cfg.Backend.KillBurst)
	}

	a.stats = stats.NewService(store, cfg.Stats.IncludeUnknown, logger.Named("stats"))
	a.configs = stats.NewConfigurations(store, a.stats.Cache(), logger.Named("configs"))
	a.lifecycle = lifecycle.New(store, b, a.stats.Cache(), logger.Named("lifecycle"))
	a.reconciler = reconcile.New(store, b, logger.Named("reconcile"))

	provider, err := newArtifactProvider(ctx, cfg.Artifacts)
	if err != nil {
		_ = db.Close()
		return nil, exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to artifact storage", err)
	}
	a.artifacts = provider
	var checker *artifact.Checker
	if provider != nil {
		checker = artifact.NewChecker(provider, logger.Named("artifacts"))
	}
	a.inspector = artifact.NewInspector(pipeline.NewResolver(store), store, checker)
	return a, nil
}

func (a *app) Close() error {
	if a.artifacts != nil {
		_ = a.artifacts.Close()
	}
	return a.db.Close()
}

// newArtifactProvider returns nil when no provider is configured.
func newArtifactProvider(ctx context.Context, cfg config.ArtifactsConfig) (artifact.Provider, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case string(artifact.ProviderFile):
		p, err := file.New(file.Config{Root: cfg.Root})
		if err != nil {
			return nil, err
		}
		return p, nil
	case string(artifact.ProviderS3):
		p, err := s3.New(ctx, s3.Config{
			Bucket:         cfg.Bucket,
			Prefix:         cfg.Prefix,
			Region:         cfg.Region,
			Endpoint:       cfg.Endpoint,
			Profile:        cfg.Profile,
			ForcePathStyle: cfg.ForcePathStyle,
			DetectRegion:   cfg.DetectRegion,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported artifact provider %q", cfg.Provider)
	}
}
