package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/benchline/pkg/jobstore"
	"github.com/3leaps/benchline/pkg/reconcile"
	"github.com/3leaps/benchline/pkg/status"
)

const (
	TaskReconcile = "reconcile"
	TaskRerun     = "rerun"
)

// Sweeper runs one reconcile sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (*reconcile.Report, error)
}

// CandidateSource lists pairs eligible for an automatic rerun.
type CandidateSource interface {
	RerunCandidates(ctx context.Context, codes []status.Code, maxReruns int) ([]jobstore.PairState, error)
}

// Rerunner reruns a single pair.
type Rerunner interface {
	Rerun(ctx context.Context, pairID int64) error
}

// ReconcileTask wraps a reconcile sweep.
func ReconcileTask(s Sweeper, interval time.Duration) Task {
	return Task{
		Name:     TaskReconcile,
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := s.Sweep(ctx)
			return err
		},
	}
}

// RerunPolicy selects pairs for the automatic rerun sweep.
type RerunPolicy struct {
	Codes     []status.Code
	MaxReruns int
}

// RerunTask reruns every pair in one of the policy's codes whose rerun
// count is below the limit. Jobs that are read-only, killed or deleted
// are never candidates. An empty code list disables the task.
func RerunTask(src CandidateSource, rr Rerunner, policy RerunPolicy, interval time.Duration, logger *zap.Logger) Task {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(policy.Codes) == 0 {
		interval = 0
	}
	return Task{
		Name:     TaskRerun,
		Interval: interval,
		Run: func(ctx context.Context) error {
			return rerunSweep(ctx, src, rr, policy, logger)
		},
	}
}

func rerunSweep(ctx context.Context, src CandidateSource, rr Rerunner, policy RerunPolicy, logger *zap.Logger) error {
	candidates, err := src.RerunCandidates(ctx, policy.Codes, policy.MaxReruns)
	if err != nil {
		return fmt.Errorf("list rerun candidates: %w", err)
	}
	var (
		errs  []error
		count int
	)
	for _, ps := range candidates {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := rr.Rerun(ctx, ps.ID); err != nil {
			errs = append(errs, fmt.Errorf("rerun pair %d: %w", ps.ID, err))
			continue
		}
		count++
	}
	if count > 0 {
		logger.Info("Requeued failed pairs", zap.Int("pairs", count), zap.Int("candidates", len(candidates)))
	}
	return errors.Join(errs...)
}
