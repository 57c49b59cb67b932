// Package reconcile detects job pairs the store believes are on the
// execution backend but the backend no longer holds, and fails them.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/3leaps/benchline/pkg/backend"
	"github.com/3leaps/benchline/pkg/jobstore"
	"github.com/3leaps/benchline/pkg/model"
	"github.com/3leaps/benchline/pkg/status"
)

// Store is the persistence a sweep reads and updates.
type Store interface {
	ActivePairs(ctx context.Context) ([]jobstore.PairState, error)
	TransitionPair(ctx context.Context, pairID int64, from []status.Code, to status.Code) (bool, error)
	GetJob(ctx context.Context, jobID int64) (*model.Job, error)
	SetSolverBuildStatus(ctx context.Context, solverID int64, st model.BuildStatus) error
}

// Report summarizes one sweep.
type Report struct {
	SweepID string    `json:"sweep_id"`
	Checked int       `json:"checked"`
	Live    int       `json:"live"`
	Broken  []int64   `json:"broken"`
	Started time.Time `json:"started"`
	Ended   time.Time `json:"ended"`
}

// Reconciler compares persisted active pairs with the backend's live set.
type Reconciler struct {
	store   Store
	backend backend.Backend
	logger  *zap.Logger
	now     func() time.Time
}

func New(store Store, b backend.Backend, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: store, backend: b, logger: logger, now: time.Now}
}

// Sweep fails every active pair whose execution id the backend does not
// report. The store is read before the backend is asked, so a pair
// enqueued in between is never misjudged: it is either not in the first
// read or already in the live set. A backend error aborts the sweep before
// any update.
func (r *Reconciler) Sweep(ctx context.Context) (*Report, error) {
	rep := &Report{SweepID: uuid.NewString(), Started: r.now()}
	log := r.logger.With(zap.String("sweep_id", rep.SweepID))

	active, err := r.store.ActivePairs(ctx)
	if err != nil {
		sweepsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("read active pairs: %w", err)
	}
	live, err := r.backend.ActiveExecutionIDs(ctx)
	if err != nil {
		sweepsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("list backend executions: %w", err)
	}
	liveSet := backend.IDSet(live)
	rep.Live = len(liveSet)

	var (
		errs []error
		jobs = make(map[int64]*model.Job)
	)
	for _, ps := range active {
		if ps.ExecID == "" {
			continue
		}
		rep.Checked++
		if _, ok := liveSet[ps.ExecID]; ok {
			continue
		}

		changed, err := r.store.TransitionPair(ctx, ps.ID, []status.Code{ps.Status}, status.ErrorGeneral)
		if err != nil {
			errs = append(errs, fmt.Errorf("fail pair %d: %w", ps.ID, err))
			continue
		}
		if !changed {
			// The pair moved on after the read; it is no longer ours to fail.
			continue
		}
		rep.Broken = append(rep.Broken, ps.ID)
		log.Warn("Pair lost by backend",
			zap.Int64("pair_id", ps.ID),
			zap.Int64("job_id", ps.JobID),
			zap.String("exec_id", ps.ExecID),
			zap.Stringer("was", ps.Status))

		if err := r.failBuild(ctx, jobs, ps); err != nil {
			errs = append(errs, err)
		}
	}

	rep.Ended = r.now()
	brokenTotal.Add(float64(len(rep.Broken)))
	sweepDuration.Observe(rep.Ended.Sub(rep.Started).Seconds())
	if len(errs) > 0 {
		sweepsTotal.WithLabelValues("partial").Inc()
	} else {
		sweepsTotal.WithLabelValues("ok").Inc()
	}
	log.Info("Reconcile sweep finished",
		zap.Int("checked", rep.Checked),
		zap.Int("live", rep.Live),
		zap.Int("broken", len(rep.Broken)))
	return rep, errors.Join(errs...)
}

// failBuild marks the solver of a broken build job pair as failed to build.
func (r *Reconciler) failBuild(ctx context.Context, jobs map[int64]*model.Job, ps jobstore.PairState) error {
	job, ok := jobs[ps.JobID]
	if !ok {
		var err error
		job, err = r.store.GetJob(ctx, ps.JobID)
		if err != nil {
			return fmt.Errorf("load job %d: %w", ps.JobID, err)
		}
		jobs[ps.JobID] = job
	}
	if !job.BuildJob || ps.SolverID == 0 {
		return nil
	}
	if err := r.store.SetSolverBuildStatus(ctx, ps.SolverID, model.BuildStatusFailed); err != nil {
		return fmt.Errorf("mark solver %d build failed: %w", ps.SolverID, err)
	}
	r.logger.Info("Solver build failed", zap.Int64("solver_id", ps.SolverID), zap.Int64("pair_id", ps.ID))
	return nil
}
