// Package lifecycle implements the job pair state machine operations:
// rerun, pause, resume and kill, for single pairs, whole jobs and the
// global pause switch.
//
// Every pair-level mutation commits on its own. Statistics of a job are
// invalidated only after all of that job's pair mutations committed.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/3leaps/benchline/pkg/backend"
	"github.com/3leaps/benchline/pkg/jobstore"
	"github.com/3leaps/benchline/pkg/model"
	"github.com/3leaps/benchline/pkg/status"
)

var (
	// ErrReadOnly rejects mutations of read-only jobs.
	ErrReadOnly = errors.New("job is read-only")
	// ErrNotFound is returned for unknown jobs and pairs.
	ErrNotFound = jobstore.ErrNotFound
	// ErrStatusChanged reports a pair that moved out of reach while it was
	// being stopped.
	ErrStatusChanged = errors.New("pair status changed concurrently")
)

// Store is the persistence the controller mutates.
type Store interface {
	GetJob(ctx context.Context, jobID int64) (*model.Job, error)
	SetJobFlag(ctx context.Context, jobID int64, flag jobstore.JobFlag, value bool) error
	GetPairState(ctx context.Context, pairID int64) (*jobstore.PairState, error)
	ListPairStates(ctx context.Context, f jobstore.PairFilter) ([]jobstore.PairState, error)
	TimelessPairStates(ctx context.Context, jobID int64) ([]jobstore.PairState, error)
	JobsWithPairsIn(ctx context.Context, codes []status.Code) ([]int64, error)
	TransitionPair(ctx context.Context, pairID int64, from []status.Code, to status.Code) (bool, error)
	ResetPairForRerun(ctx context.Context, pairID int64) (bool, error)
	GlobalPaused(ctx context.Context) (bool, error)
	SetGlobalPaused(ctx context.Context, paused bool) error
}

// Invalidator drops cached statistics of a job.
type Invalidator interface {
	Invalidate(ctx context.Context, jobID int64) error
}

// PairResult is the outcome of one pair in a bulk operation.
type PairResult struct {
	PairID int64 `json:"pair_id"`
	// Changed is true when the pair's status was updated.
	Changed bool  `json:"changed"`
	Err     error `json:"-"`
}

// BatchResult collects per-pair outcomes of a bulk operation.
type BatchResult struct {
	Results []PairResult `json:"results"`
}

func (b *BatchResult) add(pairID int64, changed bool, err error) {
	b.Results = append(b.Results, PairResult{PairID: pairID, Changed: changed, Err: err})
}

func (b *BatchResult) merge(other BatchResult) {
	b.Results = append(b.Results, other.Results...)
}

// Changed counts pairs whose status was updated.
func (b BatchResult) Changed() int {
	n := 0
	for _, r := range b.Results {
		if r.Changed {
			n++
		}
	}
	return n
}

// Failures returns the results that carry an error.
func (b BatchResult) Failures() []PairResult {
	var out []PairResult
	for _, r := range b.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Err joins the per-pair errors, or returns nil.
func (b BatchResult) Err() error {
	var errs []error
	for _, r := range b.Results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("pair %d: %w", r.PairID, r.Err))
		}
	}
	return errors.Join(errs...)
}

// Controller runs lifecycle operations against the store and the backend.
type Controller struct {
	store   Store
	backend backend.Backend
	stats   Invalidator
	logger  *zap.Logger
}

func New(store Store, b backend.Backend, stats Invalidator, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{store: store, backend: b, stats: stats, logger: logger}
}

// GlobalPaused reads the persisted global pause flag.
func (c *Controller) GlobalPaused(ctx context.Context) (bool, error) {
	return c.store.GlobalPaused(ctx)
}

// kill stops a pair's execution. An execution the backend no longer holds
// counts as stopped.
func (c *Controller) kill(ctx context.Context, ps jobstore.PairState) error {
	if ps.ExecID == "" {
		return nil
	}
	err := c.backend.KillPair(ctx, ps.ExecID)
	if err == nil || errors.Is(err, backend.ErrUnknownExecution) {
		return nil
	}
	c.logger.Warn("Backend kill failed",
		zap.Int64("pair_id", ps.ID),
		zap.String("exec_id", ps.ExecID),
		zap.Error(err))
	return fmt.Errorf("kill execution %s: %w", ps.ExecID, err)
}

// stopPair kills the pair's execution when it is on the backend and moves
// it to `to`. After a kill the pair may have advanced along the backend
// path, so any status in allowed is accepted. A pending pair that was
// submitted meanwhile is re-read and stopped once more.
func (c *Controller) stopPair(ctx context.Context, ps jobstore.PairState, allowed []status.Code, to status.Code) (bool, error) {
	for attempt := 0; ; attempt++ {
		killed := ps.Status.OnBackend()
		from := []status.Code{ps.Status}
		if killed {
			if err := c.kill(ctx, ps); err != nil {
				return false, err
			}
			from = allowed
		}
		changed, err := c.store.TransitionPair(ctx, ps.ID, from, to)
		if err != nil || changed {
			return changed, err
		}

		cur, err := c.store.GetPairState(ctx, ps.ID)
		if err != nil {
			return false, err
		}
		switch {
		case cur.Status == to:
			return false, nil
		case killed:
			return false, fmt.Errorf("pair %d reached %s after kill: %w", ps.ID, cur.Status, ErrStatusChanged)
		case !slices.Contains(allowed, cur.Status):
			return false, nil
		case attempt > 0:
			return false, fmt.Errorf("pair %d now %s: %w", ps.ID, cur.Status, ErrStatusChanged)
		}
		ps = *cur
	}
}

func (c *Controller) invalidate(ctx context.Context, jobID int64) error {
	if c.stats == nil {
		return nil
	}
	if err := c.stats.Invalidate(ctx, jobID); err != nil {
		c.logger.Error("Stats invalidation failed", zap.Int64("job_id", jobID), zap.Error(err))
		return err
	}
	return nil
}

func (c *Controller) writableJob(ctx context.Context, jobID int64) (*model.Job, error) {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ReadOnly {
		return nil, fmt.Errorf("job %d: %w", jobID, ErrReadOnly)
	}
	return job, nil
}

func codesWhere(pred func(status.Code) bool) []status.Code {
	var out []status.Code
	for _, c := range status.All() {
		if pred(c) {
			out = append(out, c)
		}
	}
	return out
}

var (
	onBackendCodes = codesWhere(status.Code.OnBackend)
	pausableCodes  = append([]status.Code{status.PendingSubmit}, onBackendCodes...)
	killableCodes  = codesWhere(status.Code.Incomplete)
)
