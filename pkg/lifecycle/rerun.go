package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/3leaps/benchline/pkg/jobstore"
	"github.com/3leaps/benchline/pkg/status"
)

// Rerun returns one pair to PendingSubmit. A pending pair is left alone. A
// pair on the backend is killed first, and a failed kill aborts the rerun.
// The job's statistics are invalidated after the reset committed.
func (c *Controller) Rerun(ctx context.Context, pairID int64) error {
	ps, err := c.store.GetPairState(ctx, pairID)
	if err != nil {
		return err
	}
	if ps.Status == status.PendingSubmit {
		return nil
	}
	if _, err := c.writableJob(ctx, ps.JobID); err != nil {
		return err
	}

	changed, err := c.rerunPair(ctx, *ps)
	if err != nil {
		return fmt.Errorf("rerun pair %d: %w", pairID, err)
	}
	if !changed {
		return nil
	}
	rerunsTotal.Inc()
	c.logger.Info("Pair rerun", zap.Int64("pair_id", pairID), zap.Int64("job_id", ps.JobID))
	return c.invalidate(ctx, ps.JobID)
}

// SetPairsToPending reruns every pair of the job in the given status.
func (c *Controller) SetPairsToPending(ctx context.Context, jobID int64, code status.Code) (BatchResult, error) {
	if !code.Valid() {
		return BatchResult{}, fmt.Errorf("invalid status code %d", int(code))
	}
	if _, err := c.writableJob(ctx, jobID); err != nil {
		return BatchResult{}, err
	}
	if code == status.PendingSubmit {
		return BatchResult{}, nil
	}
	states, err := c.store.ListPairStates(ctx, jobstore.PairFilter{JobID: jobID, Statuses: []status.Code{code}})
	if err != nil {
		return BatchResult{}, err
	}
	return c.rerunBatch(ctx, jobID, "status", states)
}

// SetTimelessPairsToPending reruns the job's terminal pairs that recorded
// no wallclock time, which usually failed before running at all.
func (c *Controller) SetTimelessPairsToPending(ctx context.Context, jobID int64) (BatchResult, error) {
	if _, err := c.writableJob(ctx, jobID); err != nil {
		return BatchResult{}, err
	}
	states, err := c.store.TimelessPairStates(ctx, jobID)
	if err != nil {
		return BatchResult{}, err
	}
	return c.rerunBatch(ctx, jobID, "timeless", states)
}

// SetAllPairsToPending reruns every pair of the job that is not pending.
func (c *Controller) SetAllPairsToPending(ctx context.Context, jobID int64) (BatchResult, error) {
	if _, err := c.writableJob(ctx, jobID); err != nil {
		return BatchResult{}, err
	}
	states, err := c.store.ListPairStates(ctx, jobstore.PairFilter{
		JobID:           jobID,
		ExcludeStatuses: []status.Code{status.PendingSubmit},
	})
	if err != nil {
		return BatchResult{}, err
	}
	return c.rerunBatch(ctx, jobID, "all", states)
}

func (c *Controller) rerunBatch(ctx context.Context, jobID int64, mode string, states []jobstore.PairState) (BatchResult, error) {
	var res BatchResult
	for _, ps := range states {
		changed, err := c.rerunPair(ctx, ps)
		res.add(ps.ID, changed, err)
	}

	changed := res.Changed()
	rerunsTotal.Add(float64(changed))
	c.logger.Info("Pairs set to pending",
		zap.Int64("job_id", jobID),
		zap.String("mode", mode),
		zap.Int("selected", len(states)),
		zap.Int("changed", changed),
		zap.Int("failed", len(res.Failures())))
	if changed == 0 {
		return res, nil
	}
	return res, c.invalidate(ctx, jobID)
}

func (c *Controller) rerunPair(ctx context.Context, ps jobstore.PairState) (bool, error) {
	if ps.Status.OnBackend() {
		if err := c.kill(ctx, ps); err != nil {
			return false, err
		}
	}
	return c.store.ResetPairForRerun(ctx, ps.ID)
}
