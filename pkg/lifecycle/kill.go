package lifecycle

import (
	"context"

	"go.uber.org/zap"

	"github.com/3leaps/benchline/pkg/jobstore"
	"github.com/3leaps/benchline/pkg/status"
)

// Kill sets the job's killed flag and moves every unfinished pair to
// Killed. Pairs on the backend are killed there first; terminal pairs are
// left as they are.
func (c *Controller) Kill(ctx context.Context, jobID int64) (BatchResult, error) {
	if err := c.store.SetJobFlag(ctx, jobID, jobstore.FlagKilled, true); err != nil {
		return BatchResult{}, err
	}
	states, err := c.store.ListPairStates(ctx, jobstore.PairFilter{JobID: jobID, Statuses: killableCodes})
	if err != nil {
		return BatchResult{}, err
	}

	var res BatchResult
	for _, ps := range states {
		changed, err := c.stopPair(ctx, ps, killableCodes, status.Killed)
		res.add(ps.ID, changed, err)
	}
	transitionsTotal.WithLabelValues("kill").Add(float64(res.Changed()))
	c.logger.Info("Job killed",
		zap.Int64("job_id", jobID),
		zap.Int("killed", res.Changed()),
		zap.Int("failed", len(res.Failures())))
	return res, nil
}
