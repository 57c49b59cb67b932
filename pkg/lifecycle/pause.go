package lifecycle

import (
	"context"

	"go.uber.org/zap"

	"github.com/3leaps/benchline/pkg/jobstore"
	"github.com/3leaps/benchline/pkg/status"
)

// Pause sets the job's paused flag and pauses its active pairs. Pairs on
// the backend are killed once first; a pair whose kill failed keeps its
// status and reports the error.
func (c *Controller) Pause(ctx context.Context, jobID int64) (BatchResult, error) {
	return c.pauseWithFlag(ctx, jobID, jobstore.FlagPaused)
}

// AdminPause is Pause under the administrator's flag, which a user resume
// does not clear.
func (c *Controller) AdminPause(ctx context.Context, jobID int64) (BatchResult, error) {
	return c.pauseWithFlag(ctx, jobID, jobstore.FlagAdminPaused)
}

func (c *Controller) pauseWithFlag(ctx context.Context, jobID int64, flag jobstore.JobFlag) (BatchResult, error) {
	if err := c.store.SetJobFlag(ctx, jobID, flag, true); err != nil {
		return BatchResult{}, err
	}
	res, err := c.pausePairs(ctx, jobID)
	if err != nil {
		return res, err
	}
	c.logger.Info("Job paused",
		zap.Int64("job_id", jobID),
		zap.String("flag", string(flag)),
		zap.Int("paused", res.Changed()),
		zap.Int("failed", len(res.Failures())))
	return res, nil
}

// PauseAll sets the global pause flag and pauses the active pairs of every
// job. Per-job flags are left alone so ResumeAll can tell the jobs apart.
func (c *Controller) PauseAll(ctx context.Context) (BatchResult, error) {
	if err := c.store.SetGlobalPaused(ctx, true); err != nil {
		return BatchResult{}, err
	}
	jobs, err := c.store.JobsWithPairsIn(ctx, pausableCodes)
	if err != nil {
		return BatchResult{}, err
	}
	var res BatchResult
	for _, jobID := range jobs {
		r, err := c.pausePairs(ctx, jobID)
		res.merge(r)
		if err != nil {
			return res, err
		}
	}
	c.logger.Info("Global pause",
		zap.Int("jobs", len(jobs)),
		zap.Int("paused", res.Changed()),
		zap.Int("failed", len(res.Failures())))
	return res, nil
}

func (c *Controller) pausePairs(ctx context.Context, jobID int64) (BatchResult, error) {
	states, err := c.store.ListPairStates(ctx, jobstore.PairFilter{JobID: jobID, Statuses: pausableCodes})
	if err != nil {
		return BatchResult{}, err
	}
	var res BatchResult
	for _, ps := range states {
		changed, err := c.stopPair(ctx, ps, pausableCodes, status.Paused)
		res.add(ps.ID, changed, err)
	}
	transitionsTotal.WithLabelValues("pause").Add(float64(res.Changed()))
	return res, nil
}

// Resume clears the job's paused flag and returns its paused pairs to
// PendingSubmit, unless an administrator paused the job too.
func (c *Controller) Resume(ctx context.Context, jobID int64) (BatchResult, error) {
	job, err := c.writableJob(ctx, jobID)
	if err != nil {
		return BatchResult{}, err
	}
	if err := c.store.SetJobFlag(ctx, jobID, jobstore.FlagPaused, false); err != nil {
		return BatchResult{}, err
	}
	if job.AdminPaused {
		return BatchResult{}, nil
	}
	return c.resumePairs(ctx, jobID)
}

// AdminResume clears the administrator's pause flag, resuming pairs unless
// the user paused the job as well.
func (c *Controller) AdminResume(ctx context.Context, jobID int64) (BatchResult, error) {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return BatchResult{}, err
	}
	if err := c.store.SetJobFlag(ctx, jobID, jobstore.FlagAdminPaused, false); err != nil {
		return BatchResult{}, err
	}
	if job.Paused {
		return BatchResult{}, nil
	}
	return c.resumePairs(ctx, jobID)
}

// ResumeAll clears the global pause flag and resumes the paused pairs of
// jobs that are not paused, admin-paused or killed on their own.
func (c *Controller) ResumeAll(ctx context.Context) (BatchResult, error) {
	if err := c.store.SetGlobalPaused(ctx, false); err != nil {
		return BatchResult{}, err
	}
	jobs, err := c.store.JobsWithPairsIn(ctx, []status.Code{status.Paused})
	if err != nil {
		return BatchResult{}, err
	}
	var (
		res     BatchResult
		resumed int
	)
	for _, jobID := range jobs {
		job, err := c.store.GetJob(ctx, jobID)
		if err != nil {
			return res, err
		}
		if job.Paused || job.AdminPaused || job.Killed || job.Deleted {
			continue
		}
		r, err := c.resumePairs(ctx, jobID)
		res.merge(r)
		if err != nil {
			return res, err
		}
		resumed++
	}
	c.logger.Info("Global resume", zap.Int("jobs", resumed), zap.Int("pairs", res.Changed()))
	return res, nil
}

func (c *Controller) resumePairs(ctx context.Context, jobID int64) (BatchResult, error) {
	states, err := c.store.ListPairStates(ctx, jobstore.PairFilter{JobID: jobID, Statuses: []status.Code{status.Paused}})
	if err != nil {
		return BatchResult{}, err
	}
	var res BatchResult
	for _, ps := range states {
		changed, err := c.store.TransitionPair(ctx, ps.ID, []status.Code{status.Paused}, status.PendingSubmit)
		res.add(ps.ID, changed, err)
	}
	transitionsTotal.WithLabelValues("resume").Add(float64(res.Changed()))
	return res, nil
}
