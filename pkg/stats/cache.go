package stats

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/3leaps/benchline/pkg/model"
)

// Store is the persistence the cache and the service need.
type Store interface {
	GetStats(ctx context.Context, jobSpaceID int64, stageNumber int) ([]model.SolverStats, error)
	PutStats(ctx context.Context, jobID int64, stats []model.SolverStats) error
	DeleteStats(ctx context.Context, spaceIDs []int64, configIDs []int64) (int64, error)
	JobStatus(ctx context.Context, jobID int64) (model.JobStatus, error)
	JobSpaceHierarchy(ctx context.Context, jobID int64) ([]int64, error)
	JobSpaceSubtree(ctx context.Context, rootID int64) ([]int64, error)
	JobForSpace(ctx context.Context, spaceID int64) (int64, error)
	LoadPairsInSpaces(ctx context.Context, spaceIDs []int64) (*model.Arena, []model.JobPair, error)
}

// AllStages asks Get for every cached stage of a job space.
const AllStages = -1

// Cache persists the statistics of completed jobs. It never computes.
type Cache struct {
	store  Store
	logger *zap.Logger
}

func NewCache(store Store, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, logger: logger}
}

// Get returns the cached rows of a job space, or none.
func (c *Cache) Get(ctx context.Context, jobSpaceID int64, stageNumber int) ([]model.SolverStats, error) {
	rows, err := c.store.GetStats(ctx, jobSpaceID, stageNumber)
	if err != nil {
		return nil, fmt.Errorf("get cached stats for space %d: %w", jobSpaceID, err)
	}
	return rows, nil
}

// Save stores rows when the job is complete and reports whether it did.
// Partial results of running, paused or killed jobs are never cached.
func (c *Cache) Save(ctx context.Context, jobID int64, rows []model.SolverStats) (bool, error) {
	st, err := c.store.JobStatus(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("save stats of job %d: %w", jobID, err)
	}
	if st != model.JobStatusComplete {
		cacheSaves.WithLabelValues("skipped").Inc()
		return false, nil
	}
	if err := c.store.PutStats(ctx, jobID, rows); err != nil {
		return false, fmt.Errorf("save stats of job %d: %w", jobID, err)
	}
	cacheSaves.WithLabelValues("saved").Inc()
	return true, nil
}

// Invalidate deletes the cached rows of every space in the job's hierarchy.
func (c *Cache) Invalidate(ctx context.Context, jobID int64) error {
	return c.invalidate(ctx, jobID, nil)
}

// InvalidateConfigs deletes the job's cached rows for the given
// configurations only.
func (c *Cache) InvalidateConfigs(ctx context.Context, jobID int64, configIDs []int64) error {
	if len(configIDs) == 0 {
		return nil
	}
	return c.invalidate(ctx, jobID, configIDs)
}

func (c *Cache) invalidate(ctx context.Context, jobID int64, configIDs []int64) error {
	spaces, err := c.store.JobSpaceHierarchy(ctx, jobID)
	if err != nil {
		return fmt.Errorf("invalidate stats of job %d: %w", jobID, err)
	}
	n, err := c.store.DeleteStats(ctx, spaces, configIDs)
	if err != nil {
		return fmt.Errorf("invalidate stats of job %d: %w", jobID, err)
	}
	cacheInvalidatedRows.Add(float64(n))
	c.logger.Debug("Invalidated cached stats",
		zap.Int64("job_id", jobID),
		zap.Int("spaces", len(spaces)),
		zap.Int64s("config_ids", configIDs),
		zap.Int64("rows", n))
	return nil
}
