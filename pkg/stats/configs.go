package stats

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ConfigStore alters solver configurations.
type ConfigStore interface {
	RenameConfiguration(ctx context.Context, configID int64, name string) error
	DeleteConfiguration(ctx context.Context, configID int64) error
	JobsUsingConfiguration(ctx context.Context, configID int64) ([]int64, error)
}

// ConfigChange names the jobs whose cached rows a configuration change
// dropped.
type ConfigChange struct {
	ConfigID int64   `json:"config_id"`
	Jobs     []int64 `json:"jobs"`
}

// Configurations renames and deletes configurations. Once the change
// committed, the cached rows of that configuration are invalidated in
// every job that ran it.
type Configurations struct {
	store  ConfigStore
	cache  *Cache
	logger *zap.Logger
}

func NewConfigurations(store ConfigStore, cache *Cache, logger *zap.Logger) *Configurations {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Configurations{store: store, cache: cache, logger: logger}
}

// Rename changes the configuration's name.
func (c *Configurations) Rename(ctx context.Context, configID int64, name string) (ConfigChange, error) {
	jobs, err := c.store.JobsUsingConfiguration(ctx, configID)
	if err != nil {
		return ConfigChange{}, err
	}
	if err := c.store.RenameConfiguration(ctx, configID, name); err != nil {
		return ConfigChange{}, err
	}
	return c.invalidate(ctx, "rename", configID, jobs)
}

// Delete removes the configuration.
func (c *Configurations) Delete(ctx context.Context, configID int64) (ConfigChange, error) {
	jobs, err := c.store.JobsUsingConfiguration(ctx, configID)
	if err != nil {
		return ConfigChange{}, err
	}
	if err := c.store.DeleteConfiguration(ctx, configID); err != nil {
		return ConfigChange{}, err
	}
	return c.invalidate(ctx, "delete", configID, jobs)
}

// invalidate keeps going past a failed job so one bad job does not leave
// the others stale.
func (c *Configurations) invalidate(ctx context.Context, op string, configID int64, jobs []int64) (ConfigChange, error) {
	change := ConfigChange{ConfigID: configID, Jobs: make([]int64, 0, len(jobs))}
	var errs []error
	for _, jobID := range jobs {
		if err := c.cache.InvalidateConfigs(ctx, jobID, []int64{configID}); err != nil {
			c.logger.Error("Stats invalidation failed",
				zap.Int64("job_id", jobID),
				zap.Int64("config_id", configID),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		change.Jobs = append(change.Jobs, jobID)
	}
	c.logger.Info("Configuration changed",
		zap.String("op", op),
		zap.Int64("config_id", configID),
		zap.Int("jobs", len(change.Jobs)))
	return change, errors.Join(errs...)
}
