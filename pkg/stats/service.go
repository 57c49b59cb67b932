package stats

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/benchline/pkg/model"
)

// Service answers statistics requests from the cache and computes on miss.
type Service struct {
	store          Store
	cache          *Cache
	includeUnknown bool
	logger         *zap.Logger
}

// NewService builds a service. includeUnknown is the setting cached rows are
// computed with; requests asking for the other setting bypass the cache.
func NewService(store Store, includeUnknown bool, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:          store,
		cache:          NewCache(store, logger),
		includeUnknown: includeUnknown,
		logger:         logger,
	}
}

func (s *Service) Cache() *Cache { return s.cache }

// IncludeUnknown is the default setting for requests that do not choose.
func (s *Service) IncludeUnknown() bool { return s.includeUnknown }

// ForJobSpace returns the rows of one stage (or AllStages) for a job space,
// aggregated over the space and its descendants.
func (s *Service) ForJobSpace(ctx context.Context, jobSpaceID int64, stageNumber int, includeUnknown bool) ([]model.SolverStats, error) {
	cacheable := includeUnknown == s.includeUnknown
	if cacheable {
		rows, err := s.cache.Get(ctx, jobSpaceID, stageNumber)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			cacheLookups.WithLabelValues("hit").Inc()
			return rows, nil
		}
		cacheLookups.WithLabelValues("miss").Inc()
	} else {
		cacheLookups.WithLabelValues("bypass").Inc()
	}

	jobID, err := s.store.JobForSpace(ctx, jobSpaceID)
	if err != nil {
		return nil, err
	}
	all, err := s.compute(ctx, jobSpaceID, includeUnknown)
	if err != nil {
		return nil, err
	}

	if cacheable && len(all) > 0 {
		saved, err := s.cache.Save(ctx, jobID, all)
		if err != nil {
			s.logger.Warn("Failed to cache stats", zap.Int64("job_space_id", jobSpaceID), zap.Error(err))
		} else if saved {
			s.logger.Debug("Cached stats", zap.Int64("job_space_id", jobSpaceID), zap.Int("rows", len(all)))
		}
	}
	return filterStage(all, stageNumber), nil
}

func (s *Service) compute(ctx context.Context, jobSpaceID int64, includeUnknown bool) ([]model.SolverStats, error) {
	start := time.Now()
	defer func() { aggregateDuration.Observe(time.Since(start).Seconds()) }()

	spaces, err := s.store.JobSpaceSubtree(ctx, jobSpaceID)
	if err != nil {
		return nil, fmt.Errorf("stats for space %d: %w", jobSpaceID, err)
	}
	arena, pairs, err := s.store.LoadPairsInSpaces(ctx, spaces)
	if err != nil {
		return nil, fmt.Errorf("stats for space %d: %w", jobSpaceID, err)
	}
	return Aggregate(arena, pairs, Options{JobSpaceID: jobSpaceID, IncludeUnknown: includeUnknown}), nil
}

func filterStage(rows []model.SolverStats, stageNumber int) []model.SolverStats {
	if stageNumber == AllStages {
		return rows
	}
	out := make([]model.SolverStats, 0, len(rows))
	for _, r := range rows {
		if r.StageNumber == stageNumber {
			out = append(out, r)
		}
	}
	return out
}
