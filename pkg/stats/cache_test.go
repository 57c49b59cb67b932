package stats_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/benchline/pkg/jobstore"
	"github.com/3leaps/benchline/pkg/model"
	"github.com/3leaps/benchline/pkg/stats"
	"github.com/3leaps/benchline/pkg/status"
)

func row(space int64, stage int, cfg int64) model.SolverStats {
	return model.SolverStats{JobSpaceID: space, StageNumber: stage, ConfigurationID: cfg, CompleteJobPairs: 1, CorrectJobPairs: 1}
}

func TestCache_SaveOnlyWhenComplete(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	jobID := w.job(t, 1000)
	pairID := w.pair(t, jobID, 1000, status.Running, "")
	cache := stats.NewCache(w.store, nil)

	saved, err := cache.Save(ctx, jobID, []model.SolverStats{row(1000, 1, 10)})
	require.NoError(t, err)
	assert.False(t, saved)
	got, err := cache.Get(ctx, 1000, stats.AllStages)
	require.NoError(t, err)
	assert.Empty(t, got, "partial results are never cached")

	_, err = w.store.CompletePair(ctx, pairID, status.Complete)
	require.NoError(t, err)
	saved, err = cache.Save(ctx, jobID, []model.SolverStats{row(1000, 1, 10)})
	require.NoError(t, err)
	assert.True(t, saved)
	got, err = cache.Get(ctx, 1000, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, w.store.SetJobFlag(ctx, jobID, jobstore.FlagPaused, true))
	saved, err = cache.Save(ctx, jobID, []model.SolverStats{row(1000, 2, 10)})
	require.NoError(t, err)
	assert.False(t, saved, "a paused job is not complete")
}

func TestCache_InvalidateScopesToJobHierarchy(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	jobA := w.job(t, 1000)
	jobB := w.job(t, 2000)
	cache := stats.NewCache(w.store, nil)

	require.NoError(t, w.store.PutStats(ctx, jobA, []model.SolverStats{
		row(1000, 1, 10), row(1000, 1, 11), row(1001, 1, 10),
	}))
	require.NoError(t, w.store.PutStats(ctx, jobB, []model.SolverStats{row(2000, 1, 10)}))

	require.NoError(t, cache.InvalidateConfigs(ctx, jobA, []int64{11}))
	got, err := cache.Get(ctx, 1000, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(10), got[0].ConfigurationID)

	require.NoError(t, cache.InvalidateConfigs(ctx, jobA, nil), "no configurations means nothing to drop")
	got, err = cache.Get(ctx, 1000, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, cache.Invalidate(ctx, jobA))
	for _, space := range []int64{1000, 1001} {
		got, err := cache.Get(ctx, space, stats.AllStages)
		require.NoError(t, err)
		assert.Empty(t, got, "space %d", space)
	}

	got, err = cache.Get(ctx, 2000, stats.AllStages)
	require.NoError(t, err)
	assert.Len(t, got, 1, "sibling job keeps its rows")
}
