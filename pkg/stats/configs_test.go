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

func TestConfigurations_RenameInvalidatesJobsThatRanIt(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	other := *w
	other.config = model.Configuration{ID: 11, SolverID: 1, Name: "fast"}
	require.NoError(t, w.store.UpsertConfiguration(ctx, other.config))

	jobA := w.job(t, 1000)
	w.pair(t, jobA, 1000, status.Complete, "sat")
	jobB := w.job(t, 2000)
	other.pair(t, jobB, 2000, status.Complete, "sat")

	svc := stats.NewService(w.store, false, nil)
	for _, space := range []int64{1000, 2000} {
		_, err := svc.ForJobSpace(ctx, space, stats.AllStages, false)
		require.NoError(t, err)
	}
	cached, err := svc.Cache().Get(ctx, 1000, 1)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "default", cached[0].ConfigurationName)

	configs := stats.NewConfigurations(w.store, svc.Cache(), nil)
	change, err := configs.Rename(ctx, w.config.ID, "tuned")
	require.NoError(t, err)
	assert.Equal(t, w.config.ID, change.ConfigID)
	assert.Equal(t, []int64{jobA}, change.Jobs)

	cached, err = svc.Cache().Get(ctx, 1000, stats.AllStages)
	require.NoError(t, err)
	assert.Empty(t, cached)
	cached, err = svc.Cache().Get(ctx, 2000, stats.AllStages)
	require.NoError(t, err)
	assert.NotEmpty(t, cached, "jobs that never ran the configuration keep their rows")

	rows, err := svc.ForJobSpace(ctx, 1000, 1, false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "tuned", rows[0].ConfigurationName)
}

func TestConfigurations_Delete(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	jobID := w.job(t, 1000)
	w.pair(t, jobID, 1000, status.Complete, "sat")
	svc := stats.NewService(w.store, false, nil)
	_, err := svc.ForJobSpace(ctx, 1000, stats.AllStages, false)
	require.NoError(t, err)

	configs := stats.NewConfigurations(w.store, svc.Cache(), nil)
	change, err := configs.Delete(ctx, w.config.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{jobID}, change.Jobs)

	cached, err := svc.Cache().Get(ctx, 1000, stats.AllStages)
	require.NoError(t, err)
	assert.Empty(t, cached)
	_, err = w.store.GetConfiguration(ctx, w.config.ID)
	assert.ErrorIs(t, err, jobstore.ErrNotFound)

	_, err = configs.Delete(ctx, w.config.ID)
	assert.ErrorIs(t, err, jobstore.ErrNotFound)
}

func TestConfigurations_UnusedConfiguration(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	require.NoError(t, w.store.UpsertConfiguration(ctx, model.Configuration{ID: 12, SolverID: 1, Name: "idle"}))

	configs := stats.NewConfigurations(w.store, stats.NewCache(w.store, nil), nil)
	change, err := configs.Rename(ctx, 12, "still-idle")
	require.NoError(t, err)
	assert.Empty(t, change.Jobs)

	_, err = configs.Rename(ctx, 404, "ghost")
	assert.ErrorIs(t, err, jobstore.ErrNotFound)
}
