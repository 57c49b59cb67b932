package stats_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/3leaps/benchline/pkg/jobstore"
	"github.com/3leaps/benchline/pkg/model"
	"github.com/3leaps/benchline/pkg/status"
)

type world struct {
	store  *jobstore.Store
	solver model.Solver
	config model.Configuration
	bench  model.Benchmark
}

func newWorld(t *testing.T) *world {
	t.Helper()
	ctx := context.Background()
	db, err := jobstore.Open(ctx, jobstore.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, jobstore.Migrate(ctx, db))

	w := &world{
		store:  jobstore.New(db),
		solver: model.Solver{ID: 1, Name: "z3"},
		config: model.Configuration{ID: 10, SolverID: 1, Name: "default"},
		bench:  model.Benchmark{ID: 100, Name: "a.smt2"},
	}
	require.NoError(t, w.store.UpsertSolver(ctx, w.solver))
	require.NoError(t, w.store.UpsertConfiguration(ctx, w.config))
	require.NoError(t, w.store.UpsertBenchmark(ctx, w.bench, map[string]string{model.ExpectedAttribute: "sat"}))
	return w
}

// job creates a job whose primary space is rootSpace, with one child space
// rootSpace+1.
func (w *world) job(t *testing.T, rootSpace int64) int64 {
	t.Helper()
	ctx := context.Background()
	jobID, err := w.store.CreateJob(ctx, model.Job{Name: "job", PrimarySpaceID: rootSpace})
	require.NoError(t, err)
	_, err = w.store.CreateJobSpace(ctx, jobstore.JobSpace{ID: rootSpace, JobID: jobID, Name: "root"})
	require.NoError(t, err)
	_, err = w.store.CreateJobSpace(ctx, jobstore.JobSpace{ID: rootSpace + 1, ParentID: rootSpace, JobID: jobID, Name: "child"})
	require.NoError(t, err)
	return jobID
}

func (w *world) pair(t *testing.T, jobID, spaceID int64, code status.Code, result string) int64 {
	t.Helper()
	id, err := w.store.CreatePair(context.Background(), model.JobPair{
		JobID:              jobID,
		JobSpaceID:         spaceID,
		Benchmark:          &w.bench,
		PrimaryStageNumber: 1,
		Status:             code,
		Stages: []model.JoblineStage{{
			StageID:       1,
			StageNumber:   1,
			Solver:        &w.solver,
			Configuration: &w.config,
			Status:        code,
			Wallclock:     1.5,
			CPU:           1,
			Outcome:       model.NewOutcome(result, ""),
		}},
	})
	require.NoError(t, err)
	return id
}
