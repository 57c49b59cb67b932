package jobstore

import (
	"context"
	"testing"

	"github.com/3leaps/benchline/pkg/model"
	"github.com/3leaps/benchline/pkg/status"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(ctx, db))
	return New(db)
}

type fixture struct {
	jobID   int64
	spaceID int64
	solver  model.Solver
	config  model.Configuration
	bench   model.Benchmark
}

// seedJob creates one solver/config, one benchmark expecting "sat", and an
// empty job with a primary space.
func seedJob(t *testing.T, s *Store) fixture {
	t.Helper()
	ctx := context.Background()

	f := fixture{
		solver: model.Solver{ID: 1, Name: "z3"},
		config: model.Configuration{ID: 10, SolverID: 1, Name: "default"},
		bench:  model.Benchmark{ID: 100, Name: "a.smt2"},
	}
	require.NoError(t, s.UpsertSolver(ctx, f.solver))
	require.NoError(t, s.UpsertConfiguration(ctx, f.config))
	require.NoError(t, s.UpsertBenchmark(ctx, f.bench, map[string]string{model.ExpectedAttribute: "sat"}))

	spaceID, err := s.CreateJobSpace(ctx, JobSpace{Name: "root"})
	require.NoError(t, err)
	jobID, err := s.CreateJob(ctx, model.Job{Name: "job", PrimarySpaceID: spaceID})
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `UPDATE job_spaces SET job_id = ? WHERE id = ?`, jobID, spaceID)
	require.NoError(t, err)

	f.jobID = jobID
	f.spaceID = spaceID
	return f
}

// addPair inserts a single-stage pair in the fixture job.
func addPair(t *testing.T, s *Store, f fixture, code status.Code, execID string) int64 {
	t.Helper()
	id, err := s.CreatePair(context.Background(), model.JobPair{
		JobID:              f.jobID,
		JobSpaceID:         f.spaceID,
		Benchmark:          &f.bench,
		PrimaryStageNumber: 1,
		Status:             code,
		ExecID:             execID,
		Stages: []model.JoblineStage{{
			StageID:       1,
			StageNumber:   1,
			Solver:        &f.solver,
			Configuration: &f.config,
			Status:        code,
		}},
	})
	require.NoError(t, err)
	return id
}
