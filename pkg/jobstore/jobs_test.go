package jobstore

import (
	"context"
	"testing"

	"github.com/3leaps/benchline/pkg/model"
	"github.com/3leaps/benchline/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateJob_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateJob(ctx, model.Job{
		Name:             "smt-comp",
		UserID:           7,
		CPUTimeout:       60,
		WallclockTimeout: 120,
		MaxMemory:        1 << 30,
		ReadOnly:         true,
		UsesDependencies: true,
		StageAttributes: []model.StageAttributes{
			{StageNumber: 1, CPUTimeout: 30, BenchSuffix: "**/*.smt2"},
			{StageNumber: 2, CPUTimeout: 10, StdoutSaveOption: model.NoSaveOutput},
		},
	})
	require.NoError(t, err)

	job, err := s.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "smt-comp", job.Name)
	assert.Equal(t, int64(7), job.UserID)
	assert.True(t, job.ReadOnly)
	assert.True(t, job.UsesDependencies)
	assert.False(t, job.Paused)
	assert.False(t, job.CreatedAt.IsZero())
	require.Len(t, job.StageAttributes, 2)
	assert.Equal(t, "**/*.smt2", job.StageAttributes[0].BenchSuffix)
	assert.Equal(t, model.SaveOutput, job.StageAttributes[0].StdoutSaveOption)
	assert.Equal(t, model.NoSaveOutput, job.StageAttributes[1].StdoutSaveOption)
}

func TestSetJobFlag(t *testing.T) {
	s := newTestStore(t)
	f := seedJob(t, s)
	ctx := context.Background()

	require.NoError(t, s.SetJobFlag(ctx, f.jobID, FlagPaused, true))
	job, err := s.GetJob(ctx, f.jobID)
	require.NoError(t, err)
	assert.True(t, job.Paused)

	assert.Error(t, s.SetJobFlag(ctx, f.jobID, JobFlag("name"), true))
}

func TestJobStatus(t *testing.T) {
	s := newTestStore(t)
	f := seedJob(t, s)
	ctx := context.Background()

	done := addPair(t, s, f, status.Complete, "")
	running := addPair(t, s, f, status.Running, "exec-1")
	_ = done

	st, err := s.JobStatus(ctx, f.jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, st)

	require.NoError(t, s.SetGlobalPaused(ctx, true))
	st, err = s.JobStatus(ctx, f.jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusGlobalPause, st)
	require.NoError(t, s.SetGlobalPaused(ctx, false))

	changed, err := s.TransitionPair(ctx, running, []status.Code{status.Running}, status.ExceedCPU)
	require.NoError(t, err)
	require.True(t, changed)

	st, err = s.JobStatus(ctx, f.jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusComplete, st)

	counts, err := s.JobPairCounts(ctx, f.jobID)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Total)
	assert.Equal(t, 0, counts.Incomplete)
}

func TestJobsWithPairsIn(t *testing.T) {
	s := newTestStore(t)
	f := seedJob(t, s)
	ctx := context.Background()

	addPair(t, s, f, status.Complete, "")
	ids, err := s.JobsWithPairsIn(ctx, []status.Code{status.Enqueued, status.Running})
	require.NoError(t, err)
	assert.Empty(t, ids)

	addPair(t, s, f, status.Enqueued, "exec-1")
	ids, err = s.JobsWithPairsIn(ctx, []status.Code{status.Enqueued, status.Running})
	require.NoError(t, err)
	assert.Equal(t, []int64{f.jobID}, ids)
}

func TestJobSpaceHierarchy(t *testing.T) {
	s := newTestStore(t)
	f := seedJob(t, s)
	ctx := context.Background()

	child, err := s.CreateJobSpace(ctx, JobSpace{ParentID: f.spaceID, JobID: f.jobID, Name: "child"})
	require.NoError(t, err)
	grandchild, err := s.CreateJobSpace(ctx, JobSpace{ParentID: child, JobID: f.jobID, Name: "grandchild"})
	require.NoError(t, err)
	other, err := s.CreateJobSpace(ctx, JobSpace{Name: "other-root"})
	require.NoError(t, err)

	ids, err := s.JobSpaceHierarchy(ctx, f.jobID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{f.spaceID, child, grandchild}, ids)
	assert.NotContains(t, ids, other)

	ids, err = s.JobSpaceSubtree(ctx, child)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{child, grandchild}, ids)

	jobID, err := s.JobForSpace(ctx, grandchild)
	require.NoError(t, err)
	assert.Equal(t, f.jobID, jobID)
}
