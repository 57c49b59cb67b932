package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/benchline/pkg/jobstore"
	"github.com/3leaps/benchline/pkg/model"
	"github.com/3leaps/benchline/pkg/status"
)

func TestPause(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	jobID := h.job(t)
	pending := h.pair(t, jobID, status.PendingSubmit, "")
	enqueued := h.pair(t, jobID, status.Enqueued, "exec-1")
	running := h.pair(t, jobID, status.Running, "exec-2")
	done := h.pair(t, jobID, status.Complete, "")

	res, err := h.ctl.Pause(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Changed())

	job, err := h.store.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.True(t, job.Paused)

	for _, id := range []int64{pending, enqueued, running} {
		h.requireStatus(t, id, status.Paused)
	}
	assert.Equal(t, status.Complete, h.pairStatus(t, done))
	assert.ElementsMatch(t, []string{"exec-1", "exec-2"}, h.backend.Kills())

	// Pausing again touches nothing and kills nothing.
	res, err = h.ctl.Pause(ctx, jobID)
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Len(t, h.backend.Kills(), 2)
}

func TestPause_KillFailureLeavesPair(t *testing.T) {
	h := newHarness(t)
	jobID := h.job(t)
	id := h.pair(t, jobID, status.Running, "exec-1")
	h.backend.KillErr = map[string]error{"exec-1": errors.New("timeout")}

	res, err := h.ctl.Pause(context.Background(), jobID)
	require.NoError(t, err)
	require.Len(t, res.Failures(), 1)
	assert.Equal(t, status.Running, h.pairStatus(t, id))
}

func TestPause_PairAdvancingDuringKill(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	jobID := h.job(t)
	id := h.pair(t, jobID, status.Enqueued, "exec-1")
	h.advanceOnKill("exec-1", id, status.Running)

	res, err := h.ctl.Pause(ctx, jobID)
	require.NoError(t, err)
	assert.NoError(t, res.Err())
	assert.Equal(t, 1, res.Changed())
	h.requireStatus(t, id, status.Paused)
	assert.Equal(t, []string{"exec-1"}, h.backend.Kills())

	active, err := h.store.ActivePairs(ctx)
	require.NoError(t, err)
	assert.Empty(t, active, "a paused pair is not left for the reconciler")
}

func TestPause_PairFinishingDuringKillIsReported(t *testing.T) {
	h := newHarness(t)
	jobID := h.job(t)
	id := h.pair(t, jobID, status.Finishing, "exec-1")
	h.advanceOnKill("exec-1", id, status.WaitResults)

	res, err := h.ctl.Pause(context.Background(), jobID)
	require.NoError(t, err)
	require.Len(t, res.Failures(), 1)
	assert.ErrorIs(t, res.Failures()[0].Err, ErrStatusChanged)
	assert.Equal(t, status.WaitResults, h.pairStatus(t, id))
}

func TestPause_PendingPairSubmittedMeanwhile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	jobID := h.job(t)
	id := h.pair(t, jobID, status.PendingSubmit, "")
	store := submittingStore{Store: h.store, submit: func() {
		require.NoError(t, h.store.MarkEnqueued(ctx, id, "exec-9"))
		h.backend.Start("exec-9")
	}}
	h.ctl = New(store, h.backend, h.stats, nil)

	res, err := h.ctl.Pause(ctx, jobID)
	require.NoError(t, err)
	assert.NoError(t, res.Err())
	assert.Equal(t, 1, res.Changed())
	h.requireStatus(t, id, status.Paused)
	assert.Equal(t, []string{"exec-9"}, h.backend.Kills())
}

func TestResume(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	jobID := h.job(t)
	id := h.pair(t, jobID, status.Running, "exec-1")

	_, err := h.ctl.Pause(ctx, jobID)
	require.NoError(t, err)

	res, err := h.ctl.Resume(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Changed())
	h.requireStatus(t, id, status.PendingSubmit)

	job, err := h.store.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.False(t, job.Paused)
}

func TestResume_AdminPausedStaysPaused(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	jobID := h.job(t)
	id := h.pair(t, jobID, status.PendingSubmit, "")

	_, err := h.ctl.Pause(ctx, jobID)
	require.NoError(t, err)
	_, err = h.ctl.AdminPause(ctx, jobID)
	require.NoError(t, err)

	res, err := h.ctl.Resume(ctx, jobID)
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Equal(t, status.Paused, h.pairStatus(t, id))

	res, err = h.ctl.AdminResume(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Changed())
	assert.Equal(t, status.PendingSubmit, h.pairStatus(t, id))
}

func TestAdminResume_UserPausedStaysPaused(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	jobID := h.job(t)
	id := h.pair(t, jobID, status.PendingSubmit, "")

	_, err := h.ctl.AdminPause(ctx, jobID)
	require.NoError(t, err)
	require.NoError(t, h.store.SetJobFlag(ctx, jobID, jobstore.FlagPaused, true))

	res, err := h.ctl.AdminResume(ctx, jobID)
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Equal(t, status.Paused, h.pairStatus(t, id))
}

func TestResume_ReadOnly(t *testing.T) {
	h := newHarness(t)
	jobID := h.job(t, func(j *model.Job) { j.ReadOnly = true; j.Paused = true })
	id := h.pair(t, jobID, status.Paused, "")

	_, err := h.ctl.Resume(context.Background(), jobID)
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.Equal(t, status.Paused, h.pairStatus(t, id))
}

func TestPauseAllResumeAll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	plain := h.job(t)
	plainPair := h.pair(t, plain, status.Running, "exec-1")
	userPaused := h.job(t)
	userPair := h.pair(t, userPaused, status.PendingSubmit, "")
	idle := h.job(t)
	idlePair := h.pair(t, idle, status.Complete, "")

	_, err := h.ctl.Pause(ctx, userPaused)
	require.NoError(t, err)

	res, err := h.ctl.PauseAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Changed())

	paused, err := h.ctl.GlobalPaused(ctx)
	require.NoError(t, err)
	assert.True(t, paused)
	h.requireStatus(t, plainPair, status.Paused)

	job, err := h.store.GetJob(ctx, plain)
	require.NoError(t, err)
	assert.False(t, job.Paused, "global pause does not set job flags")

	st, err := h.store.JobStatus(ctx, plain)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusGlobalPause, st)

	res, err = h.ctl.ResumeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Changed())

	paused, err = h.ctl.GlobalPaused(ctx)
	require.NoError(t, err)
	assert.False(t, paused)
	h.requireStatus(t, plainPair, status.PendingSubmit)
	assert.Equal(t, status.Paused, h.pairStatus(t, userPair), "individually paused job stays paused")
	assert.Equal(t, status.Complete, h.pairStatus(t, idlePair))
}
