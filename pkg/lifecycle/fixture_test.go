package lifecycle

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/3leaps/benchline/pkg/backend/backendtest"
	"github.com/3leaps/benchline/pkg/jobstore"
	"github.com/3leaps/benchline/pkg/model"
	"github.com/3leaps/benchline/pkg/status"
)

// recordingInvalidator remembers, per call, the statuses of the job's pairs
// at the moment of invalidation.
type recordingInvalidator struct {
	mu    sync.Mutex
	store *jobstore.Store
	calls []int64
	seen  [][]status.Code
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, jobID int64) error {
	states, err := r.store.ListPairStates(ctx, jobstore.PairFilter{JobID: jobID})
	if err != nil {
		return err
	}
	codes := make([]status.Code, 0, len(states))
	for _, ps := range states {
		codes = append(codes, ps.Status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, jobID)
	r.seen = append(r.seen, codes)
	return nil
}

type harness struct {
	store   *jobstore.Store
	backend *backendtest.Fake
	stats   *recordingInvalidator
	ctl     *Controller

	solver model.Solver
	config model.Configuration
	bench  model.Benchmark
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := jobstore.Open(ctx, jobstore.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, jobstore.Migrate(ctx, db))

	h := &harness{
		store:   jobstore.New(db),
		backend: backendtest.New(),
		solver:  model.Solver{ID: 1, Name: "z3"},
		config:  model.Configuration{ID: 10, SolverID: 1, Name: "default"},
		bench:   model.Benchmark{ID: 100, Name: "a.smt2"},
	}
	h.stats = &recordingInvalidator{store: h.store}
	h.ctl = New(h.store, h.backend, h.stats, nil)

	require.NoError(t, h.store.UpsertSolver(ctx, h.solver))
	require.NoError(t, h.store.UpsertConfiguration(ctx, h.config))
	require.NoError(t, h.store.UpsertBenchmark(ctx, h.bench, nil))
	return h
}

func (h *harness) job(t *testing.T, mutate ...func(*model.Job)) int64 {
	t.Helper()
	job := model.Job{Name: "job"}
	for _, m := range mutate {
		m(&job)
	}
	id, err := h.store.CreateJob(context.Background(), job)
	require.NoError(t, err)
	return id
}

// pair inserts a two-stage pair. Stage 1 is complete unless the pair has
// not been submitted yet, so tests can check that stages follow the pair.
func (h *harness) pair(t *testing.T, jobID int64, code status.Code, execID string) int64 {
	t.Helper()
	first := status.Complete
	if code == status.PendingSubmit {
		first = status.PendingSubmit
	}
	id, err := h.store.CreatePair(context.Background(), model.JobPair{
		JobID:              jobID,
		Benchmark:          &h.bench,
		PrimaryStageNumber: 2,
		Status:             code,
		ExecID:             execID,
		Stages: []model.JoblineStage{
			{StageID: 1, StageNumber: 1, Solver: &h.solver, Configuration: &h.config, Status: first, Wallclock: 1},
			{StageID: 2, StageNumber: 2, Solver: &h.solver, Configuration: &h.config, Status: code},
		},
	})
	require.NoError(t, err)
	if execID != "" {
		h.backend.Start(execID)
	}
	return id
}

func (h *harness) requireStatus(t *testing.T, pairID int64, want status.Code) {
	t.Helper()
	p, _, err := h.store.GetPair(context.Background(), pairID)
	require.NoError(t, err)
	require.Equal(t, want, p.Status, "pair %d", pairID)
	for _, st := range p.Stages {
		require.Equal(t, want, st.Status, "pair %d stage %d", pairID, st.StageNumber)
	}
}

func (h *harness) pairStatus(t *testing.T, pairID int64) status.Code {
	t.Helper()
	ps, err := h.store.GetPairState(context.Background(), pairID)
	require.NoError(t, err)
	return ps.Status
}

// advancingBackend moves a pair to another status while its kill is in
// flight, the way a live execution keeps reporting progress.
type advancingBackend struct {
	*backendtest.Fake
	store *jobstore.Store
	moves map[string]advance
}

type advance struct {
	pairID int64
	to     status.Code
}

func (b *advancingBackend) KillPair(ctx context.Context, execID string) error {
	if m, ok := b.moves[execID]; ok {
		if _, err := b.store.TransitionPair(ctx, m.pairID, onBackendCodes, m.to); err != nil {
			return err
		}
	}
	return b.Fake.KillPair(ctx, execID)
}

// advanceOnKill makes the controller's backend move pairID to `to` when
// execID is killed.
func (h *harness) advanceOnKill(execID string, pairID int64, to status.Code) {
	b := &advancingBackend{Fake: h.backend, store: h.store, moves: map[string]advance{execID: {pairID: pairID, to: to}}}
	h.ctl = New(h.store, b, h.stats, nil)
}

// submittingStore runs submit right after pair states are listed, standing
// in for a submitter that picks up a pending pair mid-operation.
type submittingStore struct {
	*jobstore.Store
	submit func()
}

func (s submittingStore) ListPairStates(ctx context.Context, f jobstore.PairFilter) ([]jobstore.PairState, error) {
	states, err := s.Store.ListPairStates(ctx, f)
	if s.submit != nil {
		s.submit()
	}
	return states, err
}
