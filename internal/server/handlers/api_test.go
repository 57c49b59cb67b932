package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/benchline/internal/errors"
	"github.com/3leaps/benchline/pkg/artifact"
	"github.com/3leaps/benchline/pkg/jobstore"
	"github.com/3leaps/benchline/pkg/lifecycle"
	"github.com/3leaps/benchline/pkg/model"
	"github.com/3leaps/benchline/pkg/reconcile"
	"github.com/3leaps/benchline/pkg/stats"
	"github.com/3leaps/benchline/pkg/status"
)

// fakeLifecycle records the last call and returns canned results.
type fakeLifecycle struct {
	last  string
	jobID int64
	code  status.Code
	res   lifecycle.BatchResult
	err   error
}

func (f *fakeLifecycle) job(name string, jobID int64) (lifecycle.BatchResult, error) {
	f.last, f.jobID = name, jobID
	return f.res, f.err
}

func (f *fakeLifecycle) Rerun(_ context.Context, pairID int64) error {
	f.last, f.jobID = "rerun", pairID
	return f.err
}

func (f *fakeLifecycle) SetPairsToPending(_ context.Context, jobID int64, code status.Code) (lifecycle.BatchResult, error) {
	f.code = code
	return f.job("status", jobID)
}

func (f *fakeLifecycle) SetTimelessPairsToPending(_ context.Context, jobID int64) (lifecycle.BatchResult, error) {
	return f.job("timeless", jobID)
}

func (f *fakeLifecycle) SetAllPairsToPending(_ context.Context, jobID int64) (lifecycle.BatchResult, error) {
	return f.job("all", jobID)
}

func (f *fakeLifecycle) Pause(_ context.Context, jobID int64) (lifecycle.BatchResult, error) {
	return f.job("pause", jobID)
}

func (f *fakeLifecycle) AdminPause(_ context.Context, jobID int64) (lifecycle.BatchResult, error) {
	return f.job("admin-pause", jobID)
}

func (f *fakeLifecycle) Resume(_ context.Context, jobID int64) (lifecycle.BatchResult, error) {
	return f.job("resume", jobID)
}

func (f *fakeLifecycle) AdminResume(_ context.Context, jobID int64) (lifecycle.BatchResult, error) {
	return f.job("admin-resume", jobID)
}

func (f *fakeLifecycle) Kill(_ context.Context, jobID int64) (lifecycle.BatchResult, error) {
	return f.job("kill", jobID)
}

func (f *fakeLifecycle) PauseAll(context.Context) (lifecycle.BatchResult, error) {
	return f.job("pause-all", 0)
}

func (f *fakeLifecycle) ResumeAll(context.Context) (lifecycle.BatchResult, error) {
	return f.job("resume-all", 0)
}

func (f *fakeLifecycle) GlobalPaused(context.Context) (bool, error) { return true, f.err }

type fakeStats struct {
	space          int64
	stage          int
	includeUnknown bool
	rows           []model.SolverStats
}

func (f *fakeStats) ForJobSpace(_ context.Context, space int64, stage int, includeUnknown bool) ([]model.SolverStats, error) {
	f.space, f.stage, f.includeUnknown = space, stage, includeUnknown
	return f.rows, nil
}

func (f *fakeStats) IncludeUnknown() bool { return true }

type fakeSweeper struct {
	rep *reconcile.Report
	err error
}

func (f fakeSweeper) Sweep(context.Context) (*reconcile.Report, error) { return f.rep, f.err }

type fakeDeps struct{ err error }

func (f fakeDeps) Inspect(_ context.Context, pairID int64) (*artifact.DependencyReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &artifact.DependencyReport{PairID: pairID, JobID: 1}, nil
}

type fakeConfigs struct {
	last     string
	configID int64
	name     string
	err      error
	partial  bool
}

func (f *fakeConfigs) change(op string, configID int64) (stats.ConfigChange, error) {
	f.last, f.configID = op, configID
	if f.err != nil && !f.partial {
		return stats.ConfigChange{}, f.err
	}
	return stats.ConfigChange{ConfigID: configID, Jobs: []int64{3}}, f.err
}

func (f *fakeConfigs) Rename(_ context.Context, configID int64, name string) (stats.ConfigChange, error) {
	f.name = name
	return f.change("rename", configID)
}

func (f *fakeConfigs) Delete(_ context.Context, configID int64) (stats.ConfigChange, error) {
	return f.change("delete", configID)
}

func newRouter(api *API) http.Handler {
	r := chi.NewRouter()
	r.Route("/v1", api.Routes)
	return r
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestAPI_JobOperations(t *testing.T) {
	lc := &fakeLifecycle{res: lifecycle.BatchResult{Results: []lifecycle.PairResult{
		{PairID: 1, Changed: true},
		{PairID: 2, Err: errors.New("kill timeout")},
	}}}
	h := newRouter(&API{Lifecycle: lc, Stats: &fakeStats{}, Reconciler: fakeSweeper{}, Deps: fakeDeps{}})

	for _, op := range []string{"pause", "resume", "admin-pause", "admin-resume", "kill"} {
		t.Run(op, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/jobs/42/"+op)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, op, lc.last)
			assert.Equal(t, int64(42), lc.jobID)

			var body batchResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, 2, body.Pairs)
			assert.Equal(t, 1, body.Changed)
			assert.Equal(t, []pairFailure{{PairID: 2, Error: "kill timeout"}}, body.Failures)
		})
	}
}

func TestAPI_RerunJob(t *testing.T) {
	lc := &fakeLifecycle{}
	h := newRouter(&API{Lifecycle: lc, Stats: &fakeStats{}, Reconciler: fakeSweeper{}, Deps: fakeDeps{}})

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/jobs/3/rerun?status=error_general").Code)
	assert.Equal(t, "status", lc.last)
	assert.Equal(t, status.ErrorGeneral, lc.code)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/jobs/3/rerun?scope=timeless").Code)
	assert.Equal(t, "timeless", lc.last)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/jobs/3/rerun?scope=all").Code)
	assert.Equal(t, "all", lc.last)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/jobs/3/rerun").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/jobs/3/rerun?status=sideways").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/jobs/zero/rerun?scope=all").Code)
}

func TestAPI_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"read only", fmt.Errorf("job 1: %w", lifecycle.ErrReadOnly), http.StatusConflict},
		{"missing", fmt.Errorf("pair 9: %w", jobstore.ErrNotFound), http.StatusNotFound},
		{"backend", errors.New("backend unreachable"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := &fakeLifecycle{err: tt.err}
			h := newRouter(&API{Lifecycle: lc, Stats: &fakeStats{}, Reconciler: fakeSweeper{}, Deps: fakeDeps{}})
			rec := do(t, h, http.MethodPost, "/v1/pairs/9/rerun")
			assert.Equal(t, tt.want, rec.Code)

			var body apperrors.HTTPErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.NotEmpty(t, body.Error.Code)
		})
	}
}

func TestAPI_SpaceStats(t *testing.T) {
	st := &fakeStats{rows: []model.SolverStats{{JobSpaceID: 7, StageNumber: 0, CompleteJobPairs: 2}}}
	h := newRouter(&API{Lifecycle: &fakeLifecycle{}, Stats: st, Reconciler: fakeSweeper{}, Deps: fakeDeps{}})

	rec := do(t, h, http.MethodGet, "/v1/spaces/7/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), st.space)
	assert.Equal(t, stats.AllStages, st.stage)
	assert.True(t, st.includeUnknown, "service default")

	rec = do(t, h, http.MethodGet, "/v1/spaces/7/stats?stage=0&include_unknown=false")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, st.stage)
	assert.False(t, st.includeUnknown)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/spaces/7/stats?stage=-2").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/spaces/7/stats?include_unknown=maybe").Code)
}

func TestAPI_Reconcile(t *testing.T) {
	rep := &reconcile.Report{SweepID: "s-1", Checked: 3, Broken: []int64{5}}

	h := newRouter(&API{Lifecycle: &fakeLifecycle{}, Stats: &fakeStats{}, Reconciler: fakeSweeper{rep: rep, err: errors.New("pair 5: locked")}, Deps: fakeDeps{}})
	rec := do(t, h, http.MethodPost, "/v1/admin/reconcile")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Report reconcile.Report `json:"report"`
		Errors string           `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, []int64{5}, body.Report.Broken)
	assert.Equal(t, "pair 5: locked", body.Errors)

	h = newRouter(&API{Lifecycle: &fakeLifecycle{}, Stats: &fakeStats{}, Reconciler: fakeSweeper{err: errors.New("qstat down")}, Deps: fakeDeps{}})
	assert.Equal(t, http.StatusInternalServerError, do(t, h, http.MethodPost, "/v1/admin/reconcile").Code)
}

func TestAPI_Dependencies(t *testing.T) {
	h := newRouter(&API{Lifecycle: &fakeLifecycle{}, Stats: &fakeStats{}, Reconciler: fakeSweeper{}, Deps: fakeDeps{}})
	rec := do(t, h, http.MethodGet, "/v1/pairs/11/dependencies")
	require.Equal(t, http.StatusOK, rec.Code)
	var rep artifact.DependencyReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rep))
	assert.Equal(t, int64(11), rep.PairID)

	h = newRouter(&API{Lifecycle: &fakeLifecycle{}, Stats: &fakeStats{}, Reconciler: fakeSweeper{}, Deps: fakeDeps{err: fmt.Errorf("pair 11: %w", jobstore.ErrNotFound)}})
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/pairs/11/dependencies").Code)
}

func TestAPI_GlobalPaused(t *testing.T) {
	h := newRouter(&API{Lifecycle: &fakeLifecycle{}, Stats: &fakeStats{}, Reconciler: fakeSweeper{}, Deps: fakeDeps{}})
	rec := do(t, h, http.MethodGet, "/v1/admin/paused")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"paused":true}`, rec.Body.String())
}

func TestAPI_Configurations(t *testing.T) {
	cf := &fakeConfigs{}
	h := newRouter(&API{Lifecycle: &fakeLifecycle{}, Stats: &fakeStats{}, Reconciler: fakeSweeper{}, Deps: fakeDeps{}, Configs: cf})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/v1/configurations/10", strings.NewReader(`{"name":"tuned"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rename", cf.last)
	assert.Equal(t, int64(10), cf.configID)
	assert.Equal(t, "tuned", cf.name)
	assert.JSONEq(t, `{"change":{"config_id":10,"jobs":[3]}}`, rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/v1/configurations/10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "delete", cf.last)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/v1/configurations/10", strings.NewReader(`{"name":" "}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	cf.err = fmt.Errorf("configuration 10: %w", jobstore.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/v1/configurations/10").Code)

	cf.partial = true
	cf.err = errors.New("invalidate stats of job 3: locked")
	rec = do(t, h, http.MethodDelete, "/v1/configurations/10")
	require.Equal(t, http.StatusOK, rec.Code, "the change committed")
	assert.Contains(t, rec.Body.String(), "locked")
}

func TestAPI_ConfigurationsNotMountedWithoutEditor(t *testing.T) {
	h := newRouter(&API{Lifecycle: &fakeLifecycle{}, Stats: &fakeStats{}, Reconciler: fakeSweeper{}, Deps: fakeDeps{}})
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/v1/configurations/10").Code)
}
