package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/3leaps/benchline/internal/errors"
	"github.com/3leaps/benchline/pkg/artifact"
	"github.com/3leaps/benchline/pkg/lifecycle"
	"github.com/3leaps/benchline/pkg/model"
	"github.com/3leaps/benchline/pkg/reconcile"
	"github.com/3leaps/benchline/pkg/stats"
	"github.com/3leaps/benchline/pkg/status"
)

// Lifecycle is the set of pair and job operations the API exposes.
type Lifecycle interface {
	Rerun(ctx context.Context, pairID int64) error
	SetPairsToPending(ctx context.Context, jobID int64, code status.Code) (lifecycle.BatchResult, error)
	SetTimelessPairsToPending(ctx context.Context, jobID int64) (lifecycle.BatchResult, error)
	SetAllPairsToPending(ctx context.Context, jobID int64) (lifecycle.BatchResult, error)
	Pause(ctx context.Context, jobID int64) (lifecycle.BatchResult, error)
	AdminPause(ctx context.Context, jobID int64) (lifecycle.BatchResult, error)
	Resume(ctx context.Context, jobID int64) (lifecycle.BatchResult, error)
	AdminResume(ctx context.Context, jobID int64) (lifecycle.BatchResult, error)
	Kill(ctx context.Context, jobID int64) (lifecycle.BatchResult, error)
	PauseAll(ctx context.Context) (lifecycle.BatchResult, error)
	ResumeAll(ctx context.Context) (lifecycle.BatchResult, error)
	GlobalPaused(ctx context.Context) (bool, error)
}

type StatsService interface {
	ForJobSpace(ctx context.Context, jobSpaceID int64, stageNumber int, includeUnknown bool) ([]model.SolverStats, error)
	IncludeUnknown() bool
}

type Sweeper interface {
	Sweep(ctx context.Context) (*reconcile.Report, error)
}

type DependencyInspector interface {
	Inspect(ctx context.Context, pairID int64) (*artifact.DependencyReport, error)
}

// ConfigEditor alters configurations and drops the cached stats they feed.
type ConfigEditor interface {
	Rename(ctx context.Context, configID int64, name string) (stats.ConfigChange, error)
	Delete(ctx context.Context, configID int64) (stats.ConfigChange, error)
}

// API serves the /v1 routes.
type API struct {
	Lifecycle  Lifecycle
	Stats      StatsService
	Reconciler Sweeper
	Deps       DependencyInspector

	// Configs is optional; without it the configuration routes are not
	// mounted.
	Configs ConfigEditor
}

// Routes mounts the API on r.
func (a *API) Routes(r chi.Router) {
	r.Route("/jobs/{jobID}", func(r chi.Router) {
		r.Post("/pause", a.jobOp(a.Lifecycle.Pause))
		r.Post("/resume", a.jobOp(a.Lifecycle.Resume))
		r.Post("/admin-pause", a.jobOp(a.Lifecycle.AdminPause))
		r.Post("/admin-resume", a.jobOp(a.Lifecycle.AdminResume))
		r.Post("/kill", a.jobOp(a.Lifecycle.Kill))
		r.Post("/rerun", a.rerunJob)
	})
	r.Post("/pairs/{pairID}/rerun", a.rerunPair)
	r.Get("/pairs/{pairID}/dependencies", a.dependencies)
	r.Get("/spaces/{spaceID}/stats", a.spaceStats)
	if a.Configs != nil {
		r.Patch("/configurations/{configID}", a.renameConfig)
		r.Delete("/configurations/{configID}", a.deleteConfig)
	}

	r.Route("/admin", func(r chi.Router) {
		r.Get("/paused", a.globalPaused)
		r.Post("/pause-all", a.globalOp(a.Lifecycle.PauseAll))
		r.Post("/resume-all", a.globalOp(a.Lifecycle.ResumeAll))
		r.Post("/reconcile", a.reconcile)
	})
}

type pairFailure struct {
	PairID int64  `json:"pair_id"`
	Error  string `json:"error"`
}

type batchResponse struct {
	Pairs    int           `json:"pairs"`
	Changed  int           `json:"changed"`
	Failures []pairFailure `json:"failures,omitempty"`
}

func newBatchResponse(b lifecycle.BatchResult) batchResponse {
	resp := batchResponse{Pairs: len(b.Results), Changed: b.Changed()}
	for _, f := range b.Failures() {
		resp.Failures = append(resp.Failures, pairFailure{PairID: f.PairID, Error: f.Err.Error()})
	}
	return resp
}

func (a *API) jobOp(op func(context.Context, int64) (lifecycle.BatchResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := pathID(r, "jobID")
		if err != nil {
			apperrors.RespondWithError(w, r, err)
			return
		}
		res, err := op(r.Context(), jobID)
		if err != nil {
			apperrors.RespondWithError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newBatchResponse(res))
	}
}

func (a *API) globalOp(op func(context.Context) (lifecycle.BatchResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := op(r.Context())
		if err != nil {
			apperrors.RespondWithError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newBatchResponse(res))
	}
}

// rerunJob selects pairs by ?status=<code> or ?scope=timeless|all.
func (a *API) rerunJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r, "jobID")
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	q := r.URL.Query()
	var res lifecycle.BatchResult
	switch {
	case q.Get("status") != "":
		code, perr := status.Parse(q.Get("status"))
		if perr != nil {
			apperrors.RespondWithError(w, r, apperrors.BadRequest(perr.Error()))
			return
		}
		res, err = a.Lifecycle.SetPairsToPending(r.Context(), jobID, code)
	case q.Get("scope") == "timeless":
		res, err = a.Lifecycle.SetTimelessPairsToPending(r.Context(), jobID)
	case q.Get("scope") == "all":
		res, err = a.Lifecycle.SetAllPairsToPending(r.Context(), jobID)
	default:
		apperrors.RespondWithError(w, r, apperrors.BadRequest("rerun needs ?status=<code> or ?scope=timeless|all"))
		return
	}
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBatchResponse(res))
}

func (a *API) rerunPair(w http.ResponseWriter, r *http.Request) {
	pairID, err := pathID(r, "pairID")
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	if err := a.Lifecycle.Rerun(r.Context(), pairID); err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pair_id": pairID, "status": status.PendingSubmit.String()})
}

func (a *API) dependencies(w http.ResponseWriter, r *http.Request) {
	pairID, err := pathID(r, "pairID")
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	rep, err := a.Deps.Inspect(r.Context(), pairID)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// spaceStats accepts ?stage=<n> (default every stage, 0 is the primary
// rollup) and ?include_unknown=true|false.
func (a *API) spaceStats(w http.ResponseWriter, r *http.Request) {
	spaceID, err := pathID(r, "spaceID")
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	q := r.URL.Query()
	stage := stats.AllStages
	if s := q.Get("stage"); s != "" {
		n, perr := strconv.Atoi(s)
		if perr != nil || n < 0 {
			apperrors.RespondWithError(w, r, apperrors.BadRequest("stage must be a non-negative integer"))
			return
		}
		stage = n
	}
	includeUnknown := a.Stats.IncludeUnknown()
	if s := q.Get("include_unknown"); s != "" {
		b, perr := strconv.ParseBool(s)
		if perr != nil {
			apperrors.RespondWithError(w, r, apperrors.BadRequest("include_unknown must be a boolean"))
			return
		}
		includeUnknown = b
	}

	rows, err := a.Stats.ForJobSpace(r.Context(), spaceID, stage, includeUnknown)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	if rows == nil {
		rows = []model.SolverStats{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_space_id": spaceID, "stats": rows})
}

func (a *API) globalPaused(w http.ResponseWriter, r *http.Request) {
	paused, err := a.Lifecycle.GlobalPaused(r.Context())
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
}

// reconcile runs one sweep. Store errors on single pairs still return the
// report, listed under errors.
func (a *API) reconcile(w http.ResponseWriter, r *http.Request) {
	rep, err := a.Reconciler.Sweep(r.Context())
	if rep == nil {
		if err == nil {
			err = errors.New("sweep returned no report")
		}
		apperrors.RespondWithError(w, r, err)
		return
	}
	body := map[string]any{"report": rep}
	if err != nil {
		body["errors"] = err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (a *API) renameConfig(w http.ResponseWriter, r *http.Request) {
	configID, err := pathID(r, "configID")
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.RespondWithError(w, r, apperrors.BadRequest("invalid request body: "+err.Error()))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		apperrors.RespondWithError(w, r, apperrors.BadRequest("name is required"))
		return
	}
	change, err := a.Configs.Rename(r.Context(), configID, req.Name)
	writeConfigChange(w, r, change, err)
}

func (a *API) deleteConfig(w http.ResponseWriter, r *http.Request) {
	configID, err := pathID(r, "configID")
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	change, err := a.Configs.Delete(r.Context(), configID)
	writeConfigChange(w, r, change, err)
}

// writeConfigChange reports a committed change even when invalidating some
// job failed; those failures are listed under errors.
func writeConfigChange(w http.ResponseWriter, r *http.Request, change stats.ConfigChange, err error) {
	if change.ConfigID == 0 {
		if err == nil {
			err = errors.New("configuration change returned no result")
		}
		apperrors.RespondWithError(w, r, err)
		return
	}
	body := map[string]any{"change": change}
	if err != nil {
		body["errors"] = err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

func pathID(r *http.Request, param string) (int64, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.BadRequest("invalid " + param + ": " + strconv.Quote(raw))
	}
	return id, nil
}
