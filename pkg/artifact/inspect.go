package artifact

import (
	"context"
	"fmt"

	"github.com/3leaps/benchline/pkg/model"
	"github.com/3leaps/benchline/pkg/pipeline"
	"github.com/3leaps/benchline/pkg/status"
)

// PairLoader loads a pair with its dependencies attached.
type PairLoader interface {
	Load(ctx context.Context, pairID int64) (*model.JobPair, *model.Arena, error)
}

// JobReader reads a job's stage attributes.
type JobReader interface {
	GetJob(ctx context.Context, jobID int64) (*model.Job, error)
}

// StageDependencies describes what one stage consumes and whether it can run.
type StageDependencies struct {
	StageNumber  int                        `json:"stage_number"`
	Status       status.Code                `json:"status"`
	Dependencies []model.PipelineDependency `json:"dependencies"`
	Ready        bool                       `json:"ready"`
	// MissingArtifacts lists source stages with no stored outputs. It stays
	// empty when no artifact storage is configured.
	MissingArtifacts []int `json:"missing_artifacts,omitempty"`
}

// DependencyReport is the dependency view of one pair.
type DependencyReport struct {
	PairID  int64               `json:"pair_id"`
	JobID   int64               `json:"job_id"`
	Checked bool                `json:"artifacts_checked"`
	Stages  []StageDependencies `json:"stages"`
}

// Inspector builds dependency reports.
type Inspector struct {
	pairs   PairLoader
	jobs    JobReader
	checker *Checker
}

// NewInspector returns an Inspector. A nil checker skips the storage check.
func NewInspector(pairs PairLoader, jobs JobReader, checker *Checker) *Inspector {
	return &Inspector{pairs: pairs, jobs: jobs, checker: checker}
}

// Inspect loads the pair, validates its dependencies and, per stage, reports
// readiness and missing artifacts. Integrity faults are returned as errors.
func (i *Inspector) Inspect(ctx context.Context, pairID int64) (*DependencyReport, error) {
	pair, _, err := i.pairs.Load(ctx, pairID)
	if err != nil {
		return nil, err
	}
	rep := &DependencyReport{PairID: pair.ID, JobID: pair.JobID, Checked: i.checker != nil}

	var attrs map[int]model.StageAttributes
	if i.checker != nil {
		job, err := i.jobs.GetJob(ctx, pair.JobID)
		if err != nil {
			return nil, err
		}
		attrs = AttributesByStage(job.StageAttributes)
	}

	for _, st := range pair.Stages {
		ready, err := pipeline.Ready(pair, st.StageNumber)
		if err != nil {
			return nil, err
		}
		sd := StageDependencies{
			StageNumber:  st.StageNumber,
			Status:       st.Status,
			Dependencies: st.Dependencies,
			Ready:        ready,
		}
		if i.checker != nil && len(st.Dependencies) > 0 {
			missing, err := i.checker.Missing(ctx, pair, st.StageNumber, attrs)
			if err != nil {
				return nil, fmt.Errorf("check artifacts of pair %d stage %d: %w", pair.ID, st.StageNumber, err)
			}
			sd.MissingArtifacts = missing
			if len(missing) > 0 {
				sd.Ready = false
			}
		}
		rep.Stages = append(rep.Stages, sd)
	}
	return rep, nil
}
