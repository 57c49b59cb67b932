// Package pipeline resolves and validates the dependencies between solver
// pipeline stages, and loads pipeline definitions from YAML or JSON files.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/3leaps/benchline/pkg/model"
	"github.com/3leaps/benchline/pkg/status"
)

var (
	// ErrDanglingDependency means a dependency row names a stage the pair does not have.
	ErrDanglingDependency = errors.New("dependency references unknown stage")
	// ErrMissingDependency means a stage declares dependencies but the pair has no rows for it.
	ErrMissingDependency = errors.New("stage dependency rows missing")
	// ErrInvalidDependency means a dependency points forward or outside the pair's inputs.
	ErrInvalidDependency = errors.New("invalid stage dependency")
)

// Store is the persistence the resolver reads from.
type Store interface {
	GetJob(ctx context.Context, jobID int64) (*model.Job, error)
	GetPair(ctx context.Context, pairID int64) (*model.JobPair, *model.Arena, error)
	GetPipeline(ctx context.Context, pipelineID int64) (*model.SolverPipeline, error)
	PairDependencies(ctx context.Context, pairID int64) ([]model.PipelineDependency, error)
}

// Resolver attaches pipeline dependencies to job pairs.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve fetches a pair's dependencies in one batch and groups them by
// stage id. Jobs that do not use dependencies return an empty map without
// touching the dependency table.
func (r *Resolver) Resolve(ctx context.Context, job *model.Job, pairID int64) (map[int64][]model.PipelineDependency, error) {
	grouped := make(map[int64][]model.PipelineDependency)
	if job == nil || !job.UsesDependencies {
		return grouped, nil
	}
	deps, err := r.store.PairDependencies(ctx, pairID)
	if err != nil {
		return nil, fmt.Errorf("resolve dependencies of pair %d: %w", pairID, err)
	}
	for _, d := range deps {
		grouped[d.StageID] = append(grouped[d.StageID], d)
	}
	return grouped, nil
}

// Load reads a pair, resolves and validates its dependencies, and returns
// it with stages in stage-number order.
func (r *Resolver) Load(ctx context.Context, pairID int64) (*model.JobPair, *model.Arena, error) {
	pair, arena, err := r.store.GetPair(ctx, pairID)
	if err != nil {
		return nil, nil, err
	}
	job, err := r.store.GetJob(ctx, pair.JobID)
	if err != nil {
		return nil, nil, err
	}
	grouped, err := r.Resolve(ctx, job, pairID)
	if err != nil {
		return nil, nil, err
	}

	var pl *model.SolverPipeline
	if job.UsesDependencies && pair.PipelineID != 0 {
		pl, err = r.store.GetPipeline(ctx, pair.PipelineID)
		if err != nil {
			return nil, nil, err
		}
	}
	if err := Attach(pair, grouped, pl); err != nil {
		return nil, nil, err
	}
	return pair, arena, nil
}

// Attach validates grouped dependency rows against the pair (and, when
// given, the pipeline's declared dependencies), stores them on the stages
// and sorts the stages.
func Attach(pair *model.JobPair, grouped map[int64][]model.PipelineDependency, pl *model.SolverPipeline) error {
	for stageID, deps := range grouped {
		st := pair.StageByID(stageID)
		if st == nil {
			return fmt.Errorf("pair %d stage id %d: %w", pair.ID, stageID, ErrDanglingDependency)
		}
		for _, d := range deps {
			if err := checkDependency(pair, st, d); err != nil {
				return err
			}
		}
	}

	if pl != nil {
		for _, ps := range pl.Stages {
			if len(ps.Dependencies) == 0 {
				continue
			}
			st := pair.Stage(ps.StageNumber)
			if st == nil {
				continue
			}
			if got := len(grouped[st.StageID]); got != len(ps.Dependencies) {
				return fmt.Errorf("pair %d stage %d: declared %d, found %d: %w",
					pair.ID, ps.StageNumber, len(ps.Dependencies), got, ErrMissingDependency)
			}
		}
	}

	for i := range pair.Stages {
		pair.Stages[i].Dependencies = grouped[pair.Stages[i].StageID]
	}
	model.SortStages(pair)
	return nil
}

func checkDependency(pair *model.JobPair, st *model.JoblineStage, d model.PipelineDependency) error {
	switch d.Kind {
	case model.DependencyArtifact:
		if d.InputNumber < 1 || d.InputNumber >= st.StageNumber || pair.Stage(d.InputNumber) == nil {
			return fmt.Errorf("pair %d stage %d: artifact of stage %d: %w",
				pair.ID, st.StageNumber, d.InputNumber, ErrInvalidDependency)
		}
	case model.DependencyBenchmark:
		if d.InputNumber < 1 || d.InputNumber > len(pair.Inputs) {
			return fmt.Errorf("pair %d stage %d: benchmark input %d of %d: %w",
				pair.ID, st.StageNumber, d.InputNumber, len(pair.Inputs), ErrInvalidDependency)
		}
	default:
		return fmt.Errorf("pair %d stage %d: kind %q: %w", pair.ID, st.StageNumber, d.Kind, ErrInvalidDependency)
	}
	return nil
}

// Ready reports whether every artifact the stage consumes was produced by a
// stage that completed.
func Ready(pair *model.JobPair, stageNumber int) (bool, error) {
	st := pair.Stage(stageNumber)
	if st == nil {
		return false, fmt.Errorf("pair %d has no stage %d", pair.ID, stageNumber)
	}
	for _, d := range st.Dependencies {
		if d.Kind != model.DependencyArtifact {
			continue
		}
		src := pair.Stage(d.InputNumber)
		if src == nil || src.Status != status.Complete {
			return false, nil
		}
	}
	return true, nil
}
