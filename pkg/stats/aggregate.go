// Package stats aggregates per-solver statistics over job pairs and caches
// the aggregates of completed jobs.
package stats

import (
	"sort"

	"github.com/3leaps/benchline/pkg/model"
	"github.com/3leaps/benchline/pkg/status"
)

// PrimaryRollupStage is the stage number of the rollup over each pair's
// primary stage.
const PrimaryRollupStage = 0

// Options controls an aggregation.
type Options struct {
	// JobSpaceID is stamped on every row.
	JobSpaceID int64

	// IncludeUnknown adds the time of unclassified stages to the sums.
	IncludeUnknown bool
}

// Aggregate builds one row per (stage number, configuration) seen among the
// pairs' non-no-op stages, plus a stage 0 row per configuration covering
// primary stages. Rows are ordered by stage number, then configuration id.
// The arena resolves solvers for stages that only carry a configuration and
// may be nil.
func Aggregate(arena *model.Arena, pairs []model.JobPair, opts Options) []model.SolverStats {
	a := &aggregator{
		arena:     arena,
		opts:      opts,
		rows:      make(map[model.StatsKey]*model.SolverStats),
		answers:   make(map[model.StatsKey]map[int64]map[string]struct{}),
		conflicts: make(map[model.StatsKey]int),
	}
	for i := range pairs {
		a.addPair(&pairs[i])
	}
	return a.result()
}

type aggregator struct {
	arena *model.Arena
	opts  Options
	rows  map[model.StatsKey]*model.SolverStats

	// answers holds, per key and benchmark, the distinct decided results
	// of completed stages.
	answers   map[model.StatsKey]map[int64]map[string]struct{}
	conflicts map[model.StatsKey]int
}

func (a *aggregator) addPair(p *model.JobPair) {
	for i := range p.Stages {
		st := &p.Stages[i]
		if st.IsNoOp() || !st.Status.Valid() {
			continue
		}
		a.addStage(model.StatsKey{StageNumber: st.StageNumber, ConfigurationID: st.Configuration.ID}, p, st)
		if st.StageNumber == p.PrimaryStageNumber {
			a.addStage(model.StatsKey{StageNumber: PrimaryRollupStage, ConfigurationID: st.Configuration.ID}, p, st)
		}
	}
}

func (a *aggregator) addStage(key model.StatsKey, p *model.JobPair, st *model.JoblineStage) {
	row := a.row(key, st)
	code := st.Status
	switch {
	case code.Incomplete():
		row.IncompleteJobPairs++
		return
	case code.Failed():
		row.FailedJobPairs++
		return
	}

	row.CompleteJobPairs++
	if code.Resource() {
		row.ResourceOutJobPairs++
		return
	}
	if code != status.Complete {
		return
	}

	switch st.Outcome.Classify() {
	case model.Correct:
		row.CorrectJobPairs++
		row.WallTime += st.Wallclock
		row.CPUTime += st.CPU
	case model.Incorrect:
		row.IncorrectJobPairs++
	default:
		row.UnknownJobPairs++
		if a.opts.IncludeUnknown {
			row.WallTime += st.Wallclock
			row.CPUTime += st.CPU
		}
	}

	if result, ok := st.Outcome.KnownResult(); ok && p.Benchmark != nil {
		byBench := a.answers[key]
		if byBench == nil {
			byBench = make(map[int64]map[string]struct{})
			a.answers[key] = byBench
		}
		seen := byBench[p.Benchmark.ID]
		if seen == nil {
			seen = make(map[string]struct{})
			byBench[p.Benchmark.ID] = seen
		}
		seen[result] = struct{}{}
	}
}

func (a *aggregator) row(key model.StatsKey, st *model.JoblineStage) *model.SolverStats {
	if row, ok := a.rows[key]; ok {
		return row
	}
	row := &model.SolverStats{
		JobSpaceID:        a.opts.JobSpaceID,
		StageNumber:       key.StageNumber,
		ConfigurationID:   key.ConfigurationID,
		ConfigurationName: st.Configuration.Name,
		SolverID:          st.Configuration.SolverID,
	}
	solver := st.Solver
	if solver == nil && a.arena != nil {
		solver, _ = a.arena.LookupSolver(st.Configuration.SolverID)
	}
	if solver != nil {
		row.SolverID = solver.ID
		row.SolverName = solver.Name
	}
	a.rows[key] = row
	return row
}

// conflictsFor counts benchmarks with at least two distinct decided results
// under key. Each key is counted once.
func (a *aggregator) conflictsFor(key model.StatsKey) int {
	if n, ok := a.conflicts[key]; ok {
		return n
	}
	n := 0
	for _, results := range a.answers[key] {
		if len(results) > 1 {
			n++
		}
	}
	a.conflicts[key] = n
	return n
}

func (a *aggregator) result() []model.SolverStats {
	out := make([]model.SolverStats, 0, len(a.rows))
	for key, row := range a.rows {
		row.Conflicts = a.conflictsFor(key)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StageNumber != out[j].StageNumber {
			return out[i].StageNumber < out[j].StageNumber
		}
		return out[i].ConfigurationID < out[j].ConfigurationID
	})
	return out
}
