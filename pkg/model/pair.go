package model

import (
	"sort"

	"github.com/3leaps/benchline/pkg/status"
)

// JobPair is one (benchmark, pipeline) execution within a job.
type JobPair struct {
	ID                 int64       `json:"id"`
	JobID              int64       `json:"job_id"`
	JobSpaceID         int64       `json:"job_space_id"`
	Benchmark          *Benchmark  `json:"benchmark,omitempty"`
	Node               *WorkerNode `json:"node,omitempty"`
	PipelineID         int64       `json:"pipeline_id,omitempty"`
	PrimaryStageNumber int         `json:"primary_stage_number"`
	Status             status.Code `json:"status"`
	ExecID             string      `json:"exec_id,omitempty"`
	CompletionID       int64       `json:"completion_id,omitempty"`
	DiskSize           int64       `json:"disk_size"`
	RerunCount         int         `json:"rerun_count"`

	// Inputs are extra benchmark ids; Inputs[0] is input number 1.
	Inputs []int64         `json:"inputs,omitempty"`
	Stages []JoblineStage `json:"stages"`
}

// JoblineStage is the state of one pipeline stage for one pair.
type JoblineStage struct {
	StageID       int64          `json:"stage_id"`
	StageNumber   int            `json:"stage_number"`
	Solver        *Solver        `json:"solver,omitempty"`
	Configuration *Configuration `json:"configuration,omitempty"`
	Status        status.Code    `json:"status"`
	Wallclock     float64        `json:"wallclock"`
	CPU           float64        `json:"cpu"`
	DiskSize      int64          `json:"disk_size"`
	Outcome       Outcome        `json:"outcome"`

	Dependencies []PipelineDependency `json:"dependencies,omitempty"`
}

// IsNoOp reports whether the stage runs nothing and is skipped by statistics.
func (s *JoblineStage) IsNoOp() bool {
	return s.Configuration == nil
}

// Stage returns the stage with the given stage number, or nil.
func (p *JobPair) Stage(number int) *JoblineStage {
	for i := range p.Stages {
		if p.Stages[i].StageNumber == number {
			return &p.Stages[i]
		}
	}
	return nil
}

// StageByID returns the stage with the given pipeline stage id, or nil.
func (p *JobPair) StageByID(id int64) *JoblineStage {
	for i := range p.Stages {
		if p.Stages[i].StageID == id {
			return &p.Stages[i]
		}
	}
	return nil
}

// PrimaryStage returns the stage whose results represent the pair, or nil.
func (p *JobPair) PrimaryStage() *JoblineStage {
	return p.Stage(p.PrimaryStageNumber)
}

// TotalWallclock sums wallclock time over all stages.
func (p *JobPair) TotalWallclock() float64 {
	var total float64
	for _, s := range p.Stages {
		total += s.Wallclock
	}
	return total
}

// SortStages orders the pair's stages by ascending stage number.
func SortStages(p *JobPair) {
	sort.SliceStable(p.Stages, func(i, j int) bool {
		return p.Stages[i].StageNumber < p.Stages[j].StageNumber
	})
}
