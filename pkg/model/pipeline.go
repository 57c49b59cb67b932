package model

import "fmt"

// DependencyKind says what a stage consumes.
type DependencyKind string

const (
	// DependencyArtifact consumes the output files of an earlier stage.
	DependencyArtifact DependencyKind = "ARTIFACT"
	// DependencyBenchmark consumes one of the pair's extra benchmark inputs.
	DependencyBenchmark DependencyKind = "BENCHMARK"
)

// ParseDependencyKind normalizes a persisted or user-supplied kind.
func ParseDependencyKind(s string) (DependencyKind, error) {
	switch DependencyKind(s) {
	case DependencyArtifact, DependencyBenchmark:
		return DependencyKind(s), nil
	}
	return "", fmt.Errorf("unknown dependency kind %q", s)
}

// PipelineDependency is one input of a pipeline stage. InputNumber is an
// earlier stage number for artifacts and a 1-based input index for benchmarks.
type PipelineDependency struct {
	StageID     int64          `json:"stage_id" yaml:"-"`
	Kind        DependencyKind `json:"kind" yaml:"kind"`
	InputNumber int            `json:"input_number" yaml:"input"`
}

// PipelineStage is one step of a solver pipeline. ConfigID 0 marks a no-op.
type PipelineStage struct {
	ID           int64                `json:"id" yaml:"id"`
	StageNumber  int                  `json:"stage_number" yaml:"stage"`
	ConfigID     int64                `json:"config_id,omitempty" yaml:"config_id,omitempty"`
	Dependencies []PipelineDependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

func (s PipelineStage) IsNoOp() bool { return s.ConfigID == 0 }

// SolverPipeline is an ordered chain of stages.
type SolverPipeline struct {
	ID                 int64           `json:"id" yaml:"id"`
	Name               string          `json:"name" yaml:"name"`
	PrimaryStageNumber int             `json:"primary_stage_number" yaml:"primary_stage"`
	Stages             []PipelineStage `json:"stages" yaml:"stages"`
}

// Stage returns the pipeline stage with the given number, or nil.
func (p *SolverPipeline) Stage(number int) *PipelineStage {
	for i := range p.Stages {
		if p.Stages[i].StageNumber == number {
			return &p.Stages[i]
		}
	}
	return nil
}
