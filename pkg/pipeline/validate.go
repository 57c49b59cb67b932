package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/3leaps/benchline/pkg/model"
)

// ErrValidationFailed is wrapped by ValidationErrors.
var ErrValidationFailed = errors.New("pipeline validation failed")

// ValidationError is one problem found in a definition.
type ValidationError struct {
	// Path locates the field, e.g. "pipelines[0].stages[1].dependencies[0]".
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors collects every problem of a definition.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "pipeline validation failed with %d errors:", len(e))
	for _, err := range e {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

// Validate checks versioning, stage numbering and dependency direction.
// Artifact dependencies may only point at strictly earlier stages, so a
// valid pipeline is acyclic.
func (d *Definition) Validate() error {
	var errs ValidationErrors
	add := func(path, format string, args ...any) {
		errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if d.Version != DefinitionVersion {
		add("version", "must be %q, got %q", DefinitionVersion, d.Version)
	}
	if len(d.Pipelines) == 0 {
		add("pipelines", "at least one pipeline is required")
	}

	pipelineIDs := make(map[int64]bool)
	stageIDs := make(map[int64]bool)
	for i, p := range d.Pipelines {
		pp := fmt.Sprintf("pipelines[%d]", i)
		if p.ID <= 0 {
			add(pp+".id", "must be positive")
		} else if pipelineIDs[p.ID] {
			add(pp+".id", "duplicate pipeline id %d", p.ID)
		}
		pipelineIDs[p.ID] = true

		if len(p.Stages) == 0 {
			add(pp+".stages", "at least one stage is required")
			continue
		}
		numbers := make(map[int]bool)
		for j, st := range p.Stages {
			sp := fmt.Sprintf("%s.stages[%d]", pp, j)
			if st.ID <= 0 {
				add(sp+".id", "must be positive")
			} else if stageIDs[st.ID] {
				add(sp+".id", "duplicate stage id %d", st.ID)
			}
			stageIDs[st.ID] = true
			if st.StageNumber < 1 {
				add(sp+".stage", "must be >= 1")
			} else if numbers[st.StageNumber] {
				add(sp+".stage", "duplicate stage number %d", st.StageNumber)
			}
			numbers[st.StageNumber] = true
			if st.IsNoOp() && len(st.Dependencies) > 0 {
				add(sp+".dependencies", "a no-op stage cannot consume inputs")
			}
			for k, dep := range st.Dependencies {
				dp := fmt.Sprintf("%s.dependencies[%d]", sp, k)
				switch dep.Kind {
				case model.DependencyArtifact:
					if dep.InputNumber < 1 || dep.InputNumber >= st.StageNumber {
						add(dp+".input", "artifact must come from an earlier stage (1..%d), got %d", st.StageNumber-1, dep.InputNumber)
					}
				case model.DependencyBenchmark:
					if dep.InputNumber < 1 {
						add(dp+".input", "benchmark input numbers start at 1")
					}
				default:
					add(dp+".kind", "must be ARTIFACT or BENCHMARK, got %q", dep.Kind)
				}
			}
		}
		for n := 1; n <= len(p.Stages); n++ {
			if !numbers[n] {
				add(pp+".stages", "stage numbers must be contiguous from 1, missing %d", n)
				break
			}
		}
		if !numbers[p.PrimaryStageNumber] {
			add(pp+".primary_stage", "stage %d does not exist", p.PrimaryStageNumber)
		}
	}

	seenAttrs := make(map[int]bool)
	for i, a := range d.StageAttributes {
		ap := fmt.Sprintf("stage_attributes[%d]", i)
		if a.StageNumber < 1 {
			add(ap+".stage", "must be >= 1")
		} else if seenAttrs[a.StageNumber] {
			add(ap+".stage", "duplicate stage %d", a.StageNumber)
		}
		seenAttrs[a.StageNumber] = true
		if a.CPUTimeout < 0 || a.WallclockTimeout < 0 || a.MaxMemory < 0 {
			add(ap, "limits must not be negative")
		}
		if a.BenchSuffix != "" && !doublestar.ValidatePattern(a.BenchSuffix) {
			add(ap+".bench_suffix", "invalid glob %q", a.BenchSuffix)
		}
		if !validSaveOption(a.StdoutSaveOption) {
			add(ap+".stdout_save_option", "unknown save option %q", a.StdoutSaveOption)
		}
		if !validSaveOption(a.ExtraOutputSaveOption) {
			add(ap+".extra_output_save_option", "unknown save option %q", a.ExtraOutputSaveOption)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validSaveOption(v string) bool {
	switch v {
	case "", model.SaveOutput, model.NoSaveOutput, model.CreateNoOutput:
		return true
	}
	return false
}

// MatchesBenchSuffix reports whether name matches the stage's benchmark
// suffix glob. An empty glob matches everything.
func MatchesBenchSuffix(attrs model.StageAttributes, name string) bool {
	if attrs.BenchSuffix == "" {
		return true
	}
	ok, err := doublestar.Match(attrs.BenchSuffix, name)
	return err == nil && ok
}
