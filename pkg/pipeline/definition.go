package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/3leaps/benchline/pkg/model"
)

// DefinitionVersion is the only accepted definition file version.
const DefinitionVersion = "1"

// Definition is a pipeline file: pipelines plus the per-stage attributes
// applied to jobs that run them.
//
// Example (YAML):
//
//	version: "1"
//	pipelines:
//	  - id: 5
//	    name: preprocess-then-solve
//	    primary_stage: 2
//	    stages:
//	      - id: 50
//	        stage: 1
//	      - id: 51
//	        stage: 2
//	        config_id: 10
//	        dependencies:
//	          - kind: ARTIFACT
//	            input: 1
//	stage_attributes:
//	  - stage: 2
//	    cpu_timeout: 300
//	    bench_suffix: "**/*.smt2"
type Definition struct {
	Version         string                  `json:"version" yaml:"version"`
	Pipelines       []model.SolverPipeline  `json:"pipelines" yaml:"pipelines"`
	StageAttributes []model.StageAttributes `json:"stage_attributes,omitempty" yaml:"stage_attributes,omitempty"`
}

// LoadFile reads and validates a definition. Format follows the extension:
// .json is JSON, anything else is YAML.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("pipeline file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromReader reads and validates a definition from r.
func LoadFromReader(r io.Reader, path string) (*Definition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline definition: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromBytes parses and validates a definition; path only selects the format.
func LoadFromBytes(data []byte, path string) (*Definition, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("pipeline definition is empty")
	}

	var def Definition
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		dec := json.NewDecoder(strings.NewReader(string(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("invalid JSON in pipeline definition: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("invalid YAML in pipeline definition: %w", err)
		}
	}

	for i := range def.Pipelines {
		p := &def.Pipelines[i]
		for j := range p.Stages {
			for k := range p.Stages[j].Dependencies {
				p.Stages[j].Dependencies[k].StageID = p.Stages[j].ID
			}
		}
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}
