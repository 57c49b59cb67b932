package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/3leaps/benchline/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDefinitionYAML() string {
	return `version: "1"
pipelines:
  - id: 5
    name: preprocess-then-solve
    primary_stage: 2
    stages:
      - id: 50
        stage: 1
        config_id: 9
      - id: 51
        stage: 2
        config_id: 10
        dependencies:
          - kind: ARTIFACT
            input: 1
          - kind: BENCHMARK
            input: 1
stage_attributes:
  - stage: 2
    cpu_timeout: 300
    bench_suffix: "**/*.smt2"
`
}

func TestLoadFromBytes_YAML(t *testing.T) {
	def, err := LoadFromBytes([]byte(validDefinitionYAML()), "pipelines.yaml")
	require.NoError(t, err)
	require.Len(t, def.Pipelines, 1)

	p := def.Pipelines[0]
	assert.Equal(t, "preprocess-then-solve", p.Name)
	assert.Equal(t, 2, p.PrimaryStageNumber)
	deps := p.Stage(2).Dependencies
	require.Len(t, deps, 2)
	assert.Equal(t, int64(51), deps[0].StageID, "dependency stage ids filled from the owning stage")
	assert.Equal(t, model.DependencyBenchmark, deps[1].Kind)
	require.Len(t, def.StageAttributes, 1)
	assert.Equal(t, 300, def.StageAttributes[0].CPUTimeout)
}

func TestLoadFromBytes_JSON(t *testing.T) {
	data := `{"version":"1","pipelines":[{"id":1,"name":"single","primary_stage_number":1,"stages":[{"id":10,"stage_number":1,"config_id":3}]}]}`
	def, err := LoadFromBytes([]byte(data), "p.json")
	require.NoError(t, err)
	assert.Equal(t, "single", def.Pipelines[0].Name)

	_, err = LoadFromBytes([]byte(`{"version":"1","bogus":true}`), "p.json")
	assert.Error(t, err)
}

func TestLoadFromBytes_RejectsUnknownYAMLFields(t *testing.T) {
	data := strings.Replace(validDefinitionYAML(), "name: preprocess-then-solve", "name: x\n    colour: blue", 1)
	_, err := LoadFromBytes([]byte(data), "p.yaml")
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipelines.yml")
	require.NoError(t, os.WriteFile(path, []byte(validDefinitionYAML()), 0o644))
	def, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, def.Pipelines, 1)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	def, err = LoadFromReader(strings.NewReader(validDefinitionYAML()), "")
	require.NoError(t, err)
	assert.Len(t, def.Pipelines, 1)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantMsg string
	}{
		{"empty", func(string) string { return "" }, "empty"},
		{"wrong version", func(s string) string { return strings.Replace(s, `version: "1"`, `version: "2"`, 1) }, "version"},
		{"forward artifact", func(s string) string {
			return strings.Replace(s, "kind: ARTIFACT\n            input: 1", "kind: ARTIFACT\n            input: 2", 1)
		}, "earlier stage"},
		{"bad kind", func(s string) string { return strings.Replace(s, "kind: BENCHMARK", "kind: FILE", 1) }, "ARTIFACT or BENCHMARK"},
		{"gap in stages", func(s string) string { return strings.Replace(s, "stage: 2\n        config_id: 10", "stage: 3\n        config_id: 10", 1) }, "contiguous"},
		{"missing primary", func(s string) string { return strings.Replace(s, "primary_stage: 2", "primary_stage: 7", 1) }, "primary_stage"},
		{"bad glob", func(s string) string { return strings.Replace(s, `"**/*.smt2"`, `"[abc"`, 1) }, "invalid glob"},
		{"duplicate stage id", func(s string) string { return strings.Replace(s, "id: 51", "id: 50", 1) }, "duplicate stage id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.mutate(validDefinitionYAML())), "p.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidationErrors_Unwrap(t *testing.T) {
	def := &Definition{Version: "0"}
	err := def.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, err.Error(), "2 errors")
}

func TestMatchesBenchSuffix(t *testing.T) {
	attrs := model.StageAttributes{BenchSuffix: "**/*.smt2"}
	assert.True(t, MatchesBenchSuffix(attrs, "qf_bv/a.smt2"))
	assert.False(t, MatchesBenchSuffix(attrs, "qf_bv/a.cnf"))
	assert.True(t, MatchesBenchSuffix(model.StageAttributes{}, "anything"))
}
